package export

import (
	"strconv"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

const dateLayout = "2006-01-02"

var (
	taskHeader     = []string{"field", "value"}
	wordHeader     = []string{"word", "category", "frequency", "relevance_score"}
	timelineHeader = []string{"event_name", "event_date", "description", "metadata"}
	geoHeader      = []string{"location_name", "location_type", "latitude", "longitude", "metadata"}
)

// taskRows flattens task metadata into field/value pairs shared by the
// tabular formats.
func taskRows(task domain.AnalysisTask) [][]string {
	rows := [][]string{
		{"id", task.ID},
		{"project_id", task.ProjectID},
		{"kind", string(task.Kind)},
		{"status", string(task.Status)},
		{"description", task.Description},
		{"created_at", task.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if task.CompletedAt != nil {
		rows = append(rows, []string{"completed_at", task.CompletedAt.UTC().Format(time.RFC3339)})
	}
	if task.ProcessingTimeMS != nil {
		rows = append(rows, []string{"processing_time_ms", strconv.FormatInt(*task.ProcessingTimeMS, 10)})
	}
	if len(task.ResultSnapshot) > 0 {
		rows = append(rows, []string{"result_snapshot", string(task.ResultSnapshot)})
	}
	return rows
}

func wordRow(w domain.WordFrequencyRecord) []string {
	return []string{w.Word, string(w.Category), strconv.Itoa(w.Frequency), formatFloat(w.RelevanceScore)}
}

func timelineRow(e domain.TimelineEventRecord) []string {
	date := ""
	if e.EventDate != nil {
		date = e.EventDate.Format(dateLayout)
	}
	return []string{e.EventName, date, e.Description, string(e.Metadata)}
}

func geoRow(g domain.GeoLocationRecord) []string {
	lat, lon := "", ""
	if g.HasCoordinates() {
		lat, lon = formatFloat(*g.Latitude), formatFloat(*g.Longitude)
	}
	return []string{g.LocationName, string(g.LocationType), lat, lon, string(g.Metadata)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
