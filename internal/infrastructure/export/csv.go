package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// CSVEncoder writes one file with a section per record type. Each section
// starts with a "# name" line followed by its header row.
type CSVEncoder struct{}

func (CSVEncoder) Format() domain.ExportFormat { return domain.ExportCSV }
func (CSVEncoder) Extension() string           { return "csv" }
func (CSVEncoder) ContentType() string         { return "text/csv; charset=utf-8" }

func (CSVEncoder) Encode(w io.Writer, report domain.AnalysisReport) error {
	// BOM so spreadsheet tools detect UTF-8 for CJK text.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}
	out := csv.NewWriter(w)

	sections := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{name: "task", header: taskHeader, rows: taskRows(report.Task)},
		{name: "word_frequencies", header: wordHeader, rows: mapRows(report.Results.WordFrequencies, wordRow)},
		{name: "timeline_events", header: timelineHeader, rows: mapRows(report.Results.TimelineEvents, timelineRow)},
		{name: "geo_locations", header: geoHeader, rows: mapRows(report.Results.GeoLocations, geoRow)},
	}
	for i, section := range sections {
		if i > 0 && len(section.rows) == 0 {
			continue
		}
		if err := out.Write([]string{"# " + section.name}); err != nil {
			return fmt.Errorf("write csv section: %w", err)
		}
		if err := out.Write(section.header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		if err := out.WriteAll(section.rows); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func mapRows[T any](items []T, row func(T) []string) [][]string {
	out := make([][]string, 0, len(items))
	for _, item := range items {
		out = append(out, row(item))
	}
	return out
}
