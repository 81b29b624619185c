package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

var (
	wordSortColumns = map[string]string{
		"frequency":       "frequency",
		"relevance_score": "relevance_score",
		"word":            "word",
		"category":        "category",
		"created_at":      "created_at",
	}
	timelineSortColumns = map[string]string{
		"event_date": "event_date",
		"event_name": "event_name",
		"created_at": "created_at",
	}
	geoSortColumns = map[string]string{
		"location_name": "location_name",
		"location_type": "location_type",
		"latitude":      "latitude",
		"longitude":     "longitude",
		"created_at":    "created_at",
	}
)

// ResultRepository reads the typed records written by AnalysisRepository.Complete.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) ListWordFrequencies(
	ctx context.Context,
	taskID string,
	query domain.WordFrequencyQuery,
	page domain.PageRequest,
) (domain.Page[domain.WordFrequencyRecord], error) {
	where := &whereBuilder{}
	where.add("task_id = $%d", taskID)
	if query.Category != "" {
		where.add("category = $%d", string(query.Category))
	}
	if query.MinFrequency > 0 {
		where.add("frequency >= $%d", query.MinFrequency)
	}
	if query.MinRelevance > 0 {
		where.add("relevance_score >= $%d", query.MinRelevance)
	}

	total, err := r.count(ctx, "word_frequency_results", where)
	if err != nil {
		return domain.Page[domain.WordFrequencyRecord]{}, err
	}
	records, err := r.queryWords(ctx, `
SELECT id, task_id, word, category, frequency, relevance_score, created_at
FROM word_frequency_results `+where.String()+` `+where.pageClause(page, wordSortColumns, "frequency"), where.args...)
	if err != nil {
		return domain.Page[domain.WordFrequencyRecord]{}, err
	}
	return domain.NewPage(records, page, total), nil
}

func (r *ResultRepository) ListTimelineEvents(
	ctx context.Context,
	taskID string,
	query domain.TimelineQuery,
	page domain.PageRequest,
) (domain.Page[domain.TimelineEventRecord], error) {
	where := &whereBuilder{}
	where.add("task_id = $%d", taskID)
	if query.From != nil {
		where.add("event_date >= $%d", query.From.UTC())
	}
	if query.To != nil {
		where.add("event_date <= $%d", query.To.UTC())
	}

	total, err := r.count(ctx, "timeline_events", where)
	if err != nil {
		return domain.Page[domain.TimelineEventRecord]{}, err
	}
	records, err := r.queryEvents(ctx, `
SELECT id, task_id, event_name, description, event_date, metadata, created_at
FROM timeline_events `+where.String()+` `+where.pageClause(page, timelineSortColumns, "event_date"), where.args...)
	if err != nil {
		return domain.Page[domain.TimelineEventRecord]{}, err
	}
	return domain.NewPage(records, page, total), nil
}

func (r *ResultRepository) ListGeoLocations(
	ctx context.Context,
	taskID string,
	query domain.GeoQuery,
	page domain.PageRequest,
) (domain.Page[domain.GeoLocationRecord], error) {
	where := &whereBuilder{}
	where.add("task_id = $%d", taskID)
	if query.LocationType != "" {
		where.add("location_type = $%d", string(query.LocationType))
	}
	if box := query.Box; box != nil {
		where.add("latitude >= $%d", box.MinLatitude)
		where.add("latitude <= $%d", box.MaxLatitude)
		where.add("longitude >= $%d", box.MinLongitude)
		where.add("longitude <= $%d", box.MaxLongitude)
	}

	total, err := r.count(ctx, "geo_locations", where)
	if err != nil {
		return domain.Page[domain.GeoLocationRecord]{}, err
	}
	records, err := r.queryLocations(ctx, `
SELECT id, task_id, location_name, latitude, longitude, location_type, metadata, created_at
FROM geo_locations `+where.String()+` `+where.pageClause(page, geoSortColumns, "location_name"), where.args...)
	if err != nil {
		return domain.Page[domain.GeoLocationRecord]{}, err
	}
	return domain.NewPage(records, page, total), nil
}

// LoadResults reads every record of a task for export.
func (r *ResultRepository) LoadResults(ctx context.Context, taskID string) (domain.AnalysisResults, error) {
	words, err := r.queryWords(ctx, `
SELECT id, task_id, word, category, frequency, relevance_score, created_at
FROM word_frequency_results WHERE task_id = $1
ORDER BY frequency DESC, id ASC
`, taskID)
	if err != nil {
		return domain.AnalysisResults{}, err
	}
	events, err := r.queryEvents(ctx, `
SELECT id, task_id, event_name, description, event_date, metadata, created_at
FROM timeline_events WHERE task_id = $1
ORDER BY event_date ASC NULLS LAST, id ASC
`, taskID)
	if err != nil {
		return domain.AnalysisResults{}, err
	}
	locations, err := r.queryLocations(ctx, `
SELECT id, task_id, location_name, latitude, longitude, location_type, metadata, created_at
FROM geo_locations WHERE task_id = $1
ORDER BY location_name ASC, id ASC
`, taskID)
	if err != nil {
		return domain.AnalysisResults{}, err
	}
	return domain.AnalysisResults{WordFrequencies: words, TimelineEvents: events, GeoLocations: locations}, nil
}

func (r *ResultRepository) CategoryCounts(ctx context.Context, taskID string) ([]domain.CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT category, COUNT(*)
FROM word_frequency_results
WHERE task_id = $1
GROUP BY category
ORDER BY COUNT(*) DESC, category ASC
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryCount, 0)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, domain.CategoryCount{Category: domain.Category(category), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

func (r *ResultRepository) LocationTypeCounts(ctx context.Context, taskID string) ([]domain.LocationTypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT location_type, COUNT(*)
FROM geo_locations
WHERE task_id = $1
GROUP BY location_type
ORDER BY COUNT(*) DESC, location_type ASC
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("location type counts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LocationTypeCount, 0)
	for rows.Next() {
		var locationType string
		var count int64
		if err := rows.Scan(&locationType, &count); err != nil {
			return nil, fmt.Errorf("scan location type count: %w", err)
		}
		out = append(out, domain.LocationTypeCount{LocationType: domain.LocationType(locationType), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location type counts: %w", err)
	}
	return out, nil
}

func (r *ResultRepository) TimelineStatistics(ctx context.Context, taskID string) (domain.TimelineStatistics, error) {
	var stats domain.TimelineStatistics
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(event_date)
FROM timeline_events
WHERE task_id = $1
`, taskID).Scan(&stats.Count, &stats.Dated); err != nil {
		return domain.TimelineStatistics{}, fmt.Errorf("timeline statistics: %w", err)
	}
	if stats.Dated == 0 {
		return stats, nil
	}

	earliest, err := r.boundaryEvent(ctx, taskID, "ASC")
	if err != nil {
		return domain.TimelineStatistics{}, err
	}
	latest, err := r.boundaryEvent(ctx, taskID, "DESC")
	if err != nil {
		return domain.TimelineStatistics{}, err
	}
	stats.Earliest = earliest
	stats.Latest = latest
	return stats, nil
}

func (r *ResultRepository) boundaryEvent(ctx context.Context, taskID, direction string) (*domain.TimelineEventRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, task_id, event_name, description, event_date, metadata, created_at
FROM timeline_events
WHERE task_id = $1 AND event_date IS NOT NULL
ORDER BY event_date `+direction+`, id ASC
LIMIT 1
`, taskID)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("timeline boundary event: %w", err)
	}
	return &event, nil
}

func (r *ResultRepository) count(ctx context.Context, table string, where *whereBuilder) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` `+where.String(), where.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func (r *ResultRepository) queryWords(ctx context.Context, query string, args ...any) ([]domain.WordFrequencyRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list word frequencies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WordFrequencyRecord, 0)
	for rows.Next() {
		var record domain.WordFrequencyRecord
		var category string
		if err := rows.Scan(&record.ID, &record.TaskID, &record.Word, &category, &record.Frequency, &record.RelevanceScore, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan word frequency: %w", err)
		}
		record.Category = domain.Category(category)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate word frequencies: %w", err)
	}
	return out, nil
}

func (r *ResultRepository) queryEvents(ctx context.Context, query string, args ...any) ([]domain.TimelineEventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TimelineEventRecord, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return out, nil
}

func (r *ResultRepository) queryLocations(ctx context.Context, query string, args ...any) ([]domain.GeoLocationRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list geo locations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GeoLocationRecord, 0)
	for rows.Next() {
		var record domain.GeoLocationRecord
		var locationType string
		var metadata []byte
		if err := rows.Scan(
			&record.ID, &record.TaskID, &record.LocationName, &record.Latitude, &record.Longitude,
			&locationType, &metadata, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan geo location: %w", err)
		}
		record.LocationType = domain.LocationType(locationType)
		if len(metadata) > 0 {
			record.Metadata = metadata
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geo locations: %w", err)
	}
	return out, nil
}

func scanEvent(row rowScanner) (domain.TimelineEventRecord, error) {
	var event domain.TimelineEventRecord
	var metadata []byte
	if err := row.Scan(&event.ID, &event.TaskID, &event.EventName, &event.Description, &event.EventDate, &metadata, &event.CreatedAt); err != nil {
		return domain.TimelineEventRecord{}, err
	}
	if len(metadata) > 0 {
		event.Metadata = metadata
	}
	return event, nil
}
