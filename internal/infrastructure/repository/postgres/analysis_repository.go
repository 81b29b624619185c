package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

const taskColumns = `id, project_id, user_id, kind, status, file_ids, description, parameters, result_snapshot,
	error_message, attempt, created_at, started_at, completed_at, processing_time_ms, updated_at`

var taskSortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"completed_at": "completed_at",
	"status":       "status",
	"kind":         "kind",
}

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, task *domain.AnalysisTask) error {
	fileIDs, err := json.Marshal(task.FileIDs)
	if err != nil {
		return fmt.Errorf("marshal file ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_tasks (
	id, project_id, user_id, kind, status, file_ids, description, parameters, error_message, attempt, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		task.ID, task.ProjectID, task.UserID, string(task.Kind), string(task.Status), string(fileIDs),
		task.Description, nullableJSON(task.Parameters), task.ErrorMessage, task.Attempt, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis task: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisTask, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM analysis_tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis task", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get analysis task: %w", err)
	}
	return &task, nil
}

// Delete removes the task; child records go with it through ON DELETE CASCADE.
func (r *AnalysisRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM analysis_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis task rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete analysis task", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *AnalysisRepository) MarkProcessing(ctx context.Context, id string, attempt int, startedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE analysis_tasks
SET status = 'PROCESSING', started_at = $3, updated_at = $3
WHERE id = $1 AND attempt = $2 AND status = 'PENDING'
`, id, attempt, startedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("mark analysis processing: %w", err)
	}
	return applied(result, "mark analysis processing")
}

// Complete stores the snapshot and child records in one transaction. Nothing
// is written when the task is no longer PROCESSING at the given attempt.
func (r *AnalysisRepository) Complete(
	ctx context.Context,
	id string,
	attempt int,
	snapshot json.RawMessage,
	results domain.AnalysisResults,
	completedAt time.Time,
) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE analysis_tasks
SET status = 'COMPLETED', result_snapshot = $3, completed_at = $4, updated_at = $4, error_message = '',
	processing_time_ms = CAST(EXTRACT(EPOCH FROM ($4 - COALESCE(started_at, $4))) * 1000 AS BIGINT)
WHERE id = $1 AND attempt = $2 AND status = 'PROCESSING'
`, id, attempt, nullableJSON(snapshot), completedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("complete analysis task: %w", err)
	}
	ok, err := applied(result, "complete analysis task")
	if err != nil || !ok {
		return false, err
	}

	if err := insertResults(ctx, tx, results); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit complete tx: %w", err)
	}
	return true, nil
}

func (r *AnalysisRepository) MarkFailed(ctx context.Context, id string, attempt int, message string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE analysis_tasks
SET status = 'FAILED', error_message = $3, completed_at = $4, updated_at = $4,
	processing_time_ms = CASE WHEN started_at IS NULL THEN NULL
		ELSE CAST(EXTRACT(EPOCH FROM ($4 - started_at)) * 1000 AS BIGINT) END
WHERE id = $1 AND attempt = $2 AND status IN ('PENDING', 'PROCESSING')
`, id, attempt, message, at.UTC())
	if err != nil {
		return false, fmt.Errorf("mark analysis failed: %w", err)
	}
	return applied(result, "mark analysis failed")
}

// Reset returns a terminal task to PENDING under the next attempt and drops
// the records of the previous run.
func (r *AnalysisRepository) Reset(ctx context.Context, id string, attempt int, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE analysis_tasks
SET status = 'PENDING', attempt = attempt + 1, started_at = NULL, completed_at = NULL,
	processing_time_ms = NULL, error_message = '', result_snapshot = NULL, updated_at = $3
WHERE id = $1 AND attempt = $2 AND status IN ('COMPLETED', 'FAILED')
`, id, attempt, at.UTC())
	if err != nil {
		return false, fmt.Errorf("reset analysis task: %w", err)
	}
	ok, err := applied(result, "reset analysis task")
	if err != nil || !ok {
		return false, err
	}

	for _, table := range []string{"word_frequency_results", "timeline_events", "geo_locations"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE task_id = $1`, id); err != nil {
			return false, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reset tx: %w", err)
	}
	return true, nil
}

func (r *AnalysisRepository) List(ctx context.Context, filter domain.AnalysisFilter, page domain.PageRequest) (domain.Page[domain.AnalysisTask], error) {
	where := filterConditions(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_tasks `+where.String(), where.args...).Scan(&total); err != nil {
		return domain.Page[domain.AnalysisTask]{}, fmt.Errorf("count analysis tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM analysis_tasks ` + where.String() + ` ` + where.pageClause(page, taskSortColumns, "created_at")
	tasks, err := r.queryTasks(ctx, query, where.args...)
	if err != nil {
		return domain.Page[domain.AnalysisTask]{}, err
	}
	return domain.NewPage(tasks, page, total), nil
}

// ListStale returns tasks in status whose start (or creation, when never
// started) is before the cutoff, oldest first.
func (r *AnalysisRepository) ListStale(ctx context.Context, status domain.AnalysisStatus, before time.Time, limit int) ([]domain.AnalysisTask, error) {
	return r.queryTasks(ctx, `
SELECT `+taskColumns+`
FROM analysis_tasks
WHERE status = $1 AND COALESCE(started_at, created_at) < $2
ORDER BY created_at ASC
LIMIT $3
`, string(status), before.UTC(), limit)
}

// ListPendingAfter pages PENDING tasks created before createdBefore in
// (created_at, id) order, starting after the cursor.
func (r *AnalysisRepository) ListPendingAfter(ctx context.Context, createdBefore time.Time, after domain.TaskCursor, limit int) ([]domain.AnalysisTask, error) {
	return r.queryTasks(ctx, `
SELECT `+taskColumns+`
FROM analysis_tasks
WHERE status = 'PENDING' AND created_at < $1 AND (created_at, id) > ($2, $3)
ORDER BY created_at ASC, id ASC
LIMIT $4
`, createdBefore.UTC(), after.CreatedAt.UTC(), after.ID, limit)
}

func (r *AnalysisRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM analysis_tasks WHERE status = 'FAILED' AND created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete failed analyses: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete failed analyses rows affected: %w", err)
	}
	return deleted, nil
}

func (r *AnalysisRepository) Statistics(ctx context.Context, filter domain.AnalysisFilter) (domain.AnalysisStatistics, error) {
	where := filterConditions(filter)
	rows, err := r.db.QueryContext(ctx, `
SELECT status, kind, COUNT(*)
FROM analysis_tasks `+where.String()+`
GROUP BY status, kind
`, where.args...)
	if err != nil {
		return domain.AnalysisStatistics{}, fmt.Errorf("analysis statistics: %w", err)
	}
	defer rows.Close()

	stats := domain.NewAnalysisStatistics()
	for rows.Next() {
		var status, kind string
		var count int64
		if err := rows.Scan(&status, &kind, &count); err != nil {
			return domain.AnalysisStatistics{}, fmt.Errorf("scan analysis statistics: %w", err)
		}
		stats.Total += count
		stats.ByStatus[domain.AnalysisStatus(status)] += count
		stats.ByKind[domain.AnalysisKind(kind)] += count
	}
	if err := rows.Err(); err != nil {
		return domain.AnalysisStatistics{}, fmt.Errorf("iterate analysis statistics: %w", err)
	}
	return stats, nil
}

func (r *AnalysisRepository) ProcessingStats(ctx context.Context, filter domain.AnalysisFilter) ([]domain.ProcessingStats, error) {
	filter.Status = domain.StatusCompleted
	where := filterConditions(filter)
	where.clauses = append(where.clauses, "processing_time_ms IS NOT NULL")

	rows, err := r.db.QueryContext(ctx, `
SELECT kind, COUNT(*), AVG(processing_time_ms)::DOUBLE PRECISION, MIN(processing_time_ms), MAX(processing_time_ms)
FROM analysis_tasks `+where.String()+`
GROUP BY kind
ORDER BY kind
`, where.args...)
	if err != nil {
		return nil, fmt.Errorf("processing statistics: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProcessingStats, 0)
	for rows.Next() {
		var stats domain.ProcessingStats
		var kind string
		if err := rows.Scan(&kind, &stats.Count, &stats.AvgMS, &stats.MinMS, &stats.MaxMS); err != nil {
			return nil, fmt.Errorf("scan processing statistics: %w", err)
		}
		stats.Kind = domain.AnalysisKind(kind)
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing statistics: %w", err)
	}
	return out, nil
}

func (r *AnalysisRepository) queryTasks(ctx context.Context, query string, args ...any) ([]domain.AnalysisTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analysis tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnalysisTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis tasks: %w", err)
	}
	return out, nil
}

func insertResults(ctx context.Context, tx *sql.Tx, results domain.AnalysisResults) error {
	for _, w := range results.WordFrequencies {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO word_frequency_results (id, task_id, word, category, frequency, relevance_score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, w.ID, w.TaskID, w.Word, string(w.Category), w.Frequency, w.RelevanceScore, w.CreatedAt); err != nil {
			return fmt.Errorf("insert word frequency: %w", err)
		}
	}
	for _, e := range results.TimelineEvents {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO timeline_events (id, task_id, event_name, description, event_date, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, e.ID, e.TaskID, e.EventName, e.Description, e.EventDate, nullableJSON(e.Metadata), e.CreatedAt); err != nil {
			return fmt.Errorf("insert timeline event: %w", err)
		}
	}
	for _, g := range results.GeoLocations {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO geo_locations (id, task_id, location_name, latitude, longitude, location_type, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, g.ID, g.TaskID, g.LocationName, g.Latitude, g.Longitude, string(g.LocationType), nullableJSON(g.Metadata), g.CreatedAt); err != nil {
			return fmt.Errorf("insert geo location: %w", err)
		}
	}
	return nil
}

func applied(result sql.Result, op string) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return rows > 0, nil
}

func scanTask(row rowScanner) (domain.AnalysisTask, error) {
	var task domain.AnalysisTask
	var kind, status string
	var fileIDs, parameters, snapshot []byte
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.UserID,
		&kind,
		&status,
		&fileIDs,
		&task.Description,
		&parameters,
		&snapshot,
		&task.ErrorMessage,
		&task.Attempt,
		&task.CreatedAt,
		&task.StartedAt,
		&task.CompletedAt,
		&task.ProcessingTimeMS,
		&task.UpdatedAt,
	)
	if err != nil {
		return domain.AnalysisTask{}, err
	}
	task.Kind = domain.AnalysisKind(kind)
	task.Status = domain.AnalysisStatus(status)
	if len(fileIDs) > 0 {
		if err := json.Unmarshal(fileIDs, &task.FileIDs); err != nil {
			return domain.AnalysisTask{}, fmt.Errorf("unmarshal file ids: %w", err)
		}
	}
	if len(parameters) > 0 {
		task.Parameters = json.RawMessage(parameters)
	}
	if len(snapshot) > 0 {
		task.ResultSnapshot = json.RawMessage(snapshot)
	}
	return task, nil
}
