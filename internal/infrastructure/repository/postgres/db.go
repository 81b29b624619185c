package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	role TEXT NOT NULL DEFAULT 'USER',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	file_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	description TEXT NOT NULL DEFAULT '',
	parameters JSONB,
	result_snapshot JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	attempt INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	processing_time_ms BIGINT,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_tasks_project ON analysis_tasks(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_tasks_user ON analysis_tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_analysis_tasks_status ON analysis_tasks(status, created_at);

CREATE TABLE IF NOT EXISTS word_frequency_results (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES analysis_tasks(id) ON DELETE CASCADE,
	word TEXT NOT NULL,
	category TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_word_frequency_task ON word_frequency_results(task_id, frequency DESC);

CREATE TABLE IF NOT EXISTS timeline_events (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES analysis_tasks(id) ON DELETE CASCADE,
	event_name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	event_date DATE,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timeline_events_task ON timeline_events(task_id, event_date);

CREATE TABLE IF NOT EXISTS geo_locations (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES analysis_tasks(id) ON DELETE CASCADE,
	location_name TEXT NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	location_type TEXT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	CHECK ((latitude IS NULL) = (longitude IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_geo_locations_task ON geo_locations(task_id, location_type);
`

// EnsureSchema creates the tables used by the api, worker and CLI.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024050101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
// Each condition is a format string whose single %d is the argument index.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(condition string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf(condition, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// pageClause renders ORDER BY/LIMIT/OFFSET. Only whitelisted columns reach
// the SQL text; id breaks ties so pages are stable.
func (w *whereBuilder) pageClause(page domain.PageRequest, columns map[string]string, fallback string) string {
	column, ok := columns[page.SortBy]
	if !ok {
		column = fallback
	}
	if page.Size <= 0 {
		page.Size = domain.DefaultPageSize
	}
	direction := "ASC"
	if page.Desc {
		direction = "DESC"
	}
	w.args = append(w.args, page.Size, page.Offset())
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, id ASC LIMIT $%d OFFSET $%d", column, direction, len(w.args)-1, len(w.args))
}

func filterConditions(filter domain.AnalysisFilter) *whereBuilder {
	w := &whereBuilder{}
	if filter.ProjectID != "" {
		w.add("project_id = $%d", filter.ProjectID)
	}
	if filter.UserID != "" {
		w.add("user_id = $%d", filter.UserID)
	}
	if filter.Kind != "" {
		w.add("kind = $%d", string(filter.Kind))
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		w.add("description ILIKE $%d", "%"+escapeLike(keyword)+"%")
	}
	if filter.CreatedAfter != nil {
		w.add("created_at >= $%d", filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		w.add("created_at < $%d", filter.CreatedBefore.UTC())
	}
	return w
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
