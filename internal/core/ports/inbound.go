package ports

import (
	"context"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// AnalysisManager is the inbound contract for the task lifecycle.
type AnalysisManager interface {
	Create(ctx context.Context, in domain.CreateAnalysisInput) (*domain.AnalysisTask, error)
	Get(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error)
	Delete(ctx context.Context, taskID, userID string) error
	DeleteMany(ctx context.Context, taskIDs []string, userID string) (int, error)
	ListByProject(ctx context.Context, projectID, userID string, filter domain.AnalysisFilter, page domain.PageRequest) (domain.Page[domain.AnalysisTask], error)
	ListRecent(ctx context.Context, projectID, userID string, days, limit int) ([]domain.AnalysisTask, error)
	Cancel(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error)
	Rerun(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error)
	Progress(ctx context.Context, taskID, userID string) (domain.TaskProgress, error)
}

// AnalysisExecutor runs one dispatched task to a terminal state.
type AnalysisExecutor interface {
	Execute(ctx context.Context, taskID string) error
}

// AnalysisResultReader exposes typed results, aggregates and exports.
type AnalysisResultReader interface {
	WordFrequencies(ctx context.Context, taskID, userID string, query domain.WordFrequencyQuery, page domain.PageRequest) (domain.Page[domain.WordFrequencyRecord], error)
	TimelineEvents(ctx context.Context, taskID, userID string, query domain.TimelineQuery, page domain.PageRequest) (domain.Page[domain.TimelineEventRecord], error)
	GeoLocations(ctx context.Context, taskID, userID string, query domain.GeoQuery, page domain.PageRequest) (domain.Page[domain.GeoLocationRecord], error)
	NearbyLocations(ctx context.Context, taskID, userID string, query domain.NearbyQuery) ([]domain.GeoLocationRecord, error)
	ResultStatistics(ctx context.Context, taskID, userID string) (domain.ResultStatistics, error)
	Statistics(ctx context.Context, userID string, scope domain.StatisticsScope) (domain.AnalysisStatistics, error)
	ProjectOverview(ctx context.Context, projectID, userID string) (domain.ProjectOverview, error)
	Export(ctx context.Context, taskID, userID string, format domain.ExportFormat) (domain.ExportArtifact, error)
}

// AnalysisMaintainer is the inbound contract for housekeeping jobs.
type AnalysisMaintainer interface {
	CleanupFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FailTimedOut(ctx context.Context) (int, error)
	RecoverPending(ctx context.Context) (int, error)
}

// AccessChecker answers authorization questions without raising errors.
type AccessChecker interface {
	HasProjectAccess(ctx context.Context, projectID, userID string) bool
	HasAnalysisAccess(ctx context.Context, taskID, userID string) bool
	IsAdmin(ctx context.Context, userID string) bool
}
