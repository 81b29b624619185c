package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// AnalysisRepository persists tasks. Every state-changing write is
// conditional on the current status and attempt and reports whether it applied.
type AnalysisRepository interface {
	Create(ctx context.Context, task *domain.AnalysisTask) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisTask, error)
	Delete(ctx context.Context, id string) error
	MarkProcessing(ctx context.Context, id string, attempt int, startedAt time.Time) (bool, error)
	Complete(ctx context.Context, id string, attempt int, snapshot json.RawMessage, results domain.AnalysisResults, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, attempt int, message string, at time.Time) (bool, error)
	Reset(ctx context.Context, id string, attempt int, at time.Time) (bool, error)
	List(ctx context.Context, filter domain.AnalysisFilter, page domain.PageRequest) (domain.Page[domain.AnalysisTask], error)
	ListStale(ctx context.Context, status domain.AnalysisStatus, before time.Time, limit int) ([]domain.AnalysisTask, error)
	ListPendingAfter(ctx context.Context, createdBefore time.Time, after domain.TaskCursor, limit int) ([]domain.AnalysisTask, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Statistics(ctx context.Context, filter domain.AnalysisFilter) (domain.AnalysisStatistics, error)
	ProcessingStats(ctx context.Context, filter domain.AnalysisFilter) ([]domain.ProcessingStats, error)
}

// ResultRepository reads typed child records. Writes happen inside AnalysisRepository.Complete.
type ResultRepository interface {
	ListWordFrequencies(ctx context.Context, taskID string, query domain.WordFrequencyQuery, page domain.PageRequest) (domain.Page[domain.WordFrequencyRecord], error)
	ListTimelineEvents(ctx context.Context, taskID string, query domain.TimelineQuery, page domain.PageRequest) (domain.Page[domain.TimelineEventRecord], error)
	ListGeoLocations(ctx context.Context, taskID string, query domain.GeoQuery, page domain.PageRequest) (domain.Page[domain.GeoLocationRecord], error)
	LoadResults(ctx context.Context, taskID string) (domain.AnalysisResults, error)
	CategoryCounts(ctx context.Context, taskID string) ([]domain.CategoryCount, error)
	LocationTypeCounts(ctx context.Context, taskID string) ([]domain.LocationTypeCount, error)
	TimelineStatistics(ctx context.Context, taskID string) (domain.TimelineStatistics, error)
}

// AccessDirectory resolves projects and users. Missing entries yield ErrNotFound.
type AccessDirectory interface {
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// DocumentDirectory resolves uploaded document metadata.
type DocumentDirectory interface {
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
}

// FileService reads document text on behalf of a user.
type FileService interface {
	GetFileContent(ctx context.Context, fileID, userID string) (string, error)
	HasFileAccess(ctx context.Context, fileID, userID string) (bool, error)
}

// NLPClient calls the external NLP engine. Responses are the raw JSON
// object returned as the engine's data payload.
type NLPClient interface {
	AnalyzeWordFrequency(ctx context.Context, text string, maxResults, minLength int) (json.RawMessage, error)
	AnalyzeTimeline(ctx context.Context, text string) (json.RawMessage, error)
	AnalyzeGeographic(ctx context.Context, text string) (json.RawMessage, error)
	AnalyzeSummary(ctx context.Context, text, summaryType string, maxSentences int) (json.RawMessage, error)
	AnalyzeMultidimensional(ctx context.Context, text string) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// TaskDispatcher hands a persisted task to asynchronous execution.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// BlockingDispatcher can also wait for queue room instead of failing fast.
type BlockingDispatcher interface {
	TaskDispatcher
	Submit(ctx context.Context, taskID string) error
}

// MessageQueue publishes and consumes analysis requests between processes.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, taskID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler TaskHandler) error
}

// ObjectStorage stores uploaded documents and export artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// ReportEncoder serializes an analysis report in one export format.
type ReportEncoder interface {
	Format() domain.ExportFormat
	Extension() string
	ContentType() string
	Encode(w io.Writer, report domain.AnalysisReport) error
}
