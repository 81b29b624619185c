package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type AnalysisKind string

const (
	KindWordFrequency    AnalysisKind = "WORD_FREQUENCY"
	KindTimeline         AnalysisKind = "TIMELINE"
	KindGeography        AnalysisKind = "GEOGRAPHY"
	KindTextSummary      AnalysisKind = "TEXT_SUMMARY"
	KindMultidimensional AnalysisKind = "MULTIDIMENSIONAL"
)

var analysisKinds = []AnalysisKind{
	KindWordFrequency,
	KindTimeline,
	KindGeography,
	KindTextSummary,
	KindMultidimensional,
}

// AnalysisKinds returns every supported kind in declaration order.
func AnalysisKinds() []AnalysisKind {
	out := make([]AnalysisKind, len(analysisKinds))
	copy(out, analysisKinds)
	return out
}

// ParseAnalysisKind accepts both the canonical form (WORD_FREQUENCY) and the
// URL slug form (word-frequency).
func ParseAnalysisKind(raw string) (AnalysisKind, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "GEOGRAPHIC" {
		normalized = string(KindGeography)
	}
	for _, kind := range analysisKinds {
		if string(kind) == normalized {
			return kind, true
		}
	}
	return "", false
}

func (k AnalysisKind) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", "-")
}

// Label is the lower-case name used in messages, e.g. "word frequency".
func (k AnalysisKind) Label() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", " ")
}

// RequiresFiles reports whether a task of this kind must reference at least one file.
func (k AnalysisKind) RequiresFiles() bool {
	return k != KindWordFrequency
}

type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "PENDING"
	StatusProcessing AnalysisStatus = "PROCESSING"
	StatusCompleted  AnalysisStatus = "COMPLETED"
	StatusFailed     AnalysisStatus = "FAILED"
)

func ParseAnalysisStatus(raw string) (AnalysisStatus, bool) {
	switch status := AnalysisStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return status, true
	default:
		return "", false
	}
}

func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress is a coarse percentage derived from status only.
func (s AnalysisStatus) Progress() int {
	switch s {
	case StatusProcessing:
		return 50
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

const (
	CancelledMessage = "analysis cancelled by user"
	TimedOutMessage  = "analysis timed out"
	NoContentMessage = "no analyzable text content"
)

// AnalysisTask is one requested analysis job and its lifecycle state.
type AnalysisTask struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	UserID           string          `json:"user_id"`
	Kind             AnalysisKind    `json:"kind"`
	Status           AnalysisStatus  `json:"status"`
	FileIDs          []string        `json:"file_ids"`
	Description      string          `json:"description,omitempty"`
	Parameters       json.RawMessage `json:"parameters,omitempty"`
	ResultSnapshot   json.RawMessage `json:"result_snapshot,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Attempt          int             `json:"attempt"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ProcessingTimeMS *int64          `json:"processing_time_ms,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type TaskProgress struct {
	TaskID       string         `json:"task_id"`
	Status       AnalysisStatus `json:"status"`
	Progress     int            `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// AnalysisParameters are the optional tuning knobs stored in AnalysisTask.Parameters.
type AnalysisParameters struct {
	MaxResults   int    `json:"max_results,omitempty"`
	MinLength    int    `json:"min_length,omitempty"`
	SummaryType  string `json:"summary_type,omitempty"`
	MaxSentences int    `json:"max_sentences,omitempty"`
}

// WithDefaults fills zero values with the NLP engine defaults.
func (p AnalysisParameters) WithDefaults() AnalysisParameters {
	if p.MaxResults <= 0 {
		p.MaxResults = DefaultMaxResults
	}
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinWordLength
	}
	if strings.TrimSpace(p.SummaryType) == "" {
		p.SummaryType = DefaultSummaryType
	}
	if p.MaxSentences <= 0 {
		p.MaxSentences = DefaultSummarySentences
	}
	return p
}

// DecodeParameters reads the task parameter blob. An empty blob yields defaults.
func DecodeParameters(raw json.RawMessage) (AnalysisParameters, error) {
	var params AnalysisParameters
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return params.WithDefaults(), nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return AnalysisParameters{}, err
	}
	return params.WithDefaults(), nil
}

// CreateAnalysisInput carries everything needed to register a new task.
type CreateAnalysisInput struct {
	ProjectID   string          `json:"project_id"`
	UserID      string          `json:"-"`
	Kind        AnalysisKind    `json:"kind"`
	FileIDs     []string        `json:"file_ids"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// StatisticsScope selects the population for aggregate statistics.
// Both fields empty means every task in the system.
type StatisticsScope struct {
	ProjectID string
	UserID    string
}

type ExportFormat string

const (
	ExportJSON  ExportFormat = "json"
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
)

func ParseExportFormat(raw string) (ExportFormat, bool) {
	switch format := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case ExportJSON, ExportCSV, ExportExcel:
		return format, true
	case "xlsx":
		return ExportExcel, true
	default:
		return "", false
	}
}

type ExportArtifact struct {
	TaskID      string       `json:"task_id"`
	Format      ExportFormat `json:"format"`
	Path        string       `json:"path"`
	ContentType string       `json:"content_type"`
	SizeBytes   int64        `json:"size_bytes"`
	CreatedAt   time.Time    `json:"created_at"`
}
