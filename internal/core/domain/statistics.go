package domain

import "time"

// AnalysisFilter narrows task listings and aggregates. Empty fields match everything.
type AnalysisFilter struct {
	ProjectID     string
	UserID        string
	Kind          AnalysisKind
	Status        AnalysisStatus
	Keyword       string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

type AnalysisStatistics struct {
	Total    int64                    `json:"total"`
	ByStatus map[AnalysisStatus]int64 `json:"by_status"`
	ByKind   map[AnalysisKind]int64   `json:"by_kind"`
}

func NewAnalysisStatistics() AnalysisStatistics {
	stats := AnalysisStatistics{
		ByStatus: make(map[AnalysisStatus]int64, 4),
		ByKind:   make(map[AnalysisKind]int64, len(analysisKinds)),
	}
	for _, status := range []AnalysisStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		stats.ByStatus[status] = 0
	}
	for _, kind := range analysisKinds {
		stats.ByKind[kind] = 0
	}
	return stats
}

// ProcessingStats aggregates ProcessingTimeMS over completed tasks of one kind.
type ProcessingStats struct {
	Kind  AnalysisKind `json:"kind"`
	Count int64        `json:"count"`
	AvgMS float64      `json:"avg_ms"`
	MinMS int64        `json:"min_ms"`
	MaxMS int64        `json:"max_ms"`
}

type ProjectOverview struct {
	ProjectID  string             `json:"project_id"`
	Statistics AnalysisStatistics `json:"statistics"`
	Processing []ProcessingStats  `json:"processing"`
	Recent     []AnalysisTask     `json:"recent"`
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
}

type LocationTypeCount struct {
	LocationType LocationType `json:"location_type"`
	Count        int64        `json:"count"`
}

type TimelineStatistics struct {
	Count    int64                `json:"count"`
	Dated    int64                `json:"dated"`
	Earliest *TimelineEventRecord `json:"earliest,omitempty"`
	Latest   *TimelineEventRecord `json:"latest,omitempty"`
}

// ResultStatistics summarizes the child records of one task.
type ResultStatistics struct {
	TaskID        string              `json:"task_id"`
	WordCount     int64               `json:"word_count"`
	Categories    []CategoryCount     `json:"categories"`
	LocationCount int64               `json:"location_count"`
	LocationTypes []LocationTypeCount `json:"location_types"`
	Timeline      TimelineStatistics  `json:"timeline"`
}
