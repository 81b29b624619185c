package domain

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// SortOrder names one sortable column and its direction.
type SortOrder struct {
	Column string
	Desc   bool
}

// TaskCursor is a keyset position over tasks ordered by (CreatedAt, ID).
// The zero value starts from the beginning.
type TaskCursor struct {
	CreatedAt time.Time
	ID        string
}

// PageRequest uses zero-based page numbers.
type PageRequest struct {
	Page   int
	Size   int
	SortBy string
	Desc   bool
}

// Normalize clamps paging bounds and restricts SortBy to the allowed columns.
// An unknown or empty sort column falls back to fallback.
func (p PageRequest) Normalize(fallback SortOrder, allowed ...string) PageRequest {
	out := p
	if out.Page < 0 {
		out.Page = 0
	}
	if out.Size <= 0 {
		out.Size = DefaultPageSize
	}
	if out.Size > MaxPageSize {
		out.Size = MaxPageSize
	}

	sortBy := strings.ToLower(strings.TrimSpace(out.SortBy))
	for _, column := range allowed {
		if sortBy == column {
			out.SortBy = column
			return out
		}
	}
	out.SortBy = fallback.Column
	out.Desc = fallback.Desc
	return out
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		Total:      total,
		TotalPages: pages,
	}
}
