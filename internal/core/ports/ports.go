// Package ports declares the boundaries between the analysis core and its adapters.
package ports

import "context"

// TaskHandler processes one analysis task by ID.
type TaskHandler func(ctx context.Context, taskID string) error
