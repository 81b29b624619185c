package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

const sweepBatchSize = 500

// MaintenanceUseCase runs housekeeping over the task table.
type MaintenanceUseCase struct {
	tasks      ports.AnalysisRepository
	dispatcher ports.TaskDispatcher
	timeout    time.Duration
	batchSize  int

	now func() time.Time
}

func NewMaintenanceUseCase(tasks ports.AnalysisRepository, dispatcher ports.TaskDispatcher, timeout time.Duration) *MaintenanceUseCase {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &MaintenanceUseCase{
		tasks:      tasks,
		dispatcher: dispatcher,
		timeout:    timeout,
		batchSize:  sweepBatchSize,
		now:        time.Now,
	}
}

// CleanupFailedBefore deletes FAILED tasks created strictly before cutoff.
func (uc *MaintenanceUseCase) CleanupFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, domain.WrapError(domain.ErrInvalidInput, "cleanup failed analyses", errors.New("cutoff is required"))
	}
	deleted, err := uc.tasks.DeleteFailedBefore(ctx, cutoff.UTC())
	if err != nil {
		return 0, persistenceError("cleanup failed analyses", err)
	}
	slog.Info("analysis_cleanup_done", "cutoff", cutoff.UTC(), "deleted", deleted)
	return deleted, nil
}

// FailTimedOut moves PROCESSING tasks that started more than the analysis
// timeout ago to FAILED.
func (uc *MaintenanceUseCase) FailTimedOut(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	stale, err := uc.tasks.ListStale(ctx, domain.StatusProcessing, now.Add(-uc.timeout), sweepBatchSize)
	if err != nil {
		return 0, persistenceError("list timed out analyses", err)
	}

	failed := 0
	for _, task := range stale {
		applied, err := uc.tasks.MarkFailed(ctx, task.ID, task.Attempt, domain.TimedOutMessage, now)
		if err != nil {
			return failed, persistenceError("fail timed out analysis", err)
		}
		if applied {
			failed++
			slog.Warn("analysis_task_timed_out", "task_id", task.ID, "kind", task.Kind, "started_at", task.StartedAt)
		}
	}
	return failed, nil
}

// RecoverPending re-dispatches every PENDING task created before the call,
// for example after an in-process queue was lost on restart. It pages through
// the backlog and waits for queue room when the dispatcher supports it.
// Execution ignores duplicates.
func (uc *MaintenanceUseCase) RecoverPending(ctx context.Context) (int, error) {
	createdBefore := uc.now().UTC()
	var cursor domain.TaskCursor

	dispatched := 0
	for {
		pending, err := uc.tasks.ListPendingAfter(ctx, createdBefore, cursor, uc.batchSize)
		if err != nil {
			return dispatched, persistenceError("list pending analyses", err)
		}
		for _, task := range pending {
			if err := uc.redispatch(ctx, task.ID); err != nil {
				if ctx.Err() != nil {
					return dispatched, ctx.Err()
				}
				slog.Warn("analysis_task_recover_failed", "task_id", task.ID, "error", err)
				continue
			}
			dispatched++
		}
		if len(pending) < uc.batchSize {
			break
		}
		last := pending[len(pending)-1]
		cursor = domain.TaskCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if dispatched > 0 {
		slog.Info("analysis_pending_recovered", "dispatched", dispatched)
	}
	return dispatched, nil
}

func (uc *MaintenanceUseCase) redispatch(ctx context.Context, taskID string) error {
	if blocking, ok := uc.dispatcher.(ports.BlockingDispatcher); ok {
		return blocking.Submit(ctx, taskID)
	}
	return uc.dispatcher.Dispatch(ctx, taskID)
}
