package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

func TestCleanupFailedBeforeOnlyDeletesOldFailedTasks(t *testing.T) {
	h := newHarness()
	cutoff := h.clock
	h.seedTask("old-failed", domain.KindTimeline, domain.StatusFailed, cutoff.Add(-time.Hour))
	h.seedTask("at-cutoff", domain.KindTimeline, domain.StatusFailed, cutoff)
	h.seedTask("new-failed", domain.KindTimeline, domain.StatusFailed, cutoff.Add(time.Hour))
	h.seedTask("old-completed", domain.KindTimeline, domain.StatusCompleted, cutoff.Add(-time.Hour))
	h.seedTask("old-pending", domain.KindTimeline, domain.StatusPending, cutoff.Add(-time.Hour))

	deleted, err := h.maintenance.CleanupFailedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("CleanupFailedBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	for _, id := range []string{"at-cutoff", "new-failed", "old-completed", "old-pending"} {
		if _, ok := h.repo.snapshot(id); !ok {
			t.Fatalf("expected %s to survive", id)
		}
	}
}

func TestCleanupFailedBeforeRequiresCutoff(t *testing.T) {
	h := newHarness()
	if _, err := h.maintenance.CleanupFailedBefore(context.Background(), time.Time{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFailTimedOutOnlyTouchesStaleProcessing(t *testing.T) {
	h := newHarness()
	h.seedTask("stale", domain.KindTimeline, domain.StatusProcessing, h.clock.Add(-time.Hour))
	h.seedTask("fresh", domain.KindTimeline, domain.StatusProcessing, h.clock.Add(-time.Minute))
	h.seedTask("waiting", domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Hour))

	failed, err := h.maintenance.FailTimedOut(context.Background())
	if err != nil {
		t.Fatalf("FailTimedOut() error = %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 timed out task, got %d", failed)
	}
	stale, _ := h.repo.snapshot("stale")
	if stale.Status != domain.StatusFailed || stale.ErrorMessage != domain.TimedOutMessage {
		t.Fatalf("unexpected stale task %+v", stale)
	}
	for _, id := range []string{"fresh", "waiting"} {
		task, _ := h.repo.snapshot(id)
		if task.Status.IsTerminal() {
			t.Fatalf("expected %s to stay active", id)
		}
	}
}

func TestRecoverPendingRedispatches(t *testing.T) {
	h := newHarness()
	h.seedTask("p-a", domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Minute))
	h.seedTask("p-b", domain.KindTimeline, domain.StatusPending, h.clock.Add(-2*time.Minute))
	h.seedTask("done", domain.KindTimeline, domain.StatusCompleted, h.clock.Add(-time.Minute))

	dispatched, err := h.maintenance.RecoverPending(context.Background())
	if err != nil {
		t.Fatalf("RecoverPending() error = %v", err)
	}
	if dispatched != 2 || len(h.dispatcher.dispatched) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", dispatched)
	}
}

func TestRecoverPendingPagesAndWaitsForQueueRoom(t *testing.T) {
	h := newHarness()
	for i := 0; i < 5; i++ {
		h.seedTask(fmt.Sprintf("p-%d", i), domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Duration(i+1)*time.Minute))
	}
	h.seedTask("p-same-a", domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Hour))
	h.seedTask("p-same-b", domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Hour))
	h.seedTask("p-future", domain.KindTimeline, domain.StatusPending, h.clock.Add(time.Minute))

	queue := &queueFake{}
	maintenance := NewMaintenanceUseCase(h.repo, queue, 5*time.Minute)
	maintenance.now = func() time.Time { return h.clock }
	maintenance.batchSize = 2

	dispatched, err := maintenance.RecoverPending(context.Background())
	if err != nil {
		t.Fatalf("RecoverPending() error = %v", err)
	}
	if dispatched != 7 {
		t.Fatalf("expected 7 recovered tasks, got %d (%v)", dispatched, queue.submitted)
	}
	want := []string{"p-same-a", "p-same-b", "p-4", "p-3", "p-2", "p-1", "p-0"}
	if !slices.Equal(queue.submitted, want) {
		t.Fatalf("submitted %v, want %v", queue.submitted, want)
	}
}

func TestRecoverPendingStopsWhenContextEnds(t *testing.T) {
	h := newHarness()
	h.seedTask("p-a", domain.KindTimeline, domain.StatusPending, h.clock.Add(-time.Minute))

	maintenance := NewMaintenanceUseCase(h.repo, &queueFake{}, 5*time.Minute)
	maintenance.now = func() time.Time { return h.clock }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatched, err := maintenance.RecoverPending(ctx)
	if !errors.Is(err, context.Canceled) || dispatched != 0 {
		t.Fatalf("expected cancellation with nothing dispatched, got %d, %v", dispatched, err)
	}
}
