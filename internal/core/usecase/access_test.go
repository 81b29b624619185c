package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

func TestHasProjectAccessAllowsOwnerAndAdmin(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if !h.guard.HasProjectAccess(ctx, "p-1", "u-owner") {
		t.Fatalf("expected owner to have access")
	}
	if !h.guard.HasProjectAccess(ctx, "p-1", "u-admin") {
		t.Fatalf("expected admin to have access")
	}
	if h.guard.HasProjectAccess(ctx, "p-1", "u-other") {
		t.Fatalf("expected non-owner to be denied")
	}
}

func TestHasProjectAccessDeniesUnknownEntities(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if h.guard.HasProjectAccess(ctx, "missing", "u-owner") {
		t.Fatalf("expected unknown project to be denied")
	}
	if h.guard.HasProjectAccess(ctx, "p-1", "ghost") {
		t.Fatalf("expected unknown user to be denied")
	}
	if h.guard.HasProjectAccess(ctx, "", "u-owner") {
		t.Fatalf("expected blank project to be denied")
	}
}

func TestHasProjectAccessFailsClosedOnLookupError(t *testing.T) {
	h := newHarness()
	h.directory.err = errors.New("directory unavailable")

	if h.guard.HasProjectAccess(context.Background(), "p-1", "u-owner") {
		t.Fatalf("expected lookup failure to deny access")
	}
	if h.guard.IsAdmin(context.Background(), "u-admin") {
		t.Fatalf("expected lookup failure to deny admin")
	}
}

func TestHasAnalysisAccessFollowsProjectAccess(t *testing.T) {
	h := newHarness()
	h.seedTask("t-1", domain.KindTimeline, domain.StatusPending, time.Now())
	ctx := context.Background()

	if !h.guard.HasAnalysisAccess(ctx, "t-1", "u-owner") {
		t.Fatalf("expected owner to access analysis")
	}
	if h.guard.HasAnalysisAccess(ctx, "t-1", "u-other") {
		t.Fatalf("expected non-owner to be denied")
	}
	if h.guard.HasAnalysisAccess(ctx, "missing", "u-owner") {
		t.Fatalf("expected unknown analysis to be denied")
	}
}

func TestAuthorizeTaskDistinguishesNotFoundFromForbidden(t *testing.T) {
	h := newHarness()
	h.seedTask("t-1", domain.KindTimeline, domain.StatusPending, time.Now())
	ctx := context.Background()

	_, err := h.guard.authorizeTask(ctx, "missing", "u-owner")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = h.guard.authorizeTask(ctx, "t-1", "u-other")
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
