package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

type fakeMaintenance struct {
	ports.AnalysisMaintainer

	cutoff time.Time
}

func (f *fakeMaintenance) CleanupFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 4, nil
}

func (f *fakeMaintenance) FailTimedOut(context.Context) (int, error) {
	return 2, nil
}

type fakeTasks struct {
	ports.AnalysisRepository

	filter domain.AnalysisFilter
}

func (f *fakeTasks) Statistics(_ context.Context, filter domain.AnalysisFilter) (domain.AnalysisStatistics, error) {
	f.filter = filter
	stats := domain.NewAnalysisStatistics()
	stats.Total = 3
	return stats, nil
}

func runCommand(t *testing.T, b *backend, args ...string) (string, error) {
	t.Helper()
	closed := false
	b.close = func() { closed = true }

	root := newRootCmd(func(context.Context) (*backend, error) { return b, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil && !closed {
		t.Fatalf("expected backend to be closed")
	}
	return out.String(), err
}

func TestResolveCutoff(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

	got, err := resolveCutoff("2024-05-01", 0, now)
	if err != nil || !got.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date cutoff = %v, %v", got, err)
	}
	got, err = resolveCutoff("", 48*time.Hour, now)
	if err != nil || !got.Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("relative cutoff = %v, %v", got, err)
	}
	for _, tc := range []struct {
		before    string
		olderThan time.Duration
	}{
		{"", 0},
		{"2024-05-01", time.Hour},
		{"yesterday", 0},
		{"", -time.Hour},
	} {
		if _, err := resolveCutoff(tc.before, tc.olderThan, now); err == nil {
			t.Fatalf("expected error for %+v", tc)
		}
	}
}

func TestCleanupCommandPassesCutoff(t *testing.T) {
	maintenance := &fakeMaintenance{}
	out, err := runCommand(t, &backend{maintenance: maintenance}, "cleanup", "--before", "2024-05-01T00:00:00Z")
	if err != nil {
		t.Fatalf("cleanup error = %v", err)
	}
	if !maintenance.cutoff.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected cutoff %v", maintenance.cutoff)
	}
	if !strings.Contains(out, `"deleted": 4`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCleanupCommandRequiresCutoff(t *testing.T) {
	if _, err := runCommand(t, &backend{maintenance: &fakeMaintenance{}}, "cleanup"); err == nil {
		t.Fatalf("expected error without cutoff")
	}
}

func TestTimeoutsCommand(t *testing.T) {
	out, err := runCommand(t, &backend{maintenance: &fakeMaintenance{}}, "timeouts")
	if err != nil {
		t.Fatalf("timeouts error = %v", err)
	}
	if !strings.Contains(out, `"failed": 2`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatsCommandFilters(t *testing.T) {
	tasks := &fakeTasks{}
	out, err := runCommand(t, &backend{tasks: tasks}, "stats", "--project", "p-1")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if tasks.filter.ProjectID != "p-1" || tasks.filter.UserID != "" {
		t.Fatalf("unexpected filter %+v", tasks.filter)
	}

	var stats domain.AnalysisStatistics
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if stats.Total != 3 || stats.ByStatus[domain.StatusFailed] != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
