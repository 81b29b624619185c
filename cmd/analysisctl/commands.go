package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/historical-text-analysis/internal/bootstrap"
	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
	"github.com/kirillkom/historical-text-analysis/internal/observability/logging"
)

// backend is the slice of the application the CLI drives.
type backend struct {
	tasks       ports.AnalysisRepository
	maintenance ports.AnalysisMaintainer
	close       func()
}

type opener func(ctx context.Context) (*backend, error)

func openApp(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "analysisctl", cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "analysisctl"})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &backend{tasks: app.Tasks, maintenance: app.MaintenanceUC, close: app.Close}, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "analysisctl",
		Short:        "Maintain historical text analysis tasks",
		SilenceUsage: true,
	}
	root.AddCommand(
		newCleanupCmd(open),
		newTimeoutsCmd(open),
		newRecoverCmd(open),
		newStatsCmd(open),
	)
	return root
}

func newCleanupCmd(open opener) *cobra.Command {
	var (
		before    string
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete FAILED analyses created before a cutoff",
		Long: `Delete FAILED analyses created strictly before the cutoff.

Give either --before (RFC3339 timestamp or YYYY-MM-DD) or --older-than (e.g. 720h).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cutoff, err := resolveCutoff(before, olderThan, time.Now())
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(b *backend) error {
				deleted, err := b.maintenance.CleanupFailedBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"cutoff": cutoff, "deleted": deleted})
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Cutoff timestamp (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Cutoff as an age relative to now")
	return cmd
}

func newTimeoutsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "timeouts",
		Short: "Fail PROCESSING analyses that exceeded the analysis timeout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b *backend) error {
				failed, err := b.maintenance.FailTimedOut(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"failed": failed})
			})
		},
	}
}

func newRecoverCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-dispatch PENDING analyses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b *backend) error {
				dispatched, err := b.maintenance.RecoverPending(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"dispatched": dispatched})
			})
		},
	}
}

func newStatsCmd(open opener) *cobra.Command {
	var filter domain.AnalysisFilter
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print task counts by status and kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b *backend) error {
				stats, err := b.tasks.Statistics(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
	cmd.Flags().StringVar(&filter.ProjectID, "project", "", "Only tasks of this project")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "Only tasks created by this user")
	return cmd
}

func withBackend(cmd *cobra.Command, open opener, run func(b *backend) error) error {
	b, err := open(cmd.Context())
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return run(b)
}

func resolveCutoff(before string, olderThan time.Duration, now time.Time) (time.Time, error) {
	before = strings.TrimSpace(before)
	switch {
	case before != "" && olderThan != 0:
		return time.Time{}, errors.New("use either --before or --older-than, not both")
	case olderThan > 0:
		return now.Add(-olderThan).UTC(), nil
	case olderThan < 0:
		return time.Time{}, errors.New("--older-than must be positive")
	case before == "":
		return time.Time{}, errors.New("a cutoff is required: --before or --older-than")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, before); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --before %q: want RFC3339 or YYYY-MM-DD", before)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
