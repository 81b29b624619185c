package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// assembleInput joins the readable file contents with newlines. Unreadable
// or blank files are skipped. Word-frequency tasks fall back to a built-in
// sample paragraph when nothing is left.
func (uc *ExecuteAnalysisUseCase) assembleInput(ctx context.Context, task *domain.AnalysisTask) (string, error) {
	parts := make([]string, 0, len(task.FileIDs))
	for _, fileID := range task.FileIDs {
		content, err := uc.files.GetFileContent(ctx, fileID, task.UserID)
		if err != nil {
			slog.Warn("analysis_file_skipped", "task_id", task.ID, "file_id", fileID, "error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			slog.Warn("analysis_file_skipped", "task_id", task.ID, "file_id", fileID, "reason", "empty")
			continue
		}
		parts = append(parts, content)
	}

	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}
	if task.Kind == domain.KindWordFrequency {
		slog.Info("analysis_sample_text_used", "task_id", task.ID)
		return domain.SampleHistoricalText, nil
	}
	err := domain.WrapError(domain.ErrInvalidInput, "assemble analysis input", errors.New(domain.NoContentMessage))
	return "", domain.WithMessage(err, domain.NoContentMessage)
}
