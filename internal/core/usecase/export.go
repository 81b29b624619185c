package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

const exportTimestampLayout = "20060102_150405"

// Export serializes a completed task and its records and stores the artifact.
func (uc *ResultQueryUseCase) Export(ctx context.Context, taskID, userID string, format domain.ExportFormat) (domain.ExportArtifact, error) {
	task, err := uc.guard.authorizeTask(ctx, taskID, userID)
	if err != nil {
		return domain.ExportArtifact{}, err
	}
	encoder, ok := uc.encoders[format]
	if !ok {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrInvalidInput, "export analysis", fmt.Errorf("unsupported export format %q", format))
	}
	if task.Status != domain.StatusCompleted {
		return domain.ExportArtifact{}, illegalTransition("export analysis", task)
	}

	results, err := uc.results.LoadResults(ctx, task.ID)
	if err != nil {
		return domain.ExportArtifact{}, persistenceError("load analysis results", err)
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, domain.AnalysisReport{Task: *task, Results: results}); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("encode %s export: %w", format, err)
	}
	size := int64(buf.Len())

	now := uc.now().UTC()
	key := fmt.Sprintf("exports/analysis_%s_%s.%s", task.ID, now.Format(exportTimestampLayout), encoder.Extension())
	path, err := uc.storage.Save(ctx, key, &buf)
	if err != nil {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrPersistence, "store export artifact", err)
	}

	slog.Info("analysis_exported", "task_id", task.ID, "format", format, "path", path, "bytes", size)
	return domain.ExportArtifact{
		TaskID:      task.ID,
		Format:      format,
		Path:        path,
		ContentType: encoder.ContentType(),
		SizeBytes:   size,
		CreatedAt:   now,
	}, nil
}
