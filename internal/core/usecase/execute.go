package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

const (
	DefaultAnalysisTimeout = 300 * time.Second
	finalWriteTimeout      = 10 * time.Second
)

// ExecuteAnalysisUseCase drives one PENDING task through PROCESSING to a terminal state.
type ExecuteAnalysisUseCase struct {
	tasks   ports.AnalysisRepository
	files   ports.FileService
	nlp     ports.NLPClient
	mapper  *ResultMapper
	timeout time.Duration

	now func() time.Time
}

func NewExecuteAnalysisUseCase(
	tasks ports.AnalysisRepository,
	files ports.FileService,
	nlp ports.NLPClient,
	mapper *ResultMapper,
	timeout time.Duration,
) *ExecuteAnalysisUseCase {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &ExecuteAnalysisUseCase{
		tasks:   tasks,
		files:   files,
		nlp:     nlp,
		mapper:  mapper,
		timeout: timeout,
		now:     time.Now,
	}
}

// Execute returns the failure that moved the task to FAILED, if any. A task
// that was cancelled, rerun or deleted while running is left untouched.
func (uc *ExecuteAnalysisUseCase) Execute(ctx context.Context, taskID string) error {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			slog.Info("analysis_task_skipped", "task_id", taskID, "reason", "not_found")
			return nil
		}
		return fmt.Errorf("fetch analysis task: %w", err)
	}
	if task.Status != domain.StatusPending {
		slog.Info("analysis_task_skipped", "task_id", taskID, "reason", "status", "status", task.Status)
		return nil
	}

	applied, err := uc.tasks.MarkProcessing(ctx, task.ID, task.Attempt, uc.now().UTC())
	if err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	if !applied {
		slog.Info("analysis_task_skipped", "task_id", taskID, "reason", "claimed_elsewhere")
		return nil
	}
	slog.Info("analysis_task_started", "task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt)

	mapped, err := uc.run(ctx, task)
	if err != nil {
		return uc.markFailed(ctx, task, err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	applied, err = uc.tasks.Complete(writeCtx, task.ID, task.Attempt, mapped.Snapshot, mapped.Results, uc.now().UTC())
	if err != nil {
		storeErr := domain.WrapError(domain.ErrPersistence, "store analysis results", err)
		return uc.markFailed(ctx, task, domain.WithMessage(storeErr, "failed to store analysis results"))
	}
	if !applied {
		slog.Info("analysis_task_result_discarded", "task_id", task.ID, "attempt", task.Attempt)
		return nil
	}

	slog.Info("analysis_task_completed",
		"task_id", task.ID,
		"kind", task.Kind,
		"attempt", task.Attempt,
		"records", mapped.Results.Len(),
		"skipped_items", mapped.Skipped,
	)
	return nil
}

func (uc *ExecuteAnalysisUseCase) run(ctx context.Context, task *domain.AnalysisTask) (MappedResult, error) {
	params, err := domain.DecodeParameters(task.Parameters)
	if err != nil {
		return MappedResult{}, domain.WrapError(domain.ErrInvalidInput, "decode analysis parameters", err)
	}

	text, err := uc.assembleInput(ctx, task)
	if err != nil {
		return MappedResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	raw, err := uc.callNLP(callCtx, task.Kind, text, params)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			message := fmt.Sprintf("%s after %s", domain.TimedOutMessage, uc.timeout)
			return MappedResult{}, domain.WithMessage(fmt.Errorf("%s: %w", message, err), message)
		}
		return MappedResult{}, err
	}

	return uc.mapper.Map(task.Kind, task.ID, raw, uc.now().UTC())
}

func (uc *ExecuteAnalysisUseCase) callNLP(ctx context.Context, kind domain.AnalysisKind, text string, params domain.AnalysisParameters) (json.RawMessage, error) {
	var (
		raw json.RawMessage
		err error
	)
	switch kind {
	case domain.KindWordFrequency:
		raw, err = uc.nlp.AnalyzeWordFrequency(ctx, text, params.MaxResults, params.MinLength)
	case domain.KindTimeline:
		raw, err = uc.nlp.AnalyzeTimeline(ctx, text)
	case domain.KindGeography:
		raw, err = uc.nlp.AnalyzeGeographic(ctx, text)
	case domain.KindTextSummary:
		raw, err = uc.nlp.AnalyzeSummary(ctx, text, params.SummaryType, params.MaxSentences)
	case domain.KindMultidimensional:
		raw, err = uc.nlp.AnalyzeMultidimensional(ctx, text)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "call nlp", fmt.Errorf("unsupported analysis kind %q", kind))
	}
	if err != nil {
		message := kind.Label() + " analysis failed"
		if detail, ok := domain.AttachedMessage(err); ok {
			message += ": " + detail
		}
		if !domain.IsKind(err, domain.ErrExternalService) {
			err = domain.WrapError(domain.ErrExternalService, "call nlp "+kind.Slug(), err)
		}
		return nil, domain.WithMessage(err, message)
	}
	return raw, nil
}

func (uc *ExecuteAnalysisUseCase) markFailed(ctx context.Context, task *domain.AnalysisTask, runErr error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	applied, err := uc.tasks.MarkFailed(writeCtx, task.ID, task.Attempt, domain.UserMessage(runErr), uc.now().UTC())
	if err != nil {
		return fmt.Errorf("%w; mark failed status: %v", runErr, err)
	}
	if !applied {
		slog.Info("analysis_task_result_discarded", "task_id", task.ID, "attempt", task.Attempt, "error", runErr)
		return nil
	}
	slog.Warn("analysis_task_failed", "task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt, "error", runErr)
	return runErr
}
