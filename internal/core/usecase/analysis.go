package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

const (
	defaultRecentDays  = 7
	defaultRecentLimit = 10
)

var taskSortColumns = []string{"created_at", "updated_at", "completed_at", "status", "kind"}

// AnalysisUseCase owns the task lifecycle: creation, lookup, cancel, rerun and deletion.
type AnalysisUseCase struct {
	tasks      ports.AnalysisRepository
	guard      *AccessGuard
	files      ports.FileService
	dispatcher ports.TaskDispatcher

	now   func() time.Time
	newID func() string
}

func NewAnalysisUseCase(
	tasks ports.AnalysisRepository,
	guard *AccessGuard,
	files ports.FileService,
	dispatcher ports.TaskDispatcher,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		tasks:      tasks,
		guard:      guard,
		files:      files,
		dispatcher: dispatcher,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (uc *AnalysisUseCase) Create(ctx context.Context, in domain.CreateAnalysisInput) (*domain.AnalysisTask, error) {
	kind, err := validateCreateInput(in)
	if err != nil {
		return nil, err
	}
	if err := uc.guard.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := uc.guard.authorizeProject(ctx, in.ProjectID, in.UserID); err != nil {
		return nil, err
	}
	if err := uc.authorizeFiles(ctx, in.FileIDs, in.UserID); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	fileIDs := make([]string, len(in.FileIDs))
	copy(fileIDs, in.FileIDs)
	task := &domain.AnalysisTask{
		ID:          uc.newID(),
		ProjectID:   in.ProjectID,
		UserID:      in.UserID,
		Kind:        kind,
		Status:      domain.StatusPending,
		FileIDs:     fileIDs,
		Description: strings.TrimSpace(in.Description),
		Parameters:  in.Parameters,
		Attempt:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.tasks.Create(ctx, task); err != nil {
		return nil, persistenceError("create analysis task", err)
	}

	if err := uc.dispatcher.Dispatch(ctx, task.ID); err != nil {
		slog.Error("analysis_task_dispatch_failed", "task_id", task.ID, "kind", task.Kind, "error", err)
		if delErr := uc.tasks.Delete(context.WithoutCancel(ctx), task.ID); delErr != nil {
			slog.Error("analysis_task_rollback_failed", "task_id", task.ID, "error", delErr)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "dispatch analysis task", err)
	}

	slog.Info("analysis_task_created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"user_id", task.UserID,
		"kind", task.Kind,
		"files", len(task.FileIDs),
	)
	return task, nil
}

func (uc *AnalysisUseCase) Get(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error) {
	return uc.guard.authorizeTask(ctx, taskID, userID)
}

// Delete removes the task together with its result records.
func (uc *AnalysisUseCase) Delete(ctx context.Context, taskID, userID string) error {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, taskID); err != nil {
		return persistenceError("delete analysis task", err)
	}
	slog.Info("analysis_task_deleted", "task_id", taskID, "user_id", userID)
	return nil
}

// DeleteMany deletes every accessible task in taskIDs and returns how many
// were removed. Missing or forbidden IDs are skipped.
func (uc *AnalysisUseCase) DeleteMany(ctx context.Context, taskIDs []string, userID string) (int, error) {
	if len(taskIDs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "delete analyses", errors.New("at least one analysis id is required"))
	}

	deleted := 0
	for _, taskID := range taskIDs {
		if err := uc.Delete(ctx, taskID, userID); err != nil {
			if domain.IsKind(err, domain.ErrPersistence) {
				return deleted, err
			}
			slog.Warn("analysis_task_delete_skipped", "task_id", taskID, "user_id", userID, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (uc *AnalysisUseCase) ListByProject(
	ctx context.Context,
	projectID, userID string,
	filter domain.AnalysisFilter,
	page domain.PageRequest,
) (domain.Page[domain.AnalysisTask], error) {
	if err := uc.guard.authorizeProject(ctx, projectID, userID); err != nil {
		return domain.Page[domain.AnalysisTask]{}, err
	}

	filter.ProjectID = projectID
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	page = page.Normalize(domain.SortOrder{Column: "created_at", Desc: true}, taskSortColumns...)

	result, err := uc.tasks.List(ctx, filter, page)
	if err != nil {
		return domain.Page[domain.AnalysisTask]{}, persistenceError("list analysis tasks", err)
	}
	return result, nil
}

// ListRecent returns the newest tasks created within the last days.
func (uc *AnalysisUseCase) ListRecent(ctx context.Context, projectID, userID string, days, limit int) ([]domain.AnalysisTask, error) {
	if days <= 0 {
		days = defaultRecentDays
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	since := uc.now().UTC().AddDate(0, 0, -days)

	page, err := uc.ListByProject(ctx, projectID, userID,
		domain.AnalysisFilter{CreatedAfter: &since},
		domain.PageRequest{Size: limit, SortBy: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Cancel forces a PENDING or PROCESSING task to FAILED. Terminal tasks are rejected.
func (uc *AnalysisUseCase) Cancel(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error) {
	task, err := uc.guard.authorizeTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return nil, illegalTransition("cancel analysis", task)
	}

	applied, err := uc.tasks.MarkFailed(ctx, task.ID, task.Attempt, domain.CancelledMessage, uc.now().UTC())
	if err != nil {
		return nil, persistenceError("cancel analysis task", err)
	}

	current, err := uc.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, persistenceError("reload analysis task", err)
	}
	if !applied {
		return nil, illegalTransition("cancel analysis", current)
	}

	slog.Info("analysis_task_cancelled", "task_id", task.ID, "user_id", userID, "previous_status", task.Status)
	return current, nil
}

// Rerun resets a terminal task to PENDING, drops its previous results and dispatches it again.
func (uc *AnalysisUseCase) Rerun(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error) {
	task, err := uc.guard.authorizeTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if !task.Status.IsTerminal() {
		return nil, illegalTransition("rerun analysis", task)
	}

	applied, err := uc.tasks.Reset(ctx, task.ID, task.Attempt, uc.now().UTC())
	if err != nil {
		return nil, persistenceError("reset analysis task", err)
	}
	if !applied {
		current, getErr := uc.tasks.GetByID(ctx, task.ID)
		if getErr != nil {
			return nil, persistenceError("reload analysis task", getErr)
		}
		return nil, illegalTransition("rerun analysis", current)
	}
	nextAttempt := task.Attempt + 1

	if err := uc.dispatcher.Dispatch(ctx, task.ID); err != nil {
		slog.Error("analysis_task_dispatch_failed", "task_id", task.ID, "attempt", nextAttempt, "error", err)
		message := fmt.Sprintf("dispatch analysis task: %v", err)
		if _, failErr := uc.tasks.MarkFailed(context.WithoutCancel(ctx), task.ID, nextAttempt, message, uc.now().UTC()); failErr != nil {
			slog.Error("analysis_task_mark_failed_error", "task_id", task.ID, "error", failErr)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "dispatch analysis task", err)
	}

	current, err := uc.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, persistenceError("reload analysis task", err)
	}
	slog.Info("analysis_task_rerun", "task_id", task.ID, "user_id", userID, "attempt", nextAttempt)
	return current, nil
}

func (uc *AnalysisUseCase) Progress(ctx context.Context, taskID, userID string) (domain.TaskProgress, error) {
	task, err := uc.guard.authorizeTask(ctx, taskID, userID)
	if err != nil {
		return domain.TaskProgress{}, err
	}
	return domain.TaskProgress{
		TaskID:       task.ID,
		Status:       task.Status,
		Progress:     task.Status.Progress(),
		ErrorMessage: task.ErrorMessage,
	}, nil
}

func (uc *AnalysisUseCase) authorizeFiles(ctx context.Context, fileIDs []string, userID string) error {
	for _, fileID := range fileIDs {
		ok, err := uc.files.HasFileAccess(ctx, fileID, userID)
		if err != nil {
			slog.Warn("access_file_lookup_failed", "file_id", fileID, "user_id", userID, "error", err)
			return domain.WrapError(domain.ErrForbidden, "authorize file", err)
		}
		if !ok {
			return domain.WrapError(domain.ErrForbidden, "authorize file", fmt.Errorf("user %s has no access to file %s", userID, fileID))
		}
	}
	return nil
}

func validateCreateInput(in domain.CreateAnalysisInput) (domain.AnalysisKind, error) {
	const op = "create analysis"
	if strings.TrimSpace(in.ProjectID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, op, errors.New("project id is required"))
	}
	if strings.TrimSpace(in.UserID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, op, errors.New("user id is required"))
	}
	kind, ok := domain.ParseAnalysisKind(string(in.Kind))
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown analysis kind %q", in.Kind))
	}
	for i, fileID := range in.FileIDs {
		if strings.TrimSpace(fileID) == "" {
			return "", domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("file id at position %d is blank", i))
		}
	}
	if kind.RequiresFiles() && len(in.FileIDs) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s analysis requires at least one file", kind.Slug()))
	}
	if _, err := domain.DecodeParameters(in.Parameters); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("parameters: %w", err))
	}
	return kind, nil
}

func illegalTransition(operation string, task *domain.AnalysisTask) error {
	return domain.WrapError(domain.ErrIllegalState, operation, fmt.Errorf("analysis %s is %s", task.ID, task.Status))
}
