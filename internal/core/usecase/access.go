package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

// AccessGuard decides whether a user may touch a project or an analysis.
// Owners and admins are allowed; lookup failures deny.
type AccessGuard struct {
	directory ports.AccessDirectory
	tasks     ports.AnalysisRepository
}

func NewAccessGuard(directory ports.AccessDirectory, tasks ports.AnalysisRepository) *AccessGuard {
	return &AccessGuard{directory: directory, tasks: tasks}
}

func (g *AccessGuard) HasProjectAccess(ctx context.Context, projectID, userID string) bool {
	return g.authorizeProject(ctx, projectID, userID) == nil
}

func (g *AccessGuard) HasAnalysisAccess(ctx context.Context, taskID, userID string) bool {
	_, err := g.authorizeTask(ctx, taskID, userID)
	return err == nil
}

func (g *AccessGuard) IsAdmin(ctx context.Context, userID string) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	user, err := g.directory.GetUser(ctx, userID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("access_user_lookup_failed", "user_id", userID, "error", err)
		}
		return false
	}
	return user.IsAdmin()
}

// requireUser fails with ErrNotFound when the user is unknown.
func (g *AccessGuard) requireUser(ctx context.Context, userID string) error {
	if _, err := g.directory.GetUser(ctx, userID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return err
		}
		return domain.WrapError(domain.ErrPersistence, "lookup user", err)
	}
	return nil
}

// authorizeProject returns ErrNotFound for an unknown project and
// ErrForbidden when the user is neither owner nor admin.
func (g *AccessGuard) authorizeProject(ctx context.Context, projectID, userID string) error {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(userID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "authorize project", errors.New("project id and user id are required"))
	}

	project, err := g.directory.GetProject(ctx, projectID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return err
		}
		slog.Warn("access_project_lookup_failed", "project_id", projectID, "user_id", userID, "error", err)
		return domain.WrapError(domain.ErrForbidden, "authorize project", err)
	}
	if project.OwnerID == userID {
		return nil
	}
	if g.IsAdmin(ctx, userID) {
		return nil
	}
	return domain.WrapError(domain.ErrForbidden, "authorize project", fmt.Errorf("user %s has no access to project %s", userID, projectID))
}

// authorizeTask loads the task and checks access to its project. A task
// whose project disappeared is reported as forbidden, not missing.
func (g *AccessGuard) authorizeTask(ctx context.Context, taskID, userID string) (*domain.AnalysisTask, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "authorize analysis", errors.New("analysis id and user id are required"))
	}

	task, err := g.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, persistenceError("load analysis task", err)
	}

	if err := g.authorizeProject(ctx, task.ProjectID, userID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrForbidden, "authorize analysis", err)
		}
		return nil, err
	}
	return task, nil
}

// persistenceError keeps typed repository errors and tags everything else as a storage failure.
func persistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrNotFound) || domain.IsKind(err, domain.ErrPersistence) {
		return err
	}
	return domain.WrapError(domain.ErrPersistence, operation, err)
}
