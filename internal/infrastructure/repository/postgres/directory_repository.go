package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// DirectoryRepository reads the users, projects and documents tables that
// the surrounding platform maintains.
type DirectoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, created_at
FROM projects
WHERE id = $1
`, projectID).Scan(&project.ID, &project.OwnerID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("id=%s", projectID))
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

func (r *DirectoryRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT id, role FROM users WHERE id = $1`, userID).Scan(&user.ID, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", userID))
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Role = domain.UserRole(role)
	return &user, nil
}

func (r *DirectoryRepository) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.QueryRowContext(ctx, `
SELECT id, project_id, owner_id, filename, mime_type, storage_path, size_bytes, created_at
FROM documents
WHERE id = $1
`, documentID).Scan(
		&doc.ID, &doc.ProjectID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.SizeBytes, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", documentID))
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}
