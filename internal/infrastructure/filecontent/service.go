package filecontent

import (
	"context"
	"fmt"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

// Service reads document text for a user. A user may read a document they
// uploaded, any document in a project they own, or anything when admin.
type Service struct {
	documents ports.DocumentDirectory
	directory ports.AccessDirectory
	extractor ports.TextExtractor
}

func NewService(documents ports.DocumentDirectory, directory ports.AccessDirectory, extractor ports.TextExtractor) *Service {
	return &Service{documents: documents, directory: directory, extractor: extractor}
}

func (s *Service) HasFileAccess(ctx context.Context, fileID, userID string) (bool, error) {
	doc, err := s.documents.GetDocument(ctx, fileID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load document: %w", err)
	}
	return s.canRead(ctx, doc, userID)
}

func (s *Service) GetFileContent(ctx context.Context, fileID, userID string) (string, error) {
	doc, err := s.documents.GetDocument(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	ok, err := s.canRead(ctx, doc, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.WrapError(domain.ErrForbidden, "read document", fmt.Errorf("user %s has no access to file %s", userID, fileID))
	}

	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return text, nil
}

func (s *Service) canRead(ctx context.Context, doc *domain.Document, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if doc.OwnerID == userID {
		return true, nil
	}

	project, err := s.directory.GetProject(ctx, doc.ProjectID)
	switch {
	case err == nil && project.OwnerID == userID:
		return true, nil
	case err != nil && !domain.IsKind(err, domain.ErrNotFound):
		return false, fmt.Errorf("load project: %w", err)
	}

	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	return user.IsAdmin(), nil
}
