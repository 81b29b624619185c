package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

// Router picks an extractor by MIME type or file extension.
type Router struct {
	text ports.TextExtractor
	pdf  ports.TextExtractor
}

func NewRouter(text, pdf ports.TextExtractor) *Router {
	return &Router{text: text, pdf: pdf}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if isPDF(doc) {
		return r.pdf.Extract(ctx, doc)
	}
	return r.text.Extract(ctx, doc)
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(strings.TrimSpace(doc.MimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}
