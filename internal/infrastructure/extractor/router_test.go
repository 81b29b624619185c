package extractor

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/extractor/plaintext"
)

type memoryStorage map[string]string

func (m memoryStorage) Save(context.Context, string, io.Reader) (string, error) {
	return "", nil
}

func (m memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m[key])), nil
}

func TestRouterSendsTextToPlaintextExtractor(t *testing.T) {
	storage := memoryStorage{"docs/a.txt": "\xEF\xBB\xBF  史记·秦始皇本纪  \n"}
	router := NewRouter(plaintext.NewExtractor(storage), pdftext.NewExtractor(storage))

	text, err := router.Extract(context.Background(), &domain.Document{Filename: "a.txt", MimeType: "text/plain", StoragePath: "docs/a.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "史记·秦始皇本纪" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestRouterSendsPDFToPDFExtractor(t *testing.T) {
	storage := memoryStorage{"docs/b.pdf": "not really a pdf"}
	router := NewRouter(plaintext.NewExtractor(storage), pdftext.NewExtractor(storage))

	_, err := router.Extract(context.Background(), &domain.Document{Filename: "B.PDF", StoragePath: "docs/b.pdf"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected pdf parse failure as ErrInvalidInput, got %v", err)
	}
}

func TestPlaintextRejectsBinary(t *testing.T) {
	storage := memoryStorage{"docs/c.bin": "\xff\xfe\x00"}
	_, err := plaintext.NewExtractor(storage).Extract(context.Background(), &domain.Document{Filename: "c.bin", StoragePath: "docs/c.bin"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
