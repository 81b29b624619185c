package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

type JSONEncoder struct{}

func (JSONEncoder) Format() domain.ExportFormat { return domain.ExportJSON }
func (JSONEncoder) Extension() string           { return "json" }
func (JSONEncoder) ContentType() string         { return "application/json" }

func (JSONEncoder) Encode(w io.Writer, report domain.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
