package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

const (
	sheetTask     = "Task"
	sheetWords    = "WordFrequency"
	sheetTimeline = "Timeline"
	sheetGeo      = "Geography"
)

// ExcelEncoder writes an .xlsx workbook with one sheet per record type.
type ExcelEncoder struct{}

func (ExcelEncoder) Format() domain.ExportFormat { return domain.ExportExcel }
func (ExcelEncoder) Extension() string           { return "xlsx" }
func (ExcelEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (ExcelEncoder) Encode(w io.Writer, report domain.AnalysisReport) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetTask); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{name: sheetTask, header: taskHeader, rows: taskRows(report.Task)},
		{name: sheetWords, header: wordHeader, rows: mapRows(report.Results.WordFrequencies, wordRow)},
		{name: sheetTimeline, header: timelineHeader, rows: mapRows(report.Results.TimelineEvents, timelineRow)},
		{name: sheetGeo, header: geoHeader, rows: mapRows(report.Results.GeoLocations, geoRow)},
	}
	for _, sheet := range sheets {
		if sheet.name != sheetTask {
			if len(sheet.rows) == 0 {
				continue
			}
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet.name, err)
			}
		}
		if err := writeSheet(f, sheet.name, sheet.header, sheet.rows, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
