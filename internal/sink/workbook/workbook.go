// Package workbook writes result sets into an XLSX file, one sheet per
// result.
package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-runewidth"
	"github.com/sqlseq/sqlseq/internal/sink"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"

	minColumnWidth = 8
	maxColumnWidth = 80
)

// Session is an open workbook. Every Write saves the whole file, so sheets
// written before a failure remain on disk.
type Session struct {
	file        *excelize.File
	path        string
	sheets      []string
	headerStyle int
	logger      *slog.Logger
}

var _ sink.Writer = (*Session)(nil)

// Create starts a workbook that will be saved at path. Nothing is written
// until the first result arrives.
func Create(path string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Session{file: f, path: path, headerStyle: style, logger: logger}, nil
}

// Path returns the workbook file path.
func (s *Session) Path() string {
	return s.path
}

// Sheets returns the sheets written so far, in order.
func (s *Session) Sheets() []string {
	return append([]string(nil), s.sheets...)
}

// Write adds a sheet named resultID holding a header row and every row of
// rows, then saves the workbook.
func (s *Session) Write(ctx context.Context, resultID string, rows sink.Rows) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cols, err := sink.Columns(rows)
	if err != nil {
		return err
	}
	if err := s.addSheet(resultID); err != nil {
		return err
	}

	widths := make([]int, len(cols))
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Name
		widths[i] = runewidth.StringWidth(c.Name)
	}
	if err := s.file.SetSheetRow(resultID, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", resultID, err)
	}
	if err := s.file.SetRowStyle(resultID, 1, 1, s.headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %q: %w", resultID, err)
	}

	row := 1
	for rows.Next() {
		values, err := sink.ScanRow(rows, len(cols))
		if err != nil {
			return err
		}
		row++
		cells := make([]any, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			text := sink.Display(v)
			cells[i] = text
			widths[i] = max(widths[i], runewidth.StringWidth(text))
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := s.file.SetSheetRow(resultID, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", row, resultID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}

	if err := s.layout(resultID, widths, row); err != nil {
		return err
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	s.logger.Debug("wrote sheet", "sheet", resultID, "rows", row-1, "path", s.path)
	return nil
}

func (s *Session) addSheet(name string) error {
	if idx, err := s.file.GetSheetIndex(name); err == nil && idx >= 0 && len(s.sheets) > 0 {
		return fmt.Errorf("sheet %q already exists", name)
	}
	if len(s.sheets) == 0 {
		if err := s.file.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("invalid sheet name %q: %w", name, err)
		}
	} else if _, err := s.file.NewSheet(name); err != nil {
		return fmt.Errorf("invalid sheet name %q: %w", name, err)
	}
	s.sheets = append(s.sheets, name)
	return nil
}

func (s *Session) layout(sheet string, widths []int, lastRow int) error {
	lastCol, err := excelize.ColumnNumberToName(len(widths))
	if err != nil {
		return err
	}
	if err := s.file.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("failed to add filter to %q: %w", sheet, err)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := min(max(w+2, minColumnWidth), maxColumnWidth)
		if err := s.file.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return fmt.Errorf("failed to size column %s of %q: %w", col, sheet, err)
		}
	}
	return nil
}

// Close releases the workbook. Sheets already written stay on disk.
func (s *Session) Close() error {
	return s.file.Close()
}
