// Package extract turns spreadsheet exports of cultivation sensor readings
// into per-shift JSON artifacts ready for indexing.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agrolab/hydrochat/internal/segment"
)

// Artifact describes one JSON file written for a (sheet, window) pair.
type Artifact struct {
	Sheet  string `json:"sheet"`
	Window string `json:"window"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
}

// Report summarizes a workbook run.
type Report struct {
	Artifacts     []Artifact `json:"artifacts"`
	SkippedSheets []string   `json:"skipped_sheets,omitempty"`
}

// Service extracts sensor workbooks into windowed JSON artifacts.
type Service struct {
	outputDir string
	logger    *slog.Logger
}

// NewService creates a Service writing artifacts under outputDir.
func NewService(outputDir string) *Service {
	return &Service{outputDir: outputDir, logger: slog.Default()}
}

// OutputDir returns the directory artifacts are written to.
func (s *Service) OutputDir() string {
	return s.outputDir
}

// ProcessWorkbook reads every sheet of the workbook at path, segments its
// rows into shift windows, and writes one JSON array per (sheet, window)
// pair to {outputDir}/{sheet}_{sanitizedKey}.json. Sheets without the
// required date/time columns are skipped with a warning; a malformed sheet
// never fails the batch.
func (s *Service) ProcessWorkbook(path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	report := &Report{}
	for _, name := range f.GetSheetList() {
		cells, err := f.GetRows(name)
		if err != nil {
			s.logger.Warn("reading sheet failed, skipping", "sheet", name, "error", err)
			report.SkippedSheets = append(report.SkippedSheets, name)
			continue
		}

		sheet := buildSheet(name, cells)
		windows, err := segment.Segment(sheet)
		if err != nil {
			if errors.Is(err, segment.ErrMissingColumns) {
				s.logger.Warn("sheet lacks data/hora columns, skipping", "sheet", name)
			} else {
				s.logger.Warn("segmenting sheet failed, skipping", "sheet", name, "error", err)
			}
			report.SkippedSheets = append(report.SkippedSheets, name)
			continue
		}

		for _, key := range windows.Keys() {
			artifact, err := s.writeWindow(name, key, windows[key])
			if err != nil {
				return nil, err
			}
			report.Artifacts = append(report.Artifacts, artifact)
		}
	}

	s.logger.Info("workbook processed",
		"path", path,
		"artifacts", len(report.Artifacts),
		"skipped_sheets", len(report.SkippedSheets),
	)
	return report, nil
}

// buildSheet converts raw cell rows into a segment.Sheet: the first
// non-empty row is the header, fully empty rows and columns are dropped,
// and header names are lowercased by Row.Set.
func buildSheet(name string, cells [][]string) segment.Sheet {
	header, data := splitHeader(cells)
	keep := usedColumns(header, data)

	var columns []string
	for _, i := range keep {
		columns = append(columns, strings.ToLower(strings.TrimSpace(header[i])))
	}

	sheet := segment.Sheet{Name: name, Columns: columns}
	for _, cellRow := range data {
		if allBlank(cellRow) {
			continue
		}
		row := segment.NewRow()
		for _, i := range keep {
			var v string
			if i < len(cellRow) {
				v = cellRow[i]
			}
			row.Set(header[i], v)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func splitHeader(cells [][]string) (header []string, data [][]string) {
	for i, row := range cells {
		if !allBlank(row) {
			return row, cells[i+1:]
		}
	}
	return nil, nil
}

// usedColumns returns the header indices that have a name and at least one
// non-blank value somewhere in the data.
func usedColumns(header []string, data [][]string) []int {
	var keep []int
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			continue
		}
		for _, row := range data {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				keep = append(keep, i)
				break
			}
		}
	}
	return keep
}

func allBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// writeWindow serializes one window's rows as an indented UTF-8 JSON array.
// Non-ASCII content is written as-is, not escaped.
func (s *Service) writeWindow(sheetName, key string, rows []*segment.Row) (Artifact, error) {
	name := fmt.Sprintf("%s_%s.json", sheetName, segment.SanitizeKey(key))
	path := filepath.Join(s.outputDir, name)

	out, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("creating artifact %s: %w", name, err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rows); err != nil {
		return Artifact{}, fmt.Errorf("writing artifact %s: %w", name, err)
	}

	return Artifact{Sheet: sheetName, Window: key, Path: path, Rows: len(rows)}, nil
}
