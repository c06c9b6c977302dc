// Package export turns a directory of parsed invoice records into an XLSX
// workbook for the practice's administration.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

// Service reads *_parsed.json files and produces XLSX bytes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// record pairs one parsed result with its source file name.
type record struct {
	name   string
	result model.InvoiceResult
}

// loadRecords reads every *_parsed.json in dir, sorted by file name.
// Unreadable files are logged and skipped.
func (s *Service) loadRecords(dir string) ([]record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_parsed.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	records := make([]record, 0, len(matches))
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("export.record.unreadable", "path", path, "error", err)
			continue
		}
		var res model.InvoiceResult
		if err := json.Unmarshal(raw, &res); err != nil {
			s.logger.Warn("export.record.bad_json", "path", path, "error", err)
			continue
		}
		name := strings.TrimSuffix(filepath.Base(path), "_parsed.json") + ".pdf"
		records = append(records, record{name: name, result: res})
	}
	return records, nil
}

// ExportSessionsXLSX builds a workbook from every parsed record in
// resultsDir: a Sessions sheet with one row per coaching session and a
// NoActivity sheet listing cases billed without hours.
func (s *Service) ExportSessionsXLSX(resultsDir string) ([]byte, error) {
	start := time.Now()

	records, err := s.loadRecords(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	f := excelize.NewFile()
	const sessionsSheet = "Sessions"
	const noActivitySheet = "NoActivity"

	if err := f.SetSheetName("Sheet1", sessionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(noActivitySheet); err != nil {
		return nil, err
	}
	if index, err := f.GetSheetIndex(sessionsSheet); err == nil {
		f.SetActiveSheet(index)
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	sessionHeaders := []string{
		"Invoice File",
		"Supplier",
		"Invoice Number",
		"Invoice Date",
		"KvK",
		"VAT",
		"Client Case",
		"Raw Client Case",
		"Session Date",
		"Hours",
	}
	for i, h := range sessionHeaders {
		write(sessionsSheet, i+1, 1, h)
	}

	noActivityHeaders := []string{"Invoice File", "Supplier", "Client Case"}
	for i, h := range noActivityHeaders {
		write(noActivitySheet, i+1, 1, h)
	}

	sessionRow := 2
	noActivityRow := 2
	for _, rec := range records {
		header := rec.result.InvoiceHeader
		for _, c := range rec.result.ClientCases {
			write(sessionsSheet, 1, sessionRow, rec.name)
			write(sessionsSheet, 2, sessionRow, model.StrOrEmpty(header.SupplierName))
			write(sessionsSheet, 3, sessionRow, model.StrOrEmpty(header.InvoiceNumber))
			write(sessionsSheet, 4, sessionRow, model.StrOrEmpty(header.InvoiceDate))
			write(sessionsSheet, 5, sessionRow, model.StrOrEmpty(header.KvKNumber))
			write(sessionsSheet, 6, sessionRow, model.StrOrEmpty(header.VATNumber))
			write(sessionsSheet, 7, sessionRow, c.ValidatedClientCaseNumber)
			write(sessionsSheet, 8, sessionRow, model.StrOrEmpty(c.RawClientCaseNumber))
			write(sessionsSheet, 9, sessionRow, model.StrOrEmpty(c.Date))
			if c.DurationHours != nil {
				write(sessionsSheet, 10, sessionRow, *c.DurationHours)
			}
			sessionRow++
		}
		for _, code := range rec.result.ClientCasesNoActivity {
			write(noActivitySheet, 1, noActivityRow, rec.name)
			write(noActivitySheet, 2, noActivityRow, model.StrOrEmpty(header.SupplierName))
			write(noActivitySheet, 3, noActivityRow, code)
			noActivityRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.sessions.done",
		"records", len(records),
		"session_rows", sessionRow-2,
		"no_activity_rows", noActivityRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteSessionsXLSX exports and writes the workbook to outPath.
func (s *Service) WriteSessionsXLSX(resultsDir, outPath string) error {
	b, err := s.ExportSessionsXLSX(resultsDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, b, 0o644)
}
