// Package registry validates and canonicalises client case numbers against
// the trusted registry of known cases. It is the gatekeeper that keeps
// misread identifiers out of the bookkeeping.
package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

// caseNumberColumn is the expected registry column; loaders fall back to the
// first column when it is absent.
const caseNumberColumn = "clientCaseNumber"

// Known letter positions of the canonical LLDD-LDD-DDD shape.
var letterPositions = [...]int{0, 1, 5}

// Matcher is the read-only registry index: an exact set plus a multimap from
// canonical form to registry codes. Safe for concurrent use after load.
type Matcher struct {
	exact   map[string]struct{}
	byCanon map[string][]string
	logger  *slog.Logger
}

// NewMatcher loads the registry file (CSV or XLSX, by extension) and builds
// the lookup indexes.
func NewMatcher(path string, logger *slog.Logger) (*Matcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var codes []string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		codes, err = loadXLSX(path)
	default:
		codes, err = loadCSV(path)
	}
	if err != nil {
		return nil, err
	}

	m := &Matcher{
		exact:   make(map[string]struct{}, len(codes)),
		byCanon: make(map[string][]string, len(codes)),
		logger:  logger,
	}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		m.exact[code] = struct{}{}
		canon := Canonical(code)
		m.byCanon[canon] = append(m.byCanon[canon], code)
	}
	logger.Info("registry.loaded", "path", path, "codes", len(m.exact))
	return m, nil
}

// Size returns the number of registered codes.
func (m *Matcher) Size() int {
	return len(m.exact)
}

// Match classifies a raw client case number as exact, fuzzy, ambiguous or
// unknown, per the OCR I/O-swap correction rules.
func (m *Matcher) Match(code string) model.MatchResult {
	original := strings.TrimSpace(code)
	if original == "" {
		return model.MatchResult{
			OriginalCode:  original,
			Status:        model.MatchUnknown,
			Confidence:    0,
			Contamination: model.ContaminationNone,
			Candidates:    []string{},
			Notes:         "Empty or whitespace-only clientCaseNumber",
		}
	}

	if _, ok := m.exact[original]; ok {
		return model.MatchResult{
			OriginalCode:  original,
			MatchedCode:   &original,
			Status:        model.MatchExact,
			Confidence:    1.0,
			Contamination: ContaminationFlag(original),
			Candidates:    []string{original},
		}
	}

	canon := Canonical(original)
	candidates := m.byCanon[canon]

	if len(candidates) == 0 {
		return model.MatchResult{
			OriginalCode:  original,
			Status:        model.MatchUnknown,
			Confidence:    0,
			Contamination: ContaminationFlag(original),
			Candidates:    []string{},
			Notes:         "clientCaseNumber is not registered",
		}
	}

	if len(candidates) == 1 {
		matched := candidates[0]
		return model.MatchResult{
			OriginalCode: original,
			MatchedCode:  &matched,
			Status:       model.MatchFuzzyIOSwap,
			Confidence:   0.75,
			// Contamination of the registry code we corrected to.
			Contamination: ContaminationFlag(matched),
			Candidates:    []string{matched},
			Notes:         "Matched via I/1 or O/0 canonical mapping",
		}
	}

	out := make([]string, len(candidates))
	copy(out, candidates)
	return model.MatchResult{
		OriginalCode:  original,
		Status:        model.MatchAmbiguousIOSwap,
		Confidence:    0.3,
		Contamination: model.ContaminationNone,
		Candidates:    out,
		Notes:         "Multiple possible matches for canonical form",
	}
}

// Canonical maps a code to its lookup key: uppercased, trimmed, with I→1 and
// O→0 substituted at the letter positions of the LLDD-LDD-DDD shape. Codes
// shorter than the canonical length are returned untouched so that later
// validation can reject them.
func Canonical(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) < 11 {
		return c
	}
	chars := []byte(c)
	for _, pos := range letterPositions {
		if pos >= len(chars) {
			continue
		}
		switch chars[pos] {
		case 'I':
			chars[pos] = '1'
		case 'O':
			chars[pos] = '0'
		}
	}
	return string(chars)
}

// ContaminationFlag reports whether the code contains 'I' or 'O' glyphs.
func ContaminationFlag(code string) model.Contamination {
	c := strings.ToUpper(code)
	hasI := strings.Contains(c, "I")
	hasO := strings.Contains(c, "O")
	switch {
	case hasI && hasO:
		return model.ContaminationIAndO
	case hasI:
		return model.ContaminationIOnly
	case hasO:
		return model.ContaminationOOnly
	default:
		return model.ContaminationNone
	}
}

func loadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("registry.close_error", "path", path, "error", cerr)
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}
	col := columnIndex(header)

	var codes []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read registry row: %w", err)
		}
		if col < len(rec) {
			codes = append(codes, rec[col])
		}
	}
	return codes, nil
}

func loadXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open registry workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("registry.close_error", "path", path, "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("registry workbook has no sheets: %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read registry sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("registry sheet is empty: %s", path)
	}
	col := columnIndex(rows[0])

	var codes []string
	for _, row := range rows[1:] {
		if col < len(row) {
			codes = append(codes, row[col])
		}
	}
	return codes, nil
}

// columnIndex finds the clientCaseNumber column, defaulting to the first.
func columnIndex(header []string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == caseNumberColumn {
			return i
		}
	}
	return 0
}
