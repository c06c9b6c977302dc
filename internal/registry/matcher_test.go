package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

func writeRegistry(t *testing.T, codes ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valid_clientcases.csv")
	content := "clientCaseNumber\n"
	for _, c := range codes {
		content += c + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMatchExact(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t, "JN16-I21-284", "JN16-I21-285"), nil)
	require.NoError(t, err)

	res := m.Match("JN16-I21-284")
	assert.Equal(t, model.MatchExact, res.Status)
	require.NotNil(t, res.MatchedCode)
	assert.Equal(t, "JN16-I21-284", *res.MatchedCode)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, model.ContaminationIOnly, res.Contamination)
	assert.Equal(t, []string{"JN16-I21-284"}, res.Candidates)
}

func TestMatchFuzzyIOSwap(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t, "JN16-I21-284", "JN16-I21-285"), nil)
	require.NoError(t, err)

	res := m.Match("JN16-121-284")
	assert.Equal(t, model.MatchFuzzyIOSwap, res.Status)
	require.NotNil(t, res.MatchedCode)
	assert.Equal(t, "JN16-I21-284", *res.MatchedCode)
	assert.Equal(t, 0.75, res.Confidence)
	assert.NotEqual(t, res.OriginalCode, *res.MatchedCode)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, Canonical(res.OriginalCode), Canonical(*res.MatchedCode))
}

func TestSwapOutsideLetterPositionsStaysUnknown(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t, "AB12-I34-567"), nil)
	require.NoError(t, err)

	// Length mismatch: canonicalisation leaves the tail alone.
	res := m.Match("AB12-134-567X")
	assert.Equal(t, model.MatchUnknown, res.Status)

	// 'I' at position 2 is not a letter position, so it is not substituted.
	res = m.Match("ABI2-134-567")
	assert.Equal(t, model.MatchUnknown, res.Status)
}

func TestExactMatchWinsOverSharedCanon(t *testing.T) {
	// Both registry entries canonicalise to AB12-134-567; a code that is
	// itself registered must still match exactly.
	m, err := NewMatcher(writeRegistry(t, "AB12-I34-567", "AB12-134-567"), nil)
	require.NoError(t, err)

	res := m.Match("AB12-134-567")
	assert.Equal(t, model.MatchExact, res.Status)
}

func TestMatchAmbiguousSharedCanon(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t, "ON16-121-284", "0N16-121-284"), nil)
	require.NoError(t, err)

	// A mangled spelling that is not registered itself but canonicalises to
	// the shared bucket: neither original is returned, both are candidates.
	res := m.Match("oN16-121-284")
	assert.Equal(t, model.MatchAmbiguousIOSwap, res.Status)
	assert.Nil(t, res.MatchedCode)
	assert.Equal(t, 0.3, res.Confidence)
	assert.Len(t, res.Candidates, 2)
}

func TestMatchUnknownAndEmpty(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t, "JN16-I21-284"), nil)
	require.NoError(t, err)

	res := m.Match("ZZ99-X99-999")
	assert.Equal(t, model.MatchUnknown, res.Status)
	assert.Nil(t, res.MatchedCode)
	assert.Empty(t, res.Candidates)
	assert.Zero(t, res.Confidence)

	res = m.Match("   ")
	assert.Equal(t, model.MatchUnknown, res.Status)
	assert.Equal(t, "Empty or whitespace-only clientCaseNumber", res.Notes)
}

func TestEmptyRegistry(t *testing.T) {
	m, err := NewMatcher(writeRegistry(t), nil)
	require.NoError(t, err)
	assert.Zero(t, m.Size())

	res := m.Match("JN16-I21-284")
	assert.Equal(t, model.MatchUnknown, res.Status)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JN16-I21-284", "JN16-121-284"},
		{"ON16-O21-284", "0N16-021-284"},
		{"jn16-i21-284", "JN16-121-284"},
		{"JN16-121-284", "JN16-121-284"}, // digits untouched
		{"SHORT", "SHORT"},               // below canonical length
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonical(tt.in), "input %q", tt.in)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	for _, in := range []string{"JN16-I21-284", "OO16-O21-284", "AB12-C34-567", "x"} {
		once := Canonical(in)
		assert.Equal(t, once, Canonical(once), "input %q", in)
	}
}

func TestContaminationFlag(t *testing.T) {
	assert.Equal(t, model.ContaminationNone, ContaminationFlag("JN16-121-284"))
	assert.Equal(t, model.ContaminationIOnly, ContaminationFlag("JN16-I21-284"))
	assert.Equal(t, model.ContaminationOOnly, ContaminationFlag("ON16-121-284"))
	assert.Equal(t, model.ContaminationIAndO, ContaminationFlag("OI16-121-284"))
}

func TestRegistryFallsBackToFirstColumn(t *testing.T) {
	// Registry without the expected header: first column is used.
	path := filepath.Join(t.TempDir(), "cases.csv")
	require.NoError(t, os.WriteFile(path, []byte("code\nJN16-I21-284\n"), 0o644))
	m, err := NewMatcher(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())
	assert.Equal(t, model.MatchExact, m.Match("JN16-I21-284").Status)
}

func TestRegistryFromXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid_clientcases.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "clientCaseNumber"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "JN16-I21-284"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "JN16-I21-285"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m, err := NewMatcher(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())
	assert.Equal(t, model.MatchFuzzyIOSwap, m.Match("JN16-121-285").Status)
}

func TestRegistryMissingFile(t *testing.T) {
	_, err := NewMatcher(filepath.Join(t.TempDir(), "absent.csv"), nil)
	assert.Error(t, err)
}
