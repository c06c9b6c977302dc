package orchestrate

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

func writeArtifacts(t *testing.T, dir string, manifest model.Manifest, metadata map[string]model.InvoiceMetadata, rawTexts map[string]string) {
	t.Helper()
	writeFile := func(name string, v any) {
		b, err := json.MarshalIndent(v, "", "  ")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
	}
	writeFile("manifest.json", manifest)
	writeFile("invoice_metadata.json", metadata)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw_texts"), 0o755))
	for name, text := range rawTexts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "raw_texts", name), []byte(text), 0o644))
	}
}

func matchFor(raw, matched string, status model.MatchStatus) model.MatchResult {
	return model.MatchResult{
		OriginalCode: raw,
		MatchedCode:  &matched,
		Status:       status,
		Candidates:   []string{matched},
	}
}

func TestLoadInvoiceContexts(t *testing.T) {
	dir := t.TempDir()

	manifest := model.Manifest{
		TotalInvoices: 3,
		Invoices: []model.ManifestEntry{
			{Filename: "b.pdf", IsCoachingInvoice: true, ReadyForLLM: true},
			{Filename: "a.pdf", IsCoachingInvoice: true, ReadyForLLM: true},
			{Filename: "c.pdf", IsCoachingInvoice: false, ReadyForLLM: false},
		},
	}
	unknown := model.MatchResult{OriginalCode: "XX99-999-999", Status: model.MatchUnknown, Candidates: []string{}}
	metadata := map[string]model.InvoiceMetadata{
		"a.pdf": {
			KvK: model.StrPtr("84726180"),
			VAT: model.StrPtr("NL863334647B01"),
			PatternsFound: model.Patterns{
				ClientCaseMatches: map[string]model.MatchResult{
					"IN16-121-284": matchFor("IN16-121-284", "IN16-121-284", model.MatchExact),
					"1N16-200-001": matchFor("1N16-200-001", "IN16-200-001", model.MatchFuzzyIOSwap),
					"XX99-999-999": unknown,
				},
			},
		},
		"b.pdf": {},
	}
	rawTexts := map[string]string{
		"a_raw.txt": "tekst van a",
		"b_raw.txt": "tekst van b",
	}
	writeArtifacts(t, dir, manifest, metadata, rawTexts)

	contexts, err := LoadInvoiceContexts(dir, slog.Default())
	require.NoError(t, err)
	require.Len(t, contexts, 2)

	// Sorted by filename despite manifest order.
	assert.Equal(t, "a.pdf", contexts[0].Filename)
	assert.Equal(t, "b.pdf", contexts[1].Filename)
	assert.Equal(t, "tekst van a", contexts[0].RawText)
	assert.Equal(t, "84726180", model.StrOrEmpty(contexts[0].Hints.KvK))

	// Allow-lists stay positionally paired; unknown codes are excluded.
	require.Equal(t, len(contexts[0].AllowedCasesPrompt), len(contexts[0].AllowedCasesValid))
	assert.Equal(t, []string{"1N16-200-001", "IN16-121-284"}, contexts[0].AllowedCasesPrompt)
	assert.Equal(t, []string{"IN16-200-001", "IN16-121-284"}, contexts[0].AllowedCasesValid)
	assert.Equal(t, map[string]string{
		"1N16-200-001": "IN16-200-001",
		"IN16-121-284": "IN16-121-284",
	}, contexts[0].CorrectionMap)

	assert.Empty(t, contexts[1].AllowedCasesPrompt)
}

func TestLoadInvoiceContextsSkipsMissingRawText(t *testing.T) {
	dir := t.TempDir()
	manifest := model.Manifest{Invoices: []model.ManifestEntry{
		{Filename: "gone.pdf", IsCoachingInvoice: true, ReadyForLLM: true},
	}}
	writeArtifacts(t, dir, manifest, map[string]model.InvoiceMetadata{"gone.pdf": {}}, nil)

	contexts, err := LoadInvoiceContexts(dir, slog.Default())
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestLoadInvoiceContextsMissingManifest(t *testing.T) {
	_, err := LoadInvoiceContexts(t.TempDir(), slog.Default())
	assert.Error(t, err)
}
