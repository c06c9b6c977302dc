package orchestrate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

// LoadInvoiceContexts reads the pre-processing artifacts from llmReadyDir and
// builds the per-invoice work items. Only invoices flagged both coaching and
// ready_for_llm make it through. The allow-lists and correction map are
// derived from the exact and fuzzy registry matches; unknown and ambiguous
// codes never enter the allow-list.
func LoadInvoiceContexts(llmReadyDir string, logger *slog.Logger) ([]model.InvoiceContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	manifestPath := filepath.Join(llmReadyDir, "manifest.json")
	metadataPath := filepath.Join(llmReadyDir, "invoice_metadata.json")

	var manifest model.Manifest
	if err := readJSON(manifestPath, &manifest); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var metadata map[string]model.InvoiceMetadata
	if err := readJSON(metadataPath, &metadata); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	contexts := make([]model.InvoiceContext, 0, len(manifest.Invoices))
	for _, entry := range manifest.Invoices {
		if !entry.IsCoachingInvoice || !entry.ReadyForLLM {
			continue
		}
		meta, ok := metadata[entry.Filename]
		if !ok {
			logger.Warn("orchestrate.load.no_metadata", "filename", entry.Filename)
			continue
		}

		rawName := strings.TrimSuffix(entry.Filename, ".pdf") + "_raw.txt"
		rawBytes, err := os.ReadFile(filepath.Join(llmReadyDir, "raw_texts", rawName))
		if err != nil {
			logger.Warn("orchestrate.load.no_raw_text", "filename", entry.Filename, "error", err)
			continue
		}

		ictx := model.InvoiceContext{
			Filename: entry.Filename,
			RawText:  string(rawBytes),
			Hints: model.HeaderHints{
				KvK:           meta.KvK,
				VAT:           meta.VAT,
				InvoiceNumber: meta.InvoiceNumber,
				InvoiceDate:   meta.InvoiceDate,
			},
			AllowedCasesPrompt: []string{},
			AllowedCasesValid:  []string{},
			CorrectionMap:      map[string]string{},
		}

		// Deterministic order for the prompt allow-list.
		rawCodes := make([]string, 0, len(meta.PatternsFound.ClientCaseMatches))
		for code := range meta.PatternsFound.ClientCaseMatches {
			rawCodes = append(rawCodes, code)
		}
		sort.Strings(rawCodes)

		for _, raw := range rawCodes {
			m := meta.PatternsFound.ClientCaseMatches[raw]
			if m.MatchedCode == nil {
				continue
			}
			if m.Status != model.MatchExact && m.Status != model.MatchFuzzyIOSwap {
				continue
			}
			ictx.AllowedCasesPrompt = append(ictx.AllowedCasesPrompt, raw)
			ictx.AllowedCasesValid = append(ictx.AllowedCasesValid, *m.MatchedCode)
			ictx.CorrectionMap[raw] = *m.MatchedCode
		}

		contexts = append(contexts, ictx)
	}

	sort.Slice(contexts, func(i, j int) bool { return contexts[i].Filename < contexts[j].Filename })

	logger.Info("orchestrate.load.done",
		"dir", llmReadyDir,
		"manifest_invoices", len(manifest.Invoices),
		"ready", len(contexts),
	)
	return contexts, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
