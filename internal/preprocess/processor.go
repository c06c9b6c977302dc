// Package preprocess is the deterministic first half of the pipeline. It
// extracts text from every PDF in the input directory, runs the regex
// extractors, validates client case numbers against the registry, and writes
// the artifacts the orchestrator consumes: per-invoice raw text files,
// invoice_metadata.json, and manifest.json.
//
// It acts as a cost-saving gatekeeper: only invoices with valid or
// correctable client case numbers are marked ready_for_llm.
package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/coachpraktijk/invoice-agents/internal/common"
	"github.com/coachpraktijk/invoice-agents/internal/model"
	"github.com/coachpraktijk/invoice-agents/internal/patterns"
)

// Confidence weights for the heuristic score. The base applies to any
// coaching invoice; the rest rewards pattern density.
const (
	confBase          = 0.4
	confDates         = 0.2
	confAmounts       = 0.2
	confInvoiceNumber = 0.1
	confLongText      = 0.1
	confShortText     = 0.05

	confNonCoachingWithText = 0.1

	longTextThreshold  = 500
	shortTextThreshold = 100

	textPreviewChars = 500
)

// Verdict reasons. The needs_review wording references the character
// corruption introduced by the 2024-2025 export bug.
const (
	reasonNoCases      = "No clientCaseNumbers found; likely not a coaching invoice"
	reasonAllExact     = "All clientCaseNumbers are known and match exactly"
	reasonBadCases     = "The invoice contains clientCaseNumbers that are either unknown or ambiguous. The sender must update the invoice with valid CCNs."
	reasonFuzzyCases   = "Invoice contains clientCaseNumbers with historical character errors (e.g., 1/I or 0/O swaps caused by the 2024–2025 bug). Characters “1” and “0” have now been auto-corrected to “I” and “O.”"
	reasonNoRegistry   = "Registry unavailable; clientCaseNumbers were not validated"
	errFailedToExtract = "Failed to extract text"
)

// TextExtractor produces the raw text of one PDF. ok is false when neither
// engine produced usable text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (text string, ok bool)
}

// CaseMatcher validates one raw client case number against the registry.
type CaseMatcher interface {
	Match(code string) model.MatchResult
}

// Invoice is the mutable per-file state during one batch run. It becomes
// read-only once the processor has written its artifacts.
type Invoice struct {
	Filename          string
	Text              string
	Method            string
	TextLength        int
	Patterns          model.Patterns
	Summary           model.CaseSummary
	IsCoachingInvoice bool
	Confidence        float64
	RawTextFile       string
	ErrorMessage      *string
}

// Processor runs one pre-processing batch.
type Processor struct {
	invoiceDir string
	outputDir  string
	extractor  TextExtractor
	matcher    CaseMatcher
	logger     *slog.Logger
	console    io.Writer
	now        func() time.Time
}

// NewProcessor wires a batch processor. matcher may be nil when the registry
// file is missing; validation is then skipped. console receives the
// human-facing progress report and is usually os.Stdout.
func NewProcessor(invoiceDir, outputDir string, extractor TextExtractor, matcher CaseMatcher, console io.Writer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if console == nil {
		console = io.Discard
	}
	return &Processor{
		invoiceDir: invoiceDir,
		outputDir:  outputDir,
		extractor:  extractor,
		matcher:    matcher,
		logger:     logger,
		console:    console,
		now:        time.Now,
	}
}

// ProcessInvoice runs the per-file steps: text extraction, pattern
// extraction, registry annotation, verdict, confidence.
func (p *Processor) ProcessInvoice(ctx context.Context, pdfPath string) *Invoice {
	start := time.Now()

	text, ok := p.extractor.Extract(ctx, pdfPath)
	method := model.MethodPDFText
	inv := &Invoice{
		Filename:   filepath.Base(pdfPath),
		Text:       text,
		TextLength: len(text),
	}
	if !ok {
		method = model.MethodFailed
		msg := errFailedToExtract
		inv.ErrorMessage = &msg
	}
	inv.Method = method

	if text != "" {
		inv.Patterns = patterns.ExtractAll(text)
	}

	p.annotateClientCases(inv)
	inv.Summary = p.evaluateVerdict(inv)
	inv.IsCoachingInvoice = len(inv.Patterns.ClientCases) > 0
	inv.Confidence = p.calculateConfidence(inv)

	p.logger.Info("preprocess.invoice.done",
		"filename", inv.Filename,
		"method", inv.Method,
		"text_length", inv.TextLength,
		"client_cases", len(inv.Patterns.ClientCases),
		"verdict", inv.Summary.Verdict,
		"confidence", inv.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return inv
}

// annotateClientCases enriches the raw codes with registry match info.
func (p *Processor) annotateClientCases(inv *Invoice) {
	if p.matcher == nil || len(inv.Patterns.ClientCases) == 0 {
		return
	}
	matches := make(map[string]model.MatchResult, len(inv.Patterns.ClientCases))
	for _, code := range inv.Patterns.ClientCases {
		matches[code] = p.matcher.Match(code)
	}
	inv.Patterns.ClientCaseMatches = matches
}

func (p *Processor) evaluateVerdict(inv *Invoice) model.CaseSummary {
	if p.matcher == nil && len(inv.Patterns.ClientCases) > 0 {
		return model.CaseSummary{
			Verdict: model.VerdictAccept,
			Reason:  reasonNoRegistry,
		}
	}

	matches := inv.Patterns.ClientCaseMatches
	if len(matches) == 0 {
		return model.CaseSummary{
			Verdict: model.VerdictReject,
			Reason:  reasonNoCases,
		}
	}

	var counts model.StatusCounts
	for _, m := range matches {
		switch m.Status {
		case model.MatchExact:
			counts.Exact++
		case model.MatchFuzzyIOSwap:
			counts.FuzzyIOSwap++
		case model.MatchAmbiguousIOSwap:
			counts.AmbiguousIOSwap++
		case model.MatchUnknown:
			counts.Unknown++
		}
	}

	verdict := model.VerdictAccept
	reason := reasonAllExact
	switch {
	case counts.Unknown > 0 || counts.AmbiguousIOSwap > 0:
		verdict = model.VerdictReject
		reason = reasonBadCases
	case counts.FuzzyIOSwap > 0:
		verdict = model.VerdictNeedsReview
		reason = reasonFuzzyCases
	}

	return model.CaseSummary{Verdict: verdict, Reason: reason, Counts: counts}
}

// calculateConfidence scores pattern density. Non-coaching invoices bottom
// out at 0.1 when there was at least some text.
func (p *Processor) calculateConfidence(inv *Invoice) float64 {
	if !inv.IsCoachingInvoice {
		if inv.TextLength > 0 {
			return confNonCoachingWithText
		}
		return 0.0
	}

	score := confBase
	if len(inv.Patterns.Dates) > 0 {
		score += confDates
	}
	if len(inv.Patterns.Amounts) > 0 {
		score += confAmounts
	}
	if len(inv.Patterns.InvoiceNumbers) > 0 {
		score += confInvoiceNumber
	}
	switch {
	case inv.TextLength > longTextThreshold:
		score += confLongText
	case inv.TextLength > shortTextThreshold:
		score += confShortText
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// saveRawText writes the extracted text with a provenance header to
// raw_texts/<name>_raw.txt and records the relative path on the invoice.
func (p *Processor) saveRawText(inv *Invoice) error {
	dir := filepath.Join(p.outputDir, "raw_texts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := strings.TrimSuffix(inv.Filename, ".pdf") + "_raw.txt"
	path := filepath.Join(dir, name)

	var b strings.Builder
	b.WriteString("=== RAW TEXT EXTRACTION ===\n")
	fmt.Fprintf(&b, "Source: %s\n", inv.Filename)
	fmt.Fprintf(&b, "Extraction Date: %s\n", p.now().Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(inv.Text)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return err
	}
	inv.RawTextFile = "raw_texts/" + name
	return nil
}

// Run processes every *.pdf in the invoice directory in lexicographic order
// and writes all batch artifacts. The returned manifest mirrors what was
// written to manifest.json.
func (p *Processor) Run(ctx context.Context) (*model.Manifest, error) {
	if info, err := os.Stat(p.invoiceDir); err != nil {
		return nil, common.NewAppError("INPUT_DIR", fmt.Sprintf("invoice directory %s not accessible", p.invoiceDir), err)
	} else if !info.IsDir() {
		return nil, common.NewAppError("INPUT_DIR", fmt.Sprintf("%s is not a directory", p.invoiceDir), nil)
	}

	entries, err := filepath.Glob(filepath.Join(p.invoiceDir, "*.pdf"))
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	if len(entries) == 0 {
		fmt.Fprintf(p.console, "No PDF files found in %s\n", p.invoiceDir)
		return &model.Manifest{ProcessingDate: p.now().Format(time.RFC3339), OutputStructure: outputStructure(), Invoices: []model.ManifestEntry{}}, nil
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, err
	}

	fmt.Fprintf(p.console, "Found %d PDF files to process\n", len(entries))
	fmt.Fprintln(p.console, strings.Repeat("=", 60))

	invoices := make([]*Invoice, 0, len(entries))
	for _, pdfPath := range entries {
		fmt.Fprintf(p.console, "\nProcessing: %s\n", filepath.Base(pdfPath))
		inv := p.ProcessInvoice(ctx, pdfPath)
		if err := p.saveRawText(inv); err != nil {
			return nil, fmt.Errorf("save raw text for %s: %w", inv.Filename, err)
		}
		p.reportInvoice(inv)
		invoices = append(invoices, inv)
	}

	manifest, err := p.saveResults(invoices)
	if err != nil {
		return nil, err
	}
	p.reportBatch(invoices)
	return manifest, nil
}

// reportBatch prints the end-of-run totals after the artifacts are saved.
func (p *Processor) reportBatch(invoices []*Invoice) {
	coaching := 0
	ready := 0
	totalCases := 0
	withKvK := 0
	withVAT := 0
	var confSum float64
	var lenSum int
	for _, inv := range invoices {
		if inv.IsCoachingInvoice {
			coaching++
		}
		if inv.IsCoachingInvoice && inv.TextLength > 0 && inv.Summary.Verdict != model.VerdictReject {
			ready++
		}
		totalCases += len(inv.Patterns.ClientCases)
		if len(inv.Patterns.KvKNumbers) > 0 {
			withKvK++
		}
		if len(inv.Patterns.VATNumbers) > 0 {
			withVAT++
		}
		confSum += inv.Confidence
		lenSum += inv.TextLength
	}
	n := len(invoices)

	fmt.Fprintf(p.console, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(p.console, "📊 PROCESSING COMPLETE")
	fmt.Fprintf(p.console, "  Total Invoices: %d\n", n)
	fmt.Fprintf(p.console, "  Coaching Invoices: %d\n", coaching)
	fmt.Fprintf(p.console, "  Ready for LLM: %d\n", ready)
	fmt.Fprintf(p.console, "  Average Confidence: %.2f\n", confSum/float64(n))
	fmt.Fprintf(p.console, "  Average Text Length: %d characters\n", lenSum/n)
	fmt.Fprintln(p.console, "\n  Pattern Statistics:")
	fmt.Fprintf(p.console, "    Client Cases: %d\n", totalCases)
	fmt.Fprintf(p.console, "    Invoices with KVK: %d\n", withKvK)
	fmt.Fprintf(p.console, "    Invoices with VAT: %d\n", withVAT)
	fmt.Fprintln(p.console, "\n  Output Structure:")
	for _, key := range []string{"raw_texts", "invoice_metadata.json", "manifest.json"} {
		fmt.Fprintf(p.console, "    %s: %s\n", key, outputStructure()[key])
	}
}

// reportInvoice prints the human-facing triage summary for one invoice.
func (p *Processor) reportInvoice(inv *Invoice) {
	marker := "🔴"
	switch inv.Summary.Verdict {
	case model.VerdictAccept:
		marker = "🟢"
	case model.VerdictNeedsReview:
		marker = "🟡"
	}
	fmt.Fprintf(p.console, "  %s VALIDATION VERDICT: %s\n", marker, strings.ToUpper(string(inv.Summary.Verdict)))
	fmt.Fprintf(p.console, "    Reason: %s\n", inv.Summary.Reason)

	fmt.Fprintf(p.console, "\n  🔑 HEADER DATA STATUS (Initial Extract):\n")
	if kvk := first(inv.Patterns.KvKNumbers); kvk != nil {
		fmt.Fprintf(p.console, "    🟢 KVK: Found (%s)\n", *kvk)
	} else {
		fmt.Fprintln(p.console, "    🟡 KVK: Missing. Will trigger OCR fallback.")
	}
	if vat := first(inv.Patterns.VATNumbers); vat != nil {
		fmt.Fprintf(p.console, "    🟢 VAT: Found (%s)\n", *vat)
	} else {
		fmt.Fprintln(p.console, "    🟡 VAT: Missing. Will trigger OCR fallback.")
	}

	fmt.Fprintf(p.console, "  Text Length: %d characters\n", inv.TextLength)
	fmt.Fprintf(p.console, "  Extraction: %s\n", inv.Method)
	fmt.Fprintf(p.console, "  Client Cases Found: %d\n", len(inv.Patterns.ClientCases))
	if len(inv.Patterns.ClientCases) > 0 {
		head := inv.Patterns.ClientCases
		if len(head) > 5 {
			head = head[:5]
		}
		fmt.Fprintf(p.console, "    Cases: %s\n", strings.Join(head, ", "))
		if rest := len(inv.Patterns.ClientCases) - 5; rest > 0 {
			fmt.Fprintf(p.console, "    ... and %d more\n", rest)
		}
	}
	fmt.Fprintf(p.console, "  Amounts Found: %d\n", len(inv.Patterns.Amounts))
	fmt.Fprintf(p.console, "  Confidence: %.2f\n", inv.Confidence)
	fmt.Fprintf(p.console, "  Raw Text: %s\n", filepath.Base(inv.RawTextFile))
}

func outputStructure() map[string]string {
	return map[string]string{
		"raw_texts":             "Full extracted text for each invoice",
		"invoice_metadata.json": "Detailed metadata and patterns",
		"manifest.json":         "Batch index with per-invoice readiness",
	}
}

// saveResults writes invoice_metadata.json and manifest.json.
func (p *Processor) saveResults(invoices []*Invoice) (*model.Manifest, error) {
	metadata := make(map[string]model.InvoiceMetadata, len(invoices))
	for _, inv := range invoices {
		summary := inv.Summary
		metadata[inv.Filename] = model.InvoiceMetadata{
			TextLength:        inv.TextLength,
			ExtractionMethod:  inv.Method,
			ConfidenceScore:   inv.Confidence,
			KvK:               first(inv.Patterns.KvKNumbers),
			VAT:               first(inv.Patterns.VATNumbers),
			InvoiceNumber:     first(inv.Patterns.InvoiceNumbers),
			InvoiceDate:       first(inv.Patterns.Dates),
			PatternsFound:     inv.Patterns,
			ClientCaseSummary: &summary,
			RawTextFile:       inv.RawTextFile,
			TextPreview:       preview(inv.Text),
			ErrorMessage:      inv.ErrorMessage,
		}
	}

	if err := writeJSON(filepath.Join(p.outputDir, "invoice_metadata.json"), metadata); err != nil {
		return nil, err
	}
	fmt.Fprintf(p.console, "Metadata saved to: %s\n", filepath.Join(p.outputDir, "invoice_metadata.json"))

	manifest := &model.Manifest{
		TotalInvoices:   len(invoices),
		ProcessingDate:  p.now().Format(time.RFC3339),
		OutputStructure: outputStructure(),
		Invoices:        make([]model.ManifestEntry, 0, len(invoices)),
	}
	for _, inv := range invoices {
		ready := inv.IsCoachingInvoice &&
			inv.TextLength > 0 &&
			inv.Summary.Verdict != model.VerdictReject
		manifest.Invoices = append(manifest.Invoices, model.ManifestEntry{
			Filename:          inv.Filename,
			Confidence:        inv.Confidence,
			IsCoachingInvoice: inv.IsCoachingInvoice,
			ClientCaseVerdict: inv.Summary.Verdict,
			ClientCaseReason:  model.StrPtr(inv.Summary.Reason),
			ReadyForLLM:       ready,
		})
	}

	if err := writeJSON(filepath.Join(p.outputDir, "manifest.json"), manifest); err != nil {
		return nil, err
	}
	fmt.Fprintf(p.console, "Manifest saved to: %s\n", filepath.Join(p.outputDir, "manifest.json"))

	return manifest, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func first(list []string) *string {
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func preview(text string) *string {
	if text == "" {
		return nil
	}
	r := []rune(text)
	if len(r) > textPreviewChars {
		r = r[:textPreviewChars]
	}
	s := string(r)
	return &s
}
