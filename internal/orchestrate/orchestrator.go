// Package orchestrate is the second half of the pipeline. It walks the
// pre-processed batch, runs the header and line-item agents in parallel per
// invoice, escalates through the self-correction ladder when critical header
// fields are missing, and writes one validated record per invoice.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coachpraktijk/invoice-agents/internal/common"
	"github.com/coachpraktijk/invoice-agents/internal/llm"
	"github.com/coachpraktijk/invoice-agents/internal/model"
	"github.com/coachpraktijk/invoice-agents/internal/ocr"
	"github.com/coachpraktijk/invoice-agents/internal/patterns"
	"github.com/coachpraktijk/invoice-agents/internal/prompt"
)

// Config holds the directory layout and pacing knobs for one batch run.
type Config struct {
	InvoicesDir string
	OCRTextsDir string
	OutputDir   string
	MaxRetries  int
	Cooldown    time.Duration
}

// Orchestrator drives the agent phase for a batch of invoice contexts.
type Orchestrator struct {
	cfg         Config
	headerAgent llm.Agent
	lineAgent   llm.Agent
	gateway     ocr.Gateway
	limiter     *rate.Limiter
	logger      *slog.Logger
	console     io.Writer
}

// New wires an orchestrator. The cooldown limiter paces invoice starts to
// stay under upstream quotas; a zero cooldown disables pacing.
func New(cfg Config, headerAgent, lineAgent llm.Agent, gateway ocr.Gateway, console io.Writer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if console == nil {
		console = io.Discard
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	var limiter *rate.Limiter
	if cfg.Cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Cooldown), 1)
	}
	return &Orchestrator{
		cfg:         cfg,
		headerAgent: headerAgent,
		lineAgent:   lineAgent,
		gateway:     gateway,
		limiter:     limiter,
		logger:      logger,
		console:     console,
	}
}

func missing(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

// ProcessInvoice runs the full per-invoice flow. It always returns a
// well-typed record; agent failures degrade to empty substitutes rather than
// aborting the invoice.
func (o *Orchestrator) ProcessInvoice(ctx context.Context, ictx model.InvoiceContext) *model.InvoiceResult {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	headerPrompt := prompt.BuildHeaderPrompt(ictx.RawText, ictx.Hints)
	linesPrompt := prompt.BuildLineItemPrompt(ictx.RawText, ictx.AllowedCasesPrompt)
	headerSchema := llm.BuildHeaderSchema()
	linesSchema := llm.BuildLineItemsSchema()

	o.logger.Info("orchestrate.invoice.start",
		"req_id", rid,
		"filename", ictx.Filename,
		"allowed_cases", len(ictx.AllowedCasesPrompt),
	)
	fmt.Fprintf(o.console, "🤖 Orchestrator: Dispatching agents for %s...\n", ictx.Filename)

	// Both agents run concurrently; a failure of one never cancels the
	// other, so the closures always return nil and errors are kept aside.
	var (
		headerPayload, linesPayload []byte
		headerErr, linesErr         error
	)
	var g errgroup.Group
	g.Go(func() error {
		headerPayload, headerErr = llm.RunAgent(ctx, o.headerAgent, headerPrompt, headerSchema, o.cfg.MaxRetries, o.logger)
		return nil
	})
	g.Go(func() error {
		linesPayload, linesErr = llm.RunAgent(ctx, o.lineAgent, linesPrompt, linesSchema, o.cfg.MaxRetries, o.logger)
		return nil
	})
	_ = g.Wait()

	header := model.HeaderResult{}
	if headerErr != nil {
		o.logger.Warn("orchestrate.header_agent.failed", "req_id", rid, "filename", ictx.Filename, "error", headerErr)
	} else if err := json.Unmarshal(headerPayload, &header); err != nil {
		o.logger.Warn("orchestrate.header_agent.bad_json", "req_id", rid, "filename", ictx.Filename, "error", err)
	}

	lines := emptyLineItems()
	if linesErr != nil {
		o.logger.Warn("orchestrate.lineitem_agent.failed", "req_id", rid, "filename", ictx.Filename, "error", linesErr)
	} else if err := json.Unmarshal(linesPayload, &lines); err != nil {
		o.logger.Warn("orchestrate.lineitem_agent.bad_json", "req_id", rid, "filename", ictx.Filename, "error", err)
		lines = emptyLineItems()
	}

	if missing(header.InvoiceHeader.KvKNumber) || missing(header.InvoiceHeader.VATNumber) {
		o.selfCorrect(ctx, ictx, &header)
	}

	lines = drainZeroHours(lines)

	result := &model.InvoiceResult{
		InvoiceHeader:         header.InvoiceHeader,
		IsCoachingInvoice:     header.IsCoachingInvoice,
		ClientCases:           lines.ClientCases,
		ClientCasesNoActivity: lines.ClientCasesNoActivity,
	}
	applyCorrections(result, ictx.CorrectionMap, o.logger)
	enforceAllowList(result, ictx.AllowedCasesValid, o.logger)

	o.logger.Info("orchestrate.invoice.done",
		"req_id", rid,
		"filename", ictx.Filename,
		"client_cases", len(result.ClientCases),
		"no_activity", len(result.ClientCasesNoActivity),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// selfCorrect climbs the recovery ladder for missing KvK/VAT: OCR the first
// page, fill from regex, then fall back to the header agent on the OCR text.
func (o *Orchestrator) selfCorrect(ctx context.Context, ictx model.InvoiceContext, header *model.HeaderResult) {
	rid := common.RequestIDFromContext(ctx)
	fmt.Fprintf(o.console, "⚠️ Missing KvK/VAT for %s. Orchestrator deciding to use OCR Tool...\n", ictx.Filename)

	pdfPath := filepath.Join(o.cfg.InvoicesDir, ictx.Filename)
	if _, err := os.Stat(pdfPath); err != nil {
		o.logger.Warn("orchestrate.selfcorrect.pdf_missing", "req_id", rid, "path", pdfPath, "error", err)
		return
	}

	ocrText := o.gateway.OCRFirstPage(ctx, pdfPath)
	if ocrText == "" {
		o.logger.Warn("orchestrate.selfcorrect.ocr_empty", "req_id", rid, "filename", ictx.Filename)
		return
	}
	o.persistOCRText(ictx.Filename, ocrText)

	// Tier 1: deterministic regex on the OCR dump.
	fields := patterns.ExtractHeaderFields(ocrText)
	if missing(header.InvoiceHeader.KvKNumber) && fields.KvKNumber != "" {
		header.InvoiceHeader.KvKNumber = &fields.KvKNumber
		o.logger.Info("orchestrate.selfcorrect.regex_hit", "req_id", rid, "field", "kvkNumber", "value", fields.KvKNumber)
	}
	if missing(header.InvoiceHeader.VATNumber) && fields.VATNumber != "" {
		header.InvoiceHeader.VATNumber = &fields.VATNumber
		o.logger.Info("orchestrate.selfcorrect.regex_hit", "req_id", rid, "field", "vatNumber", "value", fields.VATNumber)
	}

	missingKvK := missing(header.InvoiceHeader.KvKNumber)
	missingVAT := missing(header.InvoiceHeader.VATNumber)
	if !missingKvK && !missingVAT {
		o.logger.Info("orchestrate.selfcorrect.regex_complete", "req_id", rid, "filename", ictx.Filename)
		return
	}

	// Tier 2: ask the header agent to reconstruct from the OCR text,
	// keeping everything already known.
	recoveryPrompt := prompt.BuildOCRRecoveryPrompt(ocrText, *header, missingKvK, missingVAT)
	payload, err := llm.RunAgent(ctx, o.headerAgent, recoveryPrompt, llm.BuildHeaderSchema(), o.cfg.MaxRetries, o.logger)
	if err != nil {
		o.logger.Warn("orchestrate.selfcorrect.llm_failed", "req_id", rid, "filename", ictx.Filename, "error", err)
		return
	}
	var recovered model.HeaderResult
	if err := json.Unmarshal(payload, &recovered); err != nil {
		o.logger.Warn("orchestrate.selfcorrect.llm_bad_json", "req_id", rid, "filename", ictx.Filename, "error", err)
		return
	}

	// Only fill gaps; never overwrite fields we already trust.
	if missingKvK && !missing(recovered.InvoiceHeader.KvKNumber) {
		header.InvoiceHeader.KvKNumber = recovered.InvoiceHeader.KvKNumber
		o.logger.Info("orchestrate.selfcorrect.llm_hit", "req_id", rid, "field", "kvkNumber", "value", *recovered.InvoiceHeader.KvKNumber)
	}
	if missingVAT && !missing(recovered.InvoiceHeader.VATNumber) {
		header.InvoiceHeader.VATNumber = recovered.InvoiceHeader.VATNumber
		o.logger.Info("orchestrate.selfcorrect.llm_hit", "req_id", rid, "field", "vatNumber", "value", *recovered.InvoiceHeader.VATNumber)
	}
}

// persistOCRText keeps the OCR dump on disk for auditability. Failures are
// logged only; the dump is not load-bearing.
func (o *Orchestrator) persistOCRText(filename, text string) {
	if err := os.MkdirAll(o.cfg.OCRTextsDir, 0o755); err != nil {
		o.logger.Warn("orchestrate.ocr_dump.mkdir_failed", "dir", o.cfg.OCRTextsDir, "error", err)
		return
	}
	name := strings.TrimSuffix(filename, ".pdf") + "_ocr.txt"
	path := filepath.Join(o.cfg.OCRTextsDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		o.logger.Warn("orchestrate.ocr_dump.write_failed", "path", path, "error", err)
		return
	}
	fmt.Fprintf(o.console, "   💾 Saved OCR dump to: %s\n", name)
}

// Run processes every context in order and writes <name>_parsed.json per
// invoice. The cooldown limiter spaces invoice starts; the final invoice is
// never followed by a sleep.
func (o *Orchestrator) Run(ctx context.Context, contexts []model.InvoiceContext) error {
	if len(contexts) == 0 {
		fmt.Fprintln(o.console, "No invoices found to process.")
		return nil
	}
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return err
	}

	for i, ictx := range contexts {
		if o.limiter != nil {
			if i > 0 {
				fmt.Fprintf(o.console, "   💤 Cooling down for %.0fs to avoid Rate Limit...\n", o.cfg.Cooldown.Seconds())
			}
			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		fmt.Fprintf(o.console, "\nProcessing: %s\n", ictx.Filename)
		result := o.ProcessInvoice(ctx, ictx)

		name := strings.TrimSuffix(ictx.Filename, ".pdf") + "_parsed.json"
		path := filepath.Join(o.cfg.OutputDir, name)
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", ictx.Filename, err)
		}
		if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
			return fmt.Errorf("write result for %s: %w", ictx.Filename, err)
		}

		fmt.Fprintf(o.console, "✅ Success! Saved to %s\n", name)
		fmt.Fprintf(o.console, "   Supplier: %s\n", model.StrOrEmpty(result.InvoiceHeader.SupplierName))
		fmt.Fprintf(o.console, "   Cases Found: %d\n", len(result.ClientCases))
	}

	fmt.Fprintln(o.console, "   🚀 Batch complete. Skipping final cooldown.")
	return nil
}

func emptyLineItems() model.LineItemsResult {
	return model.LineItemsResult{
		ClientCases:           []model.ClientCase{},
		ClientCasesNoActivity: []string{},
	}
}
