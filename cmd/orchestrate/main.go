package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/coachpraktijk/invoice-agents/internal/common"
	"github.com/coachpraktijk/invoice-agents/internal/ledger"
	"github.com/coachpraktijk/invoice-agents/internal/llm"
	"github.com/coachpraktijk/invoice-agents/internal/ocr"
	"github.com/coachpraktijk/invoice-agents/internal/orchestrate"
	"github.com/coachpraktijk/invoice-agents/internal/prompt"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("GOOGLE_API_KEY not set, agent calls will fail and OCR runs in mock mode")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	led, err := ledger.Open(cfg.Paths.LedgerPath, logger)
	if err != nil {
		logger.Warn("ledger unavailable, run will not be recorded", "path", cfg.Paths.LedgerPath, "error", err)
		led = nil
	} else {
		defer func() {
			if cerr := led.Close(); cerr != nil {
				logger.Error("close ledger", "error", cerr)
			}
		}()
	}

	contexts, err := orchestrate.LoadInvoiceContexts(cfg.Paths.LLMReadyDir(), logger)
	if err != nil {
		logger.Error("load invoice contexts", "error", err)
		os.Exit(1)
	}

	headerAgent := llm.NewGeminiAgent("HeaderAgent", prompt.HeaderInstruction, cfg.LLM, "", logger)
	lineAgent := llm.NewGeminiAgent("LineItemAgent", prompt.LineItemInstruction, cfg.LLM, "", logger)

	gateway := ocr.New(ocr.Config{
		APIKey:   cfg.LLM.APIKey,
		Pdftoppm: cfg.Tools.Pdftoppm,
		DPI:      cfg.OCR.DPI,
	}, logger)

	orch := orchestrate.New(orchestrate.Config{
		InvoicesDir: cfg.Paths.InvoicesDir(),
		OCRTextsDir: cfg.Paths.OCRTextsDir(),
		OutputDir:   cfg.Paths.OutputDir(),
		MaxRetries:  cfg.LLM.MaxRetries,
		Cooldown:    cfg.LLM.Cooldown,
	}, headerAgent, lineAgent, gateway, os.Stdout, logger)

	start := time.Now()
	runErr := orch.Run(ctx, contexts)

	run := ledger.Run{
		RunID:      uuid.NewString(),
		Phase:      "orchestrate",
		StartedAt:  start,
		FinishedAt: time.Now(),
		Invoices:   len(contexts),
		Succeeded:  len(contexts),
	}
	if runErr != nil {
		run.Succeeded = 0
		run.Failed = len(contexts)
	}
	if led != nil {
		if err := led.Record(ctx, run); err != nil {
			logger.Error("record run", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("orchestrate failed", "error", runErr, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("orchestrate OK",
		"run_id", run.RunID,
		"invoices", len(contexts),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
