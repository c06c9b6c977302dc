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
	"github.com/coachpraktijk/invoice-agents/internal/pdftext"
	"github.com/coachpraktijk/invoice-agents/internal/preprocess"
	"github.com/coachpraktijk/invoice-agents/internal/registry"
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

	extractor := pdftext.NewExtractor(cfg.Tools.Pdftotext, logger)

	var matcher preprocess.CaseMatcher
	if m, err := registry.NewMatcher(cfg.Paths.RegistryPath(), logger); err != nil {
		logger.Warn("registry unavailable, case validation disabled",
			"path", cfg.Paths.RegistryPath(), "error", err)
	} else {
		matcher = m
	}

	p := preprocess.NewProcessor(
		cfg.Paths.InvoicesDir(),
		cfg.Paths.LLMReadyDir(),
		extractor,
		matcher,
		os.Stdout,
		logger,
	)

	start := time.Now()
	manifest, err := p.Run(ctx)
	if err != nil {
		logger.Error("preprocess failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	ready := 0
	for _, e := range manifest.Invoices {
		if e.ReadyForLLM {
			ready++
		}
	}

	run := ledger.Run{
		RunID:      uuid.NewString(),
		Phase:      "preprocess",
		StartedAt:  start,
		FinishedAt: time.Now(),
		Invoices:   manifest.TotalInvoices,
		Succeeded:  ready,
		Failed:     manifest.TotalInvoices - ready,
	}
	if led != nil {
		if err := led.Record(ctx, run); err != nil {
			logger.Error("record run", "error", err)
		}
	}

	logger.Info("preprocess OK",
		"run_id", run.RunID,
		"invoices", manifest.TotalInvoices,
		"ready_for_llm", ready,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
