package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/coachpraktijk/invoice-agents/internal/common"
	"github.com/coachpraktijk/invoice-agents/internal/export"
)

func main() {
	var (
		dir = flag.String("dir", "", "directory holding *_parsed.json records (defaults to the configured output dir)")
		out = flag.String("out", "", "output XLSX path (defaults to <dir>/sessions.xlsx)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg := common.LoadConfig()
	if *dir == "" {
		*dir = cfg.Paths.OutputDir()
	}
	if *out == "" {
		*out = filepath.Join(*dir, "sessions.xlsx")
	}

	start := time.Now()
	svc := export.NewService(logger)
	if err := svc.WriteSessionsXLSX(*dir, *out); err != nil {
		logger.Error("export failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("export OK",
		"dir", *dir,
		"out", *out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
