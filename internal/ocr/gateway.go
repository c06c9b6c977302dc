// Package ocr renders the first page of a PDF to an image and reads it with
// an external text-detection service. It is the orchestrator's recovery tool
// when the text layer misses critical header fields.
package ocr

import (
	"context"
	"log/slog"
)

// MockText is returned by the offline gateway so the self-correction path
// stays testable without credentials.
const MockText = "[MOCK OCR RESULT] KvK nummer: 84726180 BTW Nr: NL863334647B01"

// Gateway reads the first page of a PDF. An empty string means OCR could not
// produce text; the caller must treat that as a soft failure.
type Gateway interface {
	OCRFirstPage(ctx context.Context, pdfPath string) string
}

// MockGateway stands in when the vision service is unavailable.
type MockGateway struct{}

func (MockGateway) OCRFirstPage(context.Context, string) string {
	return MockText
}

// New returns the vision-backed gateway, or the mock when no API key is
// configured.
func New(cfg Config, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		logger.Warn("ocr.mock_gateway", "reason", "GOOGLE_API_KEY not set")
		return MockGateway{}
	}
	return NewVisionGateway(cfg, logger)
}
