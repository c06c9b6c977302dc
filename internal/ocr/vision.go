package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const defaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

// Config holds everything the vision gateway needs. Pdftoppm renders the
// first page to PNG before the bytes are sent to the annotate endpoint.
type Config struct {
	APIKey   string
	Pdftoppm string
	DPI      int
	Timeout  time.Duration

	// Endpoint overrides the annotate URL in tests.
	Endpoint string
}

// VisionGateway rasterizes page one of a PDF and sends it to the Google
// Vision document text detection endpoint.
type VisionGateway struct {
	cfg    Config
	runner Runner
	client *http.Client
	logger *slog.Logger
}

func NewVisionGateway(cfg Config, logger *slog.Logger) *VisionGateway {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultVisionEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionGateway{
		cfg:    cfg,
		runner: execRunner{},
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// OCRFirstPage returns the detected text of page one, or "" when rendering or
// annotation fails. Failures are logged, never fatal.
func (g *VisionGateway) OCRFirstPage(ctx context.Context, pdfPath string) string {
	start := time.Now()

	png, err := g.renderFirstPage(ctx, pdfPath)
	if err != nil {
		g.logger.Warn("ocr.render.failed", "path", pdfPath, "error", err)
		return ""
	}

	text, err := g.annotate(ctx, png)
	if err != nil {
		g.logger.Warn("ocr.annotate.failed", "path", pdfPath, "error", err)
		return ""
	}

	g.logger.Info("ocr.done",
		"path", pdfPath,
		"text_length", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text
}

func (g *VisionGateway) renderFirstPage(ctx context.Context, pdfPath string) ([]byte, error) {
	pages, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "inv-ocr-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			g.logger.Warn("ocr.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -f 1 -l 1 -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := g.runner.Run(ctx, g.cfg.Pdftoppm,
		"-f", "1", "-l", "1",
		"-r", fmt.Sprintf("%d", g.cfg.DPI),
		"-png", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return os.ReadFile(matches[0])
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type annotateRequest struct {
	Requests []visionRequest `json:"requests"`
}

type visionAnnotation struct {
	Text string `json:"text"`
}

type visionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type visionResult struct {
	FullTextAnnotation visionAnnotation `json:"fullTextAnnotation"`
	Error              visionError      `json:"error"`
}

type annotateResponse struct {
	Responses []visionResult `json:"responses"`
}

func (g *VisionGateway) annotate(ctx context.Context, png []byte) (string, error) {
	req := annotateRequest{
		Requests: []visionRequest{{
			Image:    visionImage{Content: base64.StdEncoding.EncodeToString(png)},
			Features: []visionFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := g.cfg.Endpoint + "?key=" + g.cfg.APIKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision status %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	var out annotateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Responses) == 0 {
		return "", fmt.Errorf("empty response")
	}
	if out.Responses[0].Error.Message != "" {
		return "", fmt.Errorf("vision error %d: %s", out.Responses[0].Error.Code, out.Responses[0].Error.Message)
	}
	return out.Responses[0].FullTextAnnotation.Text, nil
}
