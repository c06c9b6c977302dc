package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coachpraktijk/invoice-agents/internal/common"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAgent calls the generateContent endpoint with a fixed system
// instruction. Each pipeline role (header, line items, text recovery) gets
// its own instance.
type GeminiAgent struct {
	name    string
	system  string
	cfg     common.LLMConfig
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiAgent builds an agent for one role. baseURL is overridable in
// tests; pass "" for the public endpoint.
func NewGeminiAgent(name, systemInstruction string, cfg common.LLMConfig, baseURL string, logger *slog.Logger) *GeminiAgent {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiAgent{
		name:    name,
		system:  systemInstruction,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (a *GeminiAgent) Name() string { return a.name }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiGenConfig struct {
	Temperature float32 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt and returns the concatenated candidate text.
// HTTP status codes are embedded in returned errors so the retry layer can
// classify them.
func (a *GeminiAgent) Generate(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	a.logger.Info("llm.generate.start",
		"req_id", rid,
		"agent", a.name,
		"model", a.cfg.Model,
		"temp", a.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenConfig{Temperature: a.cfg.Temperature},
	}
	if a.system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: a.system}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.cfg.Model, a.cfg.APIKey)
	raw, status, err := SendJSON(ctx, a.client, url, body, nil, a.logger)
	if err != nil {
		a.logger.Error("llm.generate.http_error",
			"req_id", rid, "agent", a.name, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini status %d: %w: %s", status, err, truncate(string(raw), 512))
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("gemini error %d %s: %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()

	a.logger.Info("llm.generate.ok",
		"req_id", rid,
		"agent", a.name,
		"finish_reason", resp.Candidates[0].FinishReason,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
