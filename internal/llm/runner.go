package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// transientMarkers are matched against error text to decide whether a call
// is worth retrying. 429 and 503 cover rate limits and overload from the
// status line; the words cover error payloads that arrive with a 200.
var transientMarkers = []string{"429", "503", "overloaded", "unavailable"}

// IsTransient reports whether the error looks like a rate limit or a
// temporarily overloaded backend.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RunAgent drives one agent call with retries. Transient failures back off
// exponentially (2s, 4s, 8s, ...); anything else, including a reply that
// fails schema validation, is returned immediately. The returned bytes are
// the fence-stripped, schema-valid JSON payload.
func RunAgent(ctx context.Context, agent Agent, prompt string, schema map[string]any, maxRetries int, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		text, err := agent.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			if !IsTransient(err) {
				return nil, fmt.Errorf("%s: %w", agent.Name(), err)
			}
			if attempt == maxRetries-1 {
				break
			}
			wait := time.Duration(2<<attempt) * time.Second
			logger.Warn("llm.retry.backoff",
				"agent", agent.Name(),
				"attempt", attempt+1,
				"wait_s", wait.Seconds(),
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		payload := []byte(StripMarkdownJSONFences(text))
		if err := ValidateJSONAgainstSchema(schema, payload); err != nil {
			logger.Error("llm.schema_validation_failed",
				"agent", agent.Name(),
				"error", err,
				"payload", truncate(string(payload), 1024),
			)
			return nil, fmt.Errorf("%s: schema validation failed: %w", agent.Name(), err)
		}
		return payload, nil
	}

	return nil, fmt.Errorf("%s: retries exhausted: %w", agent.Name(), lastErr)
}
