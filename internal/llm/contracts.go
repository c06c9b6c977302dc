package llm

import "context"

// Agent is one extraction role backed by a model. Generate returns the raw
// model text; callers strip fences and validate against the role's schema.
type Agent interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
