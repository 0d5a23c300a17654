package core

import "context"

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	SystemPrompt        string
}

// Client is a provider-agnostic interface for the one LLM operation the
// claims engine needs: send a prompt, get the raw response text back.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}
