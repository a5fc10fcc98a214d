package domain

import "context"

// Prompt is a single chat-style request to a generative model.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response when supported.
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// Completer sends a prompt to a generative model and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
