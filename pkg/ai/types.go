package ai

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the language-model backend is unreachable or
// returned a non-retryable API error.
var ErrModelUnavailable = errors.New("language model unavailable")

// ErrModelRateLimited indicates the backend rejected the request due to rate
// limiting.
var ErrModelRateLimited = errors.New("language model rate limited")

// Generator describes a language model that turns a prompt into free-form
// text. Replies are expected, but not guaranteed, to contain JSON; callers
// own the extraction and validation of any structured payload.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcriber turns a recorded candidate answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
