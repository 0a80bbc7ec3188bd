package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WhisperTranscriber implements Transcriber on top of the OpenAI audio API.
// The recording is streamed from the storage URL straight into the request.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	http   *http.Client
	tracer trace.Tracer
}

// NewWhisperTranscriber builds a transcriber using the provided configuration.
func NewWhisperTranscriber(cfg OpenAIConfig) (*WhisperTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	model := cfg.WhisperModel
	if model == "" {
		model = "whisper-1"
	}

	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		model:  model,
		http:   &http.Client{Timeout: 30 * time.Second},
		tracer: otel.Tracer("github.com/hireloop/assess-api/pkg/ai/whisper"),
	}, nil
}

// Transcribe downloads the recorded answer and sends it to the speech-to-text
// model.
func (t *WhisperTranscriber) Transcribe(parent context.Context, audioURL string) (string, error) {
	ctx, span := t.tracer.Start(parent, "whisper.transcribe", trace.WithAttributes(
		attribute.String("model", t.model),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build audio request: %w", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: fetch audio: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: fetch audio: status %d", ErrModelUnavailable, resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	transcription, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   resp.Body,
		FilePath: "answer.webm",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", classifyAPIError(err)
	}

	return transcription.Text, nil
}
