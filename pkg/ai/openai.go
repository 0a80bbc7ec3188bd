package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of language model requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of language model failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI adapters.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	WhisperModel string
	MaxTokens    int
	Temperature  float32
	Logger       zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
// The reply is returned verbatim; JSON response formatting is deliberately not
// forced so prose-wrapped replies stay observable to the extractor.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/hireloop/assess-api/pkg/ai/openai"),
		logger: logger,
	}, nil
}

// Generate sends the prompt to OpenAI and returns the raw reply text.
func (g *OpenAIGenerator) Generate(parent context.Context, prompt string) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", classifyAPIError(err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned", ErrModelUnavailable)
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrModelRateLimited, err)
	}
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}
