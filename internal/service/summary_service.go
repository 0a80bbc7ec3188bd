package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
	"github.com/hireloop/assess-api/internal/utils"
	"github.com/hireloop/assess-api/pkg/ai"
)

// SummaryService writes the session-level verdict after a session completes.
// The write is guarded in SQL, so concurrent runs produce exactly one summary.
type SummaryService interface {
	SummarizeSession(ctx context.Context, sessionID uint) error
}

// NewSummaryService constructs the summarizer. Both the redis client and the
// NATS connection are optional.
func NewSummaryService(
	sessions repository.SessionRepository,
	generator ai.Generator,
	provider string,
	cache *redis.Client,
	nc *nats.Conn,
	subject string,
	logger zerolog.Logger,
) SummaryService {
	return &summaryService{
		sessions:  sessions,
		generator: generator,
		provider:  provider,
		cache:     cache,
		nc:        nc,
		subject:   subject,
		logger:    logger.With().Str("component", "summary_service").Logger(),
	}
}

type summaryService struct {
	sessions  repository.SessionRepository
	generator ai.Generator
	provider  string
	cache     *redis.Client
	nc        *nats.Conn
	subject   string
	logger    zerolog.Logger
}

type summaryPayload struct {
	OverallScore float64 `json:"overall_score"`
	Summary      string  `json:"final_evaluation_summary"`
}

// sessionSummarizedEvent is published on NATS once the summary lands.
type sessionSummarizedEvent struct {
	SessionID    uint    `json:"session_id"`
	Kind         string  `json:"kind"`
	OverallScore float64 `json:"overall_score"`
}

func (s *summaryService) SummarizeSession(ctx context.Context, sessionID uint) error {
	session, err := s.sessions.GetDetailed(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if session.HasSummary() {
		return nil
	}

	inputs, totalSubmissions, pending := collectSummaryInputs(session)
	if totalSubmissions == 0 {
		// Nothing was ever submitted; there is no material to summarize and
		// no later run that could change that.
		return s.fail(sessionID, errors.New("no submissions received before the session ended"))
	}
	if len(inputs) == 0 && pending {
		// Evaluations are still in flight. Stay pending; re-ending the
		// session re-triggers this run.
		s.logger.Info().Uint("session_id", sessionID).Msg("summary deferred, evaluations still processing")
		return nil
	}
	if len(inputs) == 0 {
		return s.fail(sessionID, errors.New("all submissions failed evaluation"))
	}

	prompt := buildSummaryPrompt(session, inputs)
	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return s.fail(sessionID, fmt.Errorf("model request failed: %w", err))
	}

	raw, err := utils.ExtractJSON(reply)
	if err != nil {
		return s.fail(sessionID, fmt.Errorf("unparseable model reply: %w", err))
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return s.fail(sessionID, fmt.Errorf("decode model reply: %w", err))
	}
	if err := summarySchema.Validate(generic); err != nil {
		return s.fail(sessionID, fmt.Errorf("model reply failed validation: %w", err))
	}

	var payload summaryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return s.fail(sessionID, fmt.Errorf("decode model reply: %w", err))
	}

	details := datatypes.JSONMap{
		"provider":        s.provider,
		"evaluated_items": len(inputs),
		"total_items":     len(session.Items),
	}
	wrote, err := s.sessions.SetSummary(ctx, sessionID, payload.OverallScore, payload.Summary, details)
	if err != nil {
		return s.fail(sessionID, fmt.Errorf("persist summary: %w", err))
	}
	if !wrote {
		// A concurrent run already wrote the summary; its result stands.
		return nil
	}

	s.invalidateCache(sessionID)
	s.publish(sessionSummarizedEvent{
		SessionID:    sessionID,
		Kind:         session.Kind,
		OverallScore: payload.OverallScore,
	})

	s.logger.Info().
		Uint("session_id", sessionID).
		Float64("overall_score", payload.OverallScore).
		Msg("session summarized")
	return nil
}

// collectSummaryInputs walks the items, taking the latest submission per
// item, and reports whether any evaluation is still in flight.
func collectSummaryInputs(session models.AssessmentSession) ([]summaryItemInput, int, bool) {
	var inputs []summaryItemInput
	totalSubmissions := 0
	pending := false

	for _, item := range session.Items {
		totalSubmissions += len(item.Submissions)
		if len(item.Submissions) == 0 {
			continue
		}

		latest := item.Submissions[len(item.Submissions)-1]
		switch latest.ProcessingStatus {
		case models.SubmissionStatusEvaluated:
			if latest.Evaluation == nil {
				continue
			}
			inputs = append(inputs, summaryItemInput{
				Title:      item.Title,
				Feedback:   latest.Evaluation.Feedback,
				ScoreLines: scoreLines(*latest.Evaluation),
			})
		case models.SubmissionStatusFailed:
			// Nothing to aggregate from this item.
		default:
			pending = true
		}
	}

	return inputs, totalSubmissions, pending
}

func scoreLines(evaluation models.Evaluation) []string {
	var lines []string
	add := func(label string, score *float64) {
		if score != nil {
			lines = append(lines, fmt.Sprintf("%s: %.0f", label, *score))
		}
	}
	add("Correctness", evaluation.CorrectnessScore)
	add("Efficiency", evaluation.EfficiencyScore)
	add("Style", evaluation.StyleScore)
	add("Readability", evaluation.ReadabilityScore)
	add("Plagiarism risk", evaluation.PlagiarismScore)
	add("Relevance", evaluation.RelevanceScore)
	add("Clarity", evaluation.ClarityScore)
	add("Confidence", evaluation.ConfidenceScore)
	if evaluation.SentimentScore != nil {
		lines = append(lines, fmt.Sprintf("Sentiment: %.2f", *evaluation.SentimentScore))
	}
	return lines
}

// fail records the terminal failure on the session. A fresh context is used
// so the record survives even when the task deadline already fired.
func (s *summaryService) fail(sessionID uint, cause error) error {
	s.logger.Error().Err(cause).Uint("session_id", sessionID).Msg("summary failed")
	if err := s.sessions.MarkSummaryFailed(context.Background(), sessionID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Uint("session_id", sessionID).Msg("failed to record summary failure")
	}
	return cause
}

func (s *summaryService) invalidateCache(sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(context.Background(), evaluationCacheKey(sessionID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to invalidate evaluation cache")
	}
}

func (s *summaryService) publish(event sessionSummarizedEvent) {
	if s.nc == nil || s.subject == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.nc.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", event.SessionID).Msg("failed to publish summary event")
	}
}
