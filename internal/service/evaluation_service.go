package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
	"github.com/hireloop/assess-api/internal/utils"
	"github.com/hireloop/assess-api/pkg/ai"
)

// EvaluationService scores a single submission with the language model. It
// runs on the background dispatcher; every failure path leaves a terminal
// processing status behind so a dropped evaluation is always visible.
type EvaluationService interface {
	EvaluateSubmission(ctx context.Context, submissionID uint) error
}

// NewEvaluationService constructs the evaluation orchestrator.
func NewEvaluationService(
	sessions repository.SessionRepository,
	submissions repository.SubmissionRepository,
	generator ai.Generator,
	transcriber ai.Transcriber,
	provider string,
	cache *redis.Client,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		sessions:    sessions,
		submissions: submissions,
		generator:   generator,
		transcriber: transcriber,
		provider:    provider,
		cache:       cache,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

type evaluationService struct {
	sessions    repository.SessionRepository
	submissions repository.SubmissionRepository
	generator   ai.Generator
	transcriber ai.Transcriber
	provider    string
	cache       *redis.Client
	logger      zerolog.Logger
}

type codingEvaluationPayload struct {
	CorrectnessScore *float64 `json:"correctness_score"`
	EfficiencyScore  *float64 `json:"efficiency_score"`
	StyleScore       *float64 `json:"style_score"`
	ReadabilityScore *float64 `json:"readability_score"`
	PlagiarismScore  *float64 `json:"plagiarism_score"`
	Feedback         string   `json:"ai_feedback"`
}

type interviewEvaluationPayload struct {
	RelevanceScore  *float64 `json:"relevance_score"`
	ClarityScore    *float64 `json:"clarity_score"`
	SentimentScore  *float64 `json:"sentiment_score"`
	ConfidenceScore *float64 `json:"confidence_score"`
	KeywordMatches  []string `json:"keyword_matches"`
	Feedback        string   `json:"ai_feedback"`
}

func (s *evaluationService) EvaluateSubmission(ctx context.Context, submissionID uint) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("load submission: %w", err)
	}
	if submission.HasBeenEvaluated() {
		return nil
	}

	if err := s.submissions.SetProcessingStatus(ctx, submissionID, models.SubmissionStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	item, err := s.sessions.GetItem(ctx, submission.ItemID)
	if err != nil {
		return s.fail(submissionID, fmt.Errorf("load item: %w", err))
	}

	evaluation, err := s.evaluate(ctx, item, submission)
	if err != nil {
		return s.fail(submissionID, err)
	}

	evaluation.SubmissionID = submissionID
	evaluation.Provider = s.provider
	if err := s.submissions.SaveEvaluation(ctx, evaluation); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another run got there first; its result stands.
			return nil
		}
		return s.fail(submissionID, fmt.Errorf("persist evaluation: %w", err))
	}

	if err := s.submissions.SetProcessingStatus(ctx, submissionID, models.SubmissionStatusEvaluated); err != nil {
		return fmt.Errorf("mark evaluated: %w", err)
	}

	s.invalidateCache(submission.SessionID)
	s.logger.Info().
		Uint("submission_id", submissionID).
		Str("kind", item.Kind).
		Msg("submission evaluated")
	return nil
}

func (s *evaluationService) evaluate(ctx context.Context, item models.SessionItem, submission models.Submission) (*models.Evaluation, error) {
	var prompt string
	switch item.Kind {
	case models.SessionKindCodingTest:
		prompt = buildCodingPrompt(item, submission, executionSummary(submission.ExecutionResult))
	case models.SessionKindInterview:
		transcript, err := s.ensureTranscript(ctx, submission)
		if err != nil {
			return nil, err
		}
		prompt = buildInterviewPrompt(item, transcript)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSessionKind, item.Kind)
	}

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}

	raw, err := utils.ExtractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("unparseable model reply: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}

	evaluation := &models.Evaluation{Raw: rawToMap(raw)}
	switch item.Kind {
	case models.SessionKindCodingTest:
		if err := codingSchema.Validate(generic); err != nil {
			return nil, fmt.Errorf("model reply failed validation: %w", err)
		}
		var payload codingEvaluationPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
		evaluation.CorrectnessScore = payload.CorrectnessScore
		evaluation.EfficiencyScore = payload.EfficiencyScore
		evaluation.StyleScore = payload.StyleScore
		evaluation.ReadabilityScore = payload.ReadabilityScore
		evaluation.PlagiarismScore = payload.PlagiarismScore
		evaluation.Feedback = payload.Feedback
	case models.SessionKindInterview:
		if err := interviewSchema.Validate(generic); err != nil {
			return nil, fmt.Errorf("model reply failed validation: %w", err)
		}
		var payload interviewEvaluationPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
		evaluation.RelevanceScore = payload.RelevanceScore
		evaluation.ClarityScore = payload.ClarityScore
		evaluation.SentimentScore = payload.SentimentScore
		evaluation.ConfidenceScore = payload.ConfidenceScore
		evaluation.Feedback = payload.Feedback
		if len(payload.KeywordMatches) > 0 {
			matches, err := json.Marshal(payload.KeywordMatches)
			if err == nil {
				evaluation.KeywordMatches = matches
			}
		}
	}

	return evaluation, nil
}

func (s *evaluationService) ensureTranscript(ctx context.Context, submission models.Submission) (string, error) {
	if submission.Transcript != "" {
		return submission.Transcript, nil
	}
	if submission.AudioURL == "" {
		return "", errors.New("interview submission has no audio")
	}

	transcript, err := s.transcriber.Transcribe(ctx, submission.AudioURL)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	if err := s.submissions.SetTranscript(ctx, submission.ID, transcript); err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}
	return transcript, nil
}

// fail records the terminal failure on the submission. A fresh context is
// used so the record survives even when the task deadline already fired.
func (s *evaluationService) fail(submissionID uint, cause error) error {
	s.logger.Error().Err(cause).Uint("submission_id", submissionID).Msg("evaluation failed")
	if err := s.submissions.MarkFailed(context.Background(), submissionID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to record evaluation failure")
	}
	return cause
}

func (s *evaluationService) invalidateCache(sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(context.Background(), evaluationCacheKey(sessionID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to invalidate evaluation cache")
	}
}

func executionSummary(result datatypes.JSONMap) string {
	if len(result) == 0 {
		return ""
	}

	passed, okP := result["passed_tests"].(float64)
	total, okT := result["total_tests"].(float64)
	if okP && okT {
		summary := fmt.Sprintf("passed %d of %d test cases", int(passed), int(total))
		if execErr, ok := result["error"].(string); ok && execErr != "" {
			summary += fmt.Sprintf(" (execution aborted: %s)", execErr)
		}
		return summary
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(payload)
}

func rawToMap(raw json.RawMessage) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return datatypes.JSONMap{}
	}
	return out
}
