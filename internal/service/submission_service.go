package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/hireloop/assess-api/internal/dto"
	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
	"github.com/hireloop/assess-api/internal/tasks"
	"github.com/hireloop/assess-api/pkg/sandbox"
)

// Re-exported so handlers can map sandbox failures without importing the
// sandbox package directly.
var ErrUnsupportedLanguage = sandbox.ErrUnsupportedLanguage

// Evaluator scores one submission. Implemented by EvaluationService;
// submissions enqueue it as a background task right after persisting.
type Evaluator interface {
	EvaluateSubmission(ctx context.Context, submissionID uint) error
}

// SubmissionService accepts candidate artifacts for session items.
type SubmissionService interface {
	Submit(ctx context.Context, sessionID uint, req dto.SubmitRequest) (dto.SubmitResponse, error)
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(
	sessions repository.SessionRepository,
	submissions repository.SubmissionRepository,
	executor sandbox.Executor,
	dispatcher *tasks.Dispatcher,
	evaluator Evaluator,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		sessions:    sessions,
		submissions: submissions,
		executor:    executor,
		dispatcher:  dispatcher,
		evaluator:   evaluator,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

type submissionService struct {
	sessions    repository.SessionRepository
	submissions repository.SubmissionRepository
	executor    sandbox.Executor
	dispatcher  *tasks.Dispatcher
	evaluator   Evaluator
	logger      zerolog.Logger
	now         func() time.Time
}

// Submit stores one artifact for an item of a started session. Coding
// submissions are executed in the sandbox synchronously so the candidate sees
// test results immediately; AI scoring always runs in the background.
func (s *submissionService) Submit(ctx context.Context, sessionID uint, req dto.SubmitRequest) (dto.SubmitResponse, error) {
	session, err := resolveLiveSession(ctx, s.sessions, sessionID, s.now(), s.logger)
	if err != nil {
		return dto.SubmitResponse{}, err
	}
	if session.Status == models.SessionStatusExpired {
		return dto.SubmitResponse{}, ErrSessionExpired
	}
	if session.Status != models.SessionStatusStarted {
		return dto.SubmitResponse{}, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, session.Status)
	}

	var item *models.SessionItem
	for i := range session.Items {
		if session.Items[i].ID == req.ItemID {
			item = &session.Items[i]
			break
		}
	}
	if item == nil {
		return dto.SubmitResponse{}, ErrItemNotFound
	}

	submission := models.Submission{
		SessionID:        sessionID,
		ItemID:           item.ID,
		ProcessingStatus: models.SubmissionStatusPending,
	}

	switch item.Kind {
	case models.SessionKindCodingTest:
		if req.Language == "" {
			return dto.SubmitResponse{}, ErrMissingLanguage
		}
		submission.Language = req.Language
		submission.Code = req.Content

		execResult, err := s.execute(ctx, *item, req)
		if err != nil {
			return dto.SubmitResponse{}, err
		}
		submission.ExecutionResult = execResult
	case models.SessionKindInterview:
		submission.AudioURL = req.Content
	default:
		return dto.SubmitResponse{}, fmt.Errorf("%w: %s", ErrInvalidSessionKind, item.Kind)
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmitResponse{}, fmt.Errorf("create submission: %w", err)
	}

	s.enqueueEvaluation(submission.ID)

	s.logger.Info().
		Uint("session_id", sessionID).
		Uint("item_id", item.ID).
		Uint("submission_id", submission.ID).
		Str("kind", item.Kind).
		Msg("submission accepted")
	return dto.SubmitResponse{
		SubmissionID:    submission.ID,
		ExecutionResult: map[string]interface{}(submission.ExecutionResult),
	}, nil
}

// execute runs the code against the item's test cases. Timeouts and backend
// outages are recorded in the result rather than failing the submission; the
// AI reviewer still gets to judge the code itself.
func (s *submissionService) execute(ctx context.Context, item models.SessionItem, req dto.SubmitRequest) (datatypes.JSONMap, error) {
	var testCases []sandbox.TestCase
	if len(item.TestCases) > 0 {
		if err := json.Unmarshal(item.TestCases, &testCases); err != nil {
			return nil, fmt.Errorf("decode test cases: %w", err)
		}
	}

	result, err := s.executor.Execute(ctx, sandbox.Request{
		Code:     req.Content,
		Language: req.Language,
		Tests:    testCases,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrUnsupportedLanguage) {
			return nil, err
		}
		s.logger.Error().Err(err).Uint("item_id", item.ID).Msg("sandbox execution failed")
		execMap := resultToMap(result)
		execMap["error"] = err.Error()
		return execMap, nil
	}

	return resultToMap(result), nil
}

func (s *submissionService) enqueueEvaluation(submissionID uint) {
	err := s.dispatcher.Enqueue(tasks.Task{
		Name: "evaluate_submission",
		Run: func(ctx context.Context) error {
			return s.evaluator.EvaluateSubmission(ctx, submissionID)
		},
	})
	if err != nil {
		// Dropped tasks never run, so record a terminal state the reviewer
		// can see instead of an eternal "processing".
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("evaluation task dropped")
		if markErr := s.submissions.MarkFailed(context.Background(), submissionID, "evaluation task dropped: queue full"); markErr != nil {
			s.logger.Error().Err(markErr).Uint("submission_id", submissionID).Msg("failed to record dropped evaluation")
		}
	}
}

func resultToMap(result sandbox.Result) datatypes.JSONMap {
	payload, err := json.Marshal(result)
	if err != nil {
		return datatypes.JSONMap{}
	}
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return datatypes.JSONMap{}
	}
	return out
}
