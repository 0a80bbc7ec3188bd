package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/config"
	"github.com/hireloop/assess-api/internal/dto"
	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
	"github.com/hireloop/assess-api/internal/tasks"
)

// Reply shown to the candidate while the summarizer has not run yet.
const summaryInProgressMessage = "Final evaluation in progress."

// Anti-cheat event types accepted by RecordEvent, mapped onto their session
// counter column. Older clients report focus loss as "window_focus_change";
// both names land on the same counter.
var eventCounterColumns = map[string]string{
	"focus_change":        "focus_changes",
	"window_focus_change": "focus_changes",
	"paste":               "paste_count",
	"copy":                "copy_count",
}

// Summarizer produces the session-level summary. Implemented by
// SummaryService; sessions enqueue it as a background task on end.
type Summarizer interface {
	SummarizeSession(ctx context.Context, sessionID uint) error
}

// SessionService drives the assessment session lifecycle.
type SessionService interface {
	Create(ctx context.Context, req dto.CreateSessionRequest) (dto.SessionResponse, error)
	Start(ctx context.Context, id uint) (dto.StartSessionResponse, error)
	RecordEvent(ctx context.Context, id uint, eventType string) (dto.SessionResponse, error)
	End(ctx context.Context, id uint) (dto.EndSessionResponse, error)
	GetEvaluation(ctx context.Context, id uint) (dto.SessionEvaluationResponse, error)
}

// NewSessionService constructs the session service. The redis client is
// optional; without it evaluation reads simply skip the cache.
func NewSessionService(
	cfg config.Config,
	sessions repository.SessionRepository,
	candidates repository.CandidateRepository,
	positions repository.PositionRepository,
	challenges repository.ChallengeRepository,
	dispatcher *tasks.Dispatcher,
	summarizer Summarizer,
	cache *redis.Client,
	logger zerolog.Logger,
) SessionService {
	return &sessionService{
		cfg:        cfg,
		sessions:   sessions,
		candidates: candidates,
		positions:  positions,
		challenges: challenges,
		dispatcher: dispatcher,
		summarizer: summarizer,
		cache:      cache,
		logger:     logger.With().Str("component", "session_service").Logger(),
		now:        time.Now,
	}
}

type sessionService struct {
	cfg        config.Config
	sessions   repository.SessionRepository
	candidates repository.CandidateRepository
	positions  repository.PositionRepository
	challenges repository.ChallengeRepository
	dispatcher *tasks.Dispatcher
	summarizer Summarizer
	cache      *redis.Client
	logger     zerolog.Logger
	now        func() time.Time
}

func (s *sessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (dto.SessionResponse, error) {
	if req.Kind != models.SessionKindCodingTest && req.Kind != models.SessionKindInterview {
		return dto.SessionResponse{}, fmt.Errorf("%w: %s", ErrInvalidSessionKind, req.Kind)
	}

	exists, err := s.candidates.Exists(ctx, req.CandidateID)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("check candidate: %w", err)
	}
	if !exists {
		return dto.SessionResponse{}, ErrCandidateNotFound
	}

	exists, err = s.positions.Exists(ctx, req.PositionID)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("check position: %w", err)
	}
	if !exists {
		return dto.SessionResponse{}, ErrPositionNotFound
	}

	session := models.AssessmentSession{
		Kind:          req.Kind,
		CandidateID:   req.CandidateID,
		PositionID:    req.PositionID,
		Status:        models.SessionStatusScheduled,
		SummaryStatus: models.SummaryStatusNone,
		ExpiresAt:     s.now().Add(s.cfg.InviteLinkTTL),
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info().
		Uint("session_id", session.ID).
		Str("kind", session.Kind).
		Uint("candidate_id", session.CandidateID).
		Msg("session scheduled")
	return dto.NewSessionResponse(session), nil
}

// Start moves a scheduled session to started and freezes its item sequence,
// copied from the position's challenge bank so later bank edits cannot change
// a running session.
func (s *sessionService) Start(ctx context.Context, id uint) (dto.StartSessionResponse, error) {
	session, err := s.loadLive(ctx, id)
	if err != nil {
		return dto.StartSessionResponse{}, err
	}
	if session.Status == models.SessionStatusExpired {
		return dto.StartSessionResponse{}, ErrSessionExpired
	}
	if session.Status != models.SessionStatusScheduled {
		return dto.StartSessionResponse{}, fmt.Errorf("%w: cannot start a %s session", ErrInvalidSessionState, session.Status)
	}

	bank, err := s.challenges.ListForPosition(ctx, session.PositionID, session.Kind, s.cfg.ItemsPerSession)
	if err != nil {
		return dto.StartSessionResponse{}, fmt.Errorf("list challenges: %w", err)
	}
	if len(bank) == 0 {
		return dto.StartSessionResponse{}, ErrNoItemsAvailable
	}

	items := make([]models.SessionItem, 0, len(bank))
	for i, challenge := range bank {
		items = append(items, models.SessionItem{
			ChallengeID:       challenge.ID,
			Position:          i + 1,
			Kind:              challenge.Kind,
			Title:             challenge.Title,
			Statement:         challenge.Statement,
			TestCases:         challenge.TestCases,
			IdealAnswerPoints: challenge.IdealAnswerPoints,
		})
	}

	startedAt := s.now()
	started, err := s.sessions.Start(ctx, id, startedAt, startedAt.Add(s.cfg.SessionDuration), items)
	if err != nil {
		return dto.StartSessionResponse{}, fmt.Errorf("start session: %w", err)
	}
	if !started {
		// Lost the race against a concurrent start or expiry.
		return dto.StartSessionResponse{}, ErrInvalidSessionState
	}

	session, err = s.sessions.GetByID(ctx, id)
	if err != nil {
		return dto.StartSessionResponse{}, fmt.Errorf("reload session: %w", err)
	}

	resp := dto.StartSessionResponse{Session: dto.NewSessionResponse(session)}
	for _, item := range session.Items {
		resp.Items = append(resp.Items, dto.NewSessionItemResponse(item))
	}

	s.logger.Info().
		Uint("session_id", session.ID).
		Int("items", len(resp.Items)).
		Time("expires_at", session.ExpiresAt).
		Msg("session started")
	return resp, nil
}

// RecordEvent increments the counter for one anti-cheat event. The increment
// happens in SQL, so concurrent events from the same client all land.
func (s *sessionService) RecordEvent(ctx context.Context, id uint, eventType string) (dto.SessionResponse, error) {
	column, ok := eventCounterColumns[eventType]
	if !ok {
		return dto.SessionResponse{}, fmt.Errorf("%w: %s", ErrInvalidEventType, eventType)
	}

	session, err := s.loadLive(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if session.Status == models.SessionStatusExpired {
		return dto.SessionResponse{}, ErrSessionExpired
	}
	if session.Status != models.SessionStatusStarted {
		return dto.SessionResponse{}, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, session.Status)
	}

	incremented, err := s.sessions.IncrementCounter(ctx, id, column)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("increment %s: %w", column, err)
	}
	if !incremented {
		return dto.SessionResponse{}, ErrInvalidSessionState
	}

	session, err = s.sessions.GetByID(ctx, id)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("reload session: %w", err)
	}
	return dto.NewSessionResponse(session), nil
}

// End completes a started session and schedules the summarizer. Ending an
// already completed session is a no-op that reports the current state.
func (s *sessionService) End(ctx context.Context, id uint) (dto.EndSessionResponse, error) {
	session, err := s.loadLive(ctx, id)
	if err != nil {
		return dto.EndSessionResponse{}, err
	}

	switch session.Status {
	case models.SessionStatusExpired:
		return dto.EndSessionResponse{}, ErrSessionExpired
	case models.SessionStatusScheduled:
		return dto.EndSessionResponse{}, fmt.Errorf("%w: session was never started", ErrInvalidSessionState)
	case models.SessionStatusCompleted:
		resp := dto.EndSessionResponse{SessionID: id, Status: session.Status, FinalSummary: summaryInProgressMessage}
		if session.HasSummary() {
			resp.FinalSummary = *session.FinalSummary
		} else if session.SummaryStatus == models.SummaryStatusPending {
			// A previous summary run may have been dropped; re-ending the
			// session is the recovery path. Duplicate runs are harmless, the
			// summary write itself is guarded.
			s.enqueueSummary(id)
		}
		return resp, nil
	}

	completed, err := s.sessions.Complete(ctx, id, s.now())
	if err != nil {
		return dto.EndSessionResponse{}, fmt.Errorf("complete session: %w", err)
	}
	if completed {
		s.enqueueSummary(id)
	}

	s.logger.Info().Uint("session_id", id).Msg("session ended")
	return dto.EndSessionResponse{
		SessionID:    id,
		Status:       models.SessionStatusCompleted,
		FinalSummary: summaryInProgressMessage,
	}, nil
}

func (s *sessionService) enqueueSummary(sessionID uint) {
	err := s.dispatcher.Enqueue(tasks.Task{
		Name: "summarize_session",
		Run: func(ctx context.Context) error {
			return s.summarizer.SummarizeSession(ctx, sessionID)
		},
	})
	if err != nil {
		// The summary never runs once dropped, so surface a terminal state
		// instead of leaving the session pending forever.
		s.logger.Error().Err(err).Uint("session_id", sessionID).Msg("summary task dropped")
		if markErr := s.sessions.MarkSummaryFailed(context.Background(), sessionID, "summary task dropped: queue full"); markErr != nil {
			s.logger.Error().Err(markErr).Uint("session_id", sessionID).Msg("failed to record dropped summary")
		}
	}
}

// GetEvaluation assembles the reviewer-facing view: per-item submission and
// evaluation state plus the session summary once the summarizer has written
// it. Fully settled responses are cached.
func (s *sessionService) GetEvaluation(ctx context.Context, id uint) (dto.SessionEvaluationResponse, error) {
	cacheKey := evaluationCacheKey(id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.SessionEvaluationResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				return resp, nil
			}
		}
	}

	if _, err := s.loadLive(ctx, id); err != nil {
		return dto.SessionEvaluationResponse{}, err
	}

	session, err := s.sessions.GetDetailed(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionEvaluationResponse{}, ErrSessionNotFound
		}
		return dto.SessionEvaluationResponse{}, fmt.Errorf("load session: %w", err)
	}

	resp := dto.SessionEvaluationResponse{
		SessionID:      session.ID,
		Status:         session.Status,
		SummaryStatus:  session.SummaryStatus,
		OverallScore:   session.OverallScore,
		FinalSummary:   summaryInProgressMessage,
		SummaryDetails: map[string]interface{}(session.SummaryDetails),
		FocusChanges:   session.FocusChanges,
		PasteCount:     session.PasteCount,
		CopyCount:      session.CopyCount,
	}
	if session.HasSummary() {
		resp.FinalSummary = *session.FinalSummary
	}

	settled := true
	for _, item := range session.Items {
		entry := dto.ItemEvaluationResponse{
			ItemID:   item.ID,
			Position: item.Position,
			Title:    item.Title,
			Status:   dto.ItemEvaluationNotSubmitted,
		}

		if len(item.Submissions) > 0 {
			latest := item.Submissions[len(item.Submissions)-1]
			sub := dto.NewSubmissionResponse(latest)
			entry.Submission = &sub

			switch latest.ProcessingStatus {
			case models.SubmissionStatusEvaluated:
				entry.Status = dto.ItemEvaluationComplete
				if latest.Evaluation != nil {
					entry.Evaluation = newEvaluationResponse(*latest.Evaluation)
				}
			case models.SubmissionStatusFailed:
				entry.Status = dto.ItemEvaluationFailed
			default:
				entry.Status = dto.ItemEvaluationProcessing
				settled = false
			}
		}
		resp.Items = append(resp.Items, entry)
	}

	if s.cache != nil && settled && session.SummaryStatus == models.SummaryStatusCompleted {
		if payload, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.EvaluationCacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("session_id", id).Msg("failed to cache evaluation")
			}
		}
	}

	return resp, nil
}

func (s *sessionService) loadLive(ctx context.Context, id uint) (models.AssessmentSession, error) {
	return resolveLiveSession(ctx, s.sessions, id, s.now(), s.logger)
}

// resolveLiveSession fetches a session and applies lazy expiry: a live session
// whose deadline has passed is flipped to expired before any state check runs.
func resolveLiveSession(ctx context.Context, sessions repository.SessionRepository, id uint, now time.Time, logger zerolog.Logger) (models.AssessmentSession, error) {
	session, err := sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssessmentSession{}, ErrSessionNotFound
		}
		return models.AssessmentSession{}, fmt.Errorf("load session: %w", err)
	}

	if session.ExpiredBy(now) {
		if _, err := sessions.Expire(ctx, id, session.Status); err != nil {
			return models.AssessmentSession{}, fmt.Errorf("expire session: %w", err)
		}
		session.Status = models.SessionStatusExpired
		logger.Info().Uint("session_id", id).Msg("session expired")
	}

	return session, nil
}

func newEvaluationResponse(evaluation models.Evaluation) *dto.EvaluationResponse {
	resp := &dto.EvaluationResponse{
		ID:               evaluation.ID,
		SubmissionID:     evaluation.SubmissionID,
		CorrectnessScore: evaluation.CorrectnessScore,
		EfficiencyScore:  evaluation.EfficiencyScore,
		StyleScore:       evaluation.StyleScore,
		ReadabilityScore: evaluation.ReadabilityScore,
		PlagiarismScore:  evaluation.PlagiarismScore,
		RelevanceScore:   evaluation.RelevanceScore,
		ClarityScore:     evaluation.ClarityScore,
		SentimentScore:   evaluation.SentimentScore,
		ConfidenceScore:  evaluation.ConfidenceScore,
		Feedback:         evaluation.Feedback,
		Provider:         evaluation.Provider,
	}
	if len(evaluation.KeywordMatches) > 0 {
		_ = json.Unmarshal(evaluation.KeywordMatches, &resp.KeywordMatches)
	}
	return resp
}

func evaluationCacheKey(sessionID uint) string {
	return fmt.Sprintf("assess:session:%d:evaluation", sessionID)
}
