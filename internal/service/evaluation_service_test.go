package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/pkg/ai"
)

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func newEvaluationFixture(t *testing.T, item models.SessionItem, submission models.Submission, generator *stubGenerator, transcriber *stubTranscriber) (EvaluationService, *fakeSessionRepo, *fakeSubmissionRepo, uint) {
	t.Helper()
	sessions := newFakeSessionRepo()
	itemClone := item
	sessions.items[item.ID] = &itemClone

	subs := newFakeSubmissionRepo()
	require.NoError(t, subs.Create(context.Background(), &submission))

	svc := NewEvaluationService(sessions, subs, generator, transcriber, "openai", nil, zerolog.Nop())
	return svc, sessions, subs, submission.ID
}

func TestEvaluationServiceScoresCodingSubmission(t *testing.T) {
	generator := &stubGenerator{reply: `Here is my assessment:
{"correctness_score": 90, "efficiency_score": 75, "style_score": null, "readability_score": 80, "plagiarism_score": 5, "ai_feedback": "Clean and correct solution."}
Let me know if you need more detail.`}

	item := models.SessionItem{ID: 1, SessionID: 1, Kind: models.SessionKindCodingTest, Title: "Sum", Statement: "add"}
	submission := models.Submission{
		SessionID: 1, ItemID: 1, Language: "python", Code: "print(3)",
		ExecutionResult: datatypes.JSONMap{"passed_tests": float64(3), "total_tests": float64(3)},
	}
	svc, _, subs, subID := newEvaluationFixture(t, item, submission, generator, &stubTranscriber{})

	require.NoError(t, svc.EvaluateSubmission(context.Background(), subID))

	stored, err := subs.GetByID(context.Background(), subID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusEvaluated, stored.ProcessingStatus)
	require.NotNil(t, stored.Evaluation)
	require.NotNil(t, stored.Evaluation.CorrectnessScore)
	require.InDelta(t, 90, *stored.Evaluation.CorrectnessScore, 0.001)
	require.Nil(t, stored.Evaluation.StyleScore, "null sub-scores stay null")
	require.Equal(t, "Clean and correct solution.", stored.Evaluation.Feedback)
	require.Equal(t, "openai", stored.Evaluation.Provider)

	require.Len(t, generator.prompts, 1)
	require.Contains(t, generator.prompts[0], "passed 3 of 3 test cases")
}

func TestEvaluationServiceScoresInterviewSubmission(t *testing.T) {
	generator := &stubGenerator{reply: `{"relevance_score": 85, "clarity_score": 70, "sentiment_score": 0.4, "confidence_score": 65, "keyword_matches": ["mentions caching"], "ai_feedback": "Covers the essentials."}`}
	transcriber := &stubTranscriber{text: "I would add caching and read replicas."}

	item := models.SessionItem{ID: 2, SessionID: 1, Kind: models.SessionKindInterview, Title: "Scaling", Statement: "talk",
		IdealAnswerPoints: datatypes.JSON(`["mentions caching"]`)}
	submission := models.Submission{SessionID: 1, ItemID: 2, AudioURL: "https://cdn.example.com/a.webm"}
	svc, _, subs, subID := newEvaluationFixture(t, item, submission, generator, transcriber)

	require.NoError(t, svc.EvaluateSubmission(context.Background(), subID))

	stored, err := subs.GetByID(context.Background(), subID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusEvaluated, stored.ProcessingStatus)
	require.Equal(t, "I would add caching and read replicas.", stored.Transcript)
	require.NotNil(t, stored.Evaluation.SentimentScore)
	require.InDelta(t, 0.4, *stored.Evaluation.SentimentScore, 0.001)
	require.JSONEq(t, `["mentions caching"]`, string(stored.Evaluation.KeywordMatches))

	require.Contains(t, generator.prompts[0], "I would add caching")
}

func TestEvaluationServiceMarksUnparseableReplyFailed(t *testing.T) {
	generator := &stubGenerator{reply: "I cannot assess this submission."}

	item := models.SessionItem{ID: 1, SessionID: 1, Kind: models.SessionKindCodingTest, Title: "Sum", Statement: "add"}
	submission := models.Submission{SessionID: 1, ItemID: 1, Language: "python", Code: "print(3)"}
	svc, _, subs, subID := newEvaluationFixture(t, item, submission, generator, &stubTranscriber{})

	err := svc.EvaluateSubmission(context.Background(), subID)
	require.Error(t, err)

	stored, getErr := subs.GetByID(context.Background(), subID)
	require.NoError(t, getErr)
	require.Equal(t, models.SubmissionStatusFailed, stored.ProcessingStatus)
	require.Contains(t, stored.ProcessingError, "unparseable model reply")
	require.Nil(t, stored.Evaluation)
}

func TestEvaluationServiceRejectsReplyMissingFeedback(t *testing.T) {
	generator := &stubGenerator{reply: `{"correctness_score": 90}`}

	item := models.SessionItem{ID: 1, SessionID: 1, Kind: models.SessionKindCodingTest, Title: "Sum", Statement: "add"}
	submission := models.Submission{SessionID: 1, ItemID: 1, Language: "python", Code: "print(3)"}
	svc, _, subs, subID := newEvaluationFixture(t, item, submission, generator, &stubTranscriber{})

	err := svc.EvaluateSubmission(context.Background(), subID)
	require.Error(t, err)

	stored, getErr := subs.GetByID(context.Background(), subID)
	require.NoError(t, getErr)
	require.Equal(t, models.SubmissionStatusFailed, stored.ProcessingStatus)
	require.Contains(t, stored.ProcessingError, "validation")
}

func TestEvaluationServiceMarksTranscriptionFailure(t *testing.T) {
	transcriber := &stubTranscriber{err: ai.ErrModelUnavailable}

	item := models.SessionItem{ID: 2, SessionID: 1, Kind: models.SessionKindInterview, Title: "Scaling", Statement: "talk"}
	submission := models.Submission{SessionID: 1, ItemID: 2, AudioURL: "https://cdn.example.com/a.webm"}
	svc, _, subs, subID := newEvaluationFixture(t, item, submission, &stubGenerator{}, transcriber)

	err := svc.EvaluateSubmission(context.Background(), subID)
	require.Error(t, err)

	stored, getErr := subs.GetByID(context.Background(), subID)
	require.NoError(t, getErr)
	require.Equal(t, models.SubmissionStatusFailed, stored.ProcessingStatus)
	require.Contains(t, stored.ProcessingError, "transcription failed")
}

func TestEvaluationServiceSkipsAlreadyEvaluatedSubmission(t *testing.T) {
	generator := &stubGenerator{reply: `{"correctness_score": 90, "ai_feedback": "fine"}`}

	item := models.SessionItem{ID: 1, SessionID: 1, Kind: models.SessionKindCodingTest, Title: "Sum", Statement: "add"}
	submission := models.Submission{SessionID: 1, ItemID: 1, Language: "python", Code: "print(3)",
		ProcessingStatus: models.SubmissionStatusEvaluated}
	svc, _, _, subID := newEvaluationFixture(t, item, submission, generator, &stubTranscriber{})

	require.NoError(t, svc.EvaluateSubmission(context.Background(), subID))
	require.Empty(t, generator.prompts, "evaluated submissions are never re-scored")
}
