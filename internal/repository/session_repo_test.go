package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
)

func setupSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Candidate{},
		&models.JobPosition{},
		&models.Challenge{},
		&models.AssessmentSession{},
		&models.SessionItem{},
		&models.Submission{},
		&models.Evaluation{},
	))
	return db
}

func seedScheduledSession(t *testing.T, db *gorm.DB) models.AssessmentSession {
	t.Helper()
	session := models.AssessmentSession{
		Kind:          models.SessionKindCodingTest,
		CandidateID:   1,
		PositionID:    1,
		Status:        models.SessionStatusScheduled,
		SummaryStatus: models.SummaryStatusNone,
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&session).Error)
	return session
}

func TestSessionRepositoryStartTransitionsExactlyOnce(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	items := []models.SessionItem{
		{ChallengeID: 1, Position: 1, Kind: models.SessionKindCodingTest, Title: "A", Statement: "do a"},
		{ChallengeID: 2, Position: 2, Kind: models.SessionKindCodingTest, Title: "B", Statement: "do b"},
	}

	now := time.Now()
	started, err := repo.Start(context.Background(), session.ID, now, now.Add(time.Hour), items)
	require.NoError(t, err)
	require.True(t, started)

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusStarted, stored.Status)
	require.Len(t, stored.Items, 2)
	require.Equal(t, "A", stored.Items[0].Title)

	again, err := repo.Start(context.Background(), session.ID, now, now.Add(time.Hour), []models.SessionItem{
		{ChallengeID: 3, Position: 1, Kind: models.SessionKindCodingTest, Title: "C", Statement: "do c"},
	})
	require.NoError(t, err)
	require.False(t, again, "second start must lose the guard")

	stored, err = repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2, "losing start must not attach items")
}

func TestSessionRepositoryGetDetailedPreloadsSubmissionTree(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	now := time.Now()
	started, err := repo.Start(context.Background(), session.ID, now, now.Add(time.Hour), []models.SessionItem{
		{ChallengeID: 1, Position: 1, Kind: models.SessionKindCodingTest, Title: "Sum", Statement: "add"},
		{ChallengeID: 2, Position: 2, Kind: models.SessionKindCodingTest, Title: "Reverse", Statement: "reverse"},
	})
	require.NoError(t, err)
	require.True(t, started)

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)

	submission := models.Submission{SessionID: session.ID, ItemID: stored.Items[0].ID, Language: "python", Code: "print(3)"}
	require.NoError(t, db.Create(&submission).Error)
	score := 90.0
	require.NoError(t, db.Create(&models.Evaluation{SubmissionID: submission.ID, CorrectnessScore: &score, Feedback: "good"}).Error)

	detailed, err := repo.GetDetailed(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, detailed.Items, 2)
	require.Len(t, detailed.Items[0].Submissions, 1)
	require.NotNil(t, detailed.Items[0].Submissions[0].Evaluation)
	require.Equal(t, "good", detailed.Items[0].Submissions[0].Evaluation.Feedback)
	require.Empty(t, detailed.Items[1].Submissions)
}

func TestSessionRepositoryIncrementCounterRequiresStartedSession(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	incremented, err := repo.IncrementCounter(context.Background(), session.ID, "paste_count")
	require.NoError(t, err)
	require.False(t, incremented, "scheduled session must not accept events")

	require.NoError(t, db.Model(&models.AssessmentSession{}).Where("id = ?", session.ID).
		Update("status", models.SessionStatusStarted).Error)

	for i := 0; i < 3; i++ {
		incremented, err = repo.IncrementCounter(context.Background(), session.ID, "paste_count")
		require.NoError(t, err)
		require.True(t, incremented)
	}

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.PasteCount)
	require.Equal(t, 0, stored.FocusChanges)

	_, err = repo.IncrementCounter(context.Background(), session.ID, "status")
	require.Error(t, err, "non-counter columns must be rejected")
}

func TestSessionRepositoryCompleteGuardsOnStarted(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	completed, err := repo.Complete(context.Background(), session.ID, time.Now())
	require.NoError(t, err)
	require.False(t, completed, "scheduled session cannot complete")

	require.NoError(t, db.Model(&models.AssessmentSession{}).Where("id = ?", session.ID).
		Update("status", models.SessionStatusStarted).Error)

	completed, err = repo.Complete(context.Background(), session.ID, time.Now())
	require.NoError(t, err)
	require.True(t, completed)

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, stored.Status)
	require.Equal(t, models.SummaryStatusPending, stored.SummaryStatus)
	require.NotNil(t, stored.EndedAt)

	completed, err = repo.Complete(context.Background(), session.ID, time.Now())
	require.NoError(t, err)
	require.False(t, completed, "complete is not re-entrant")
}

func TestSessionRepositorySetSummaryWritesExactlyOnce(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	wrote, err := repo.SetSummary(context.Background(), session.ID, 82.5, "solid candidate", datatypes.JSONMap{"evaluated_items": 2})
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = repo.SetSummary(context.Background(), session.ID, 10, "should not land", nil)
	require.NoError(t, err)
	require.False(t, wrote, "second summary write must be rejected")

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FinalSummary)
	require.Equal(t, "solid candidate", *stored.FinalSummary)
	require.NotNil(t, stored.OverallScore)
	require.InDelta(t, 82.5, *stored.OverallScore, 0.001)
	require.Equal(t, models.SummaryStatusCompleted, stored.SummaryStatus)
}

func TestSessionRepositoryMarkSummaryFailedSkipsWrittenSummary(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	require.NoError(t, repo.MarkSummaryFailed(context.Background(), session.ID, "model request failed"))

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SummaryStatusFailed, stored.SummaryStatus)
	require.Equal(t, "model request failed", stored.SummaryError)

	wrote, err := repo.SetSummary(context.Background(), session.ID, 70, "late success", nil)
	require.NoError(t, err)
	require.True(t, wrote, "failure does not block a later successful write")

	require.NoError(t, repo.MarkSummaryFailed(context.Background(), session.ID, "late failure"))
	stored, err = repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SummaryStatusCompleted, stored.SummaryStatus, "a written summary is immutable")
}

func TestSessionRepositoryExpireGuardsOnPriorStatus(t *testing.T) {
	db := setupSessionTestDB(t)
	repo := NewSessionRepository(db)
	session := seedScheduledSession(t, db)

	expired, err := repo.Expire(context.Background(), session.ID, models.SessionStatusStarted)
	require.NoError(t, err)
	require.False(t, expired, "status guard must match")

	expired, err = repo.Expire(context.Background(), session.ID, models.SessionStatusScheduled)
	require.NoError(t, err)
	require.True(t, expired)

	stored, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusExpired, stored.Status)
}
