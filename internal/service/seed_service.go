package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/hireloop/assess-api/internal/models"
	"github.com/hireloop/assess-api/internal/repository"
)

// SeedResult reports the identifiers of the demo records.
type SeedResult struct {
	CandidateID  uint   `json:"candidate_id"`
	PositionID   uint   `json:"position_id"`
	ChallengeIDs []uint `json:"challenge_ids"`
}

// SeedService creates a demo candidate, position and challenge bank so a
// development environment can exercise the full session flow. Only mounted in
// development.
type SeedService interface {
	Seed(ctx context.Context) (SeedResult, error)
}

// NewSeedService constructs the seeder.
func NewSeedService(
	candidates repository.CandidateRepository,
	positions repository.PositionRepository,
	challenges repository.ChallengeRepository,
	logger zerolog.Logger,
) SeedService {
	return &seedService{
		candidates: candidates,
		positions:  positions,
		challenges: challenges,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

type seedService struct {
	candidates repository.CandidateRepository
	positions  repository.PositionRepository
	challenges repository.ChallengeRepository
	logger     zerolog.Logger
}

func (s *seedService) Seed(ctx context.Context) (SeedResult, error) {
	candidate := models.Candidate{
		FullName: "Dewi Lestari",
		Email:    "dewi.lestari@example.com",
	}
	if err := s.candidates.Create(ctx, &candidate); err != nil {
		return SeedResult{}, fmt.Errorf("seed candidate: %w", err)
	}

	position := models.JobPosition{
		Title:     "Backend Engineer",
		Seniority: "mid",
	}
	if err := s.positions.Create(ctx, &position); err != nil {
		return SeedResult{}, fmt.Errorf("seed position: %w", err)
	}

	bank := []models.Challenge{
		{
			PositionID: position.ID,
			Kind:       models.SessionKindCodingTest,
			Title:      "Sum of Two Numbers",
			Statement:  "Read two integers from standard input, one per line, and print their sum.",
			Difficulty: models.ChallengeDifficultyEasy,
			TestCases:  datatypes.JSON(`[{"input":"2\n3\n","expected_output":"5","is_hidden":false},{"input":"10\n-4\n","expected_output":"6","is_hidden":true}]`),
		},
		{
			PositionID: position.ID,
			Kind:       models.SessionKindCodingTest,
			Title:      "Reverse Words",
			Statement:  "Read a line of text and print its words in reverse order.",
			Difficulty: models.ChallengeDifficultyMedium,
			TestCases:  datatypes.JSON(`[{"input":"hello world\n","expected_output":"world hello","is_hidden":false}]`),
		},
		{
			PositionID:        position.ID,
			Kind:              models.SessionKindInterview,
			Title:             "Scaling a Read-Heavy API",
			Statement:         "Walk us through how you would scale an API whose read traffic grew tenfold.",
			Difficulty:        models.ChallengeDifficultyMedium,
			IdealAnswerPoints: datatypes.JSON(`["mentions caching","considers read replicas","names a concrete metric to watch"]`),
		},
		{
			PositionID:        position.ID,
			Kind:              models.SessionKindInterview,
			Title:             "Debugging a Production Incident",
			Statement:         "Describe a production incident you debugged and what you changed afterwards.",
			Difficulty:        models.ChallengeDifficultyEasy,
			IdealAnswerPoints: datatypes.JSON(`["describes a systematic approach","mentions a follow-up fix or safeguard"]`),
		},
	}

	result := SeedResult{CandidateID: candidate.ID, PositionID: position.ID}
	for i := range bank {
		if err := s.challenges.Create(ctx, &bank[i]); err != nil {
			return SeedResult{}, fmt.Errorf("seed challenge: %w", err)
		}
		result.ChallengeIDs = append(result.ChallengeIDs, bank[i].ID)
	}

	s.logger.Info().
		Uint("candidate_id", candidate.ID).
		Uint("position_id", position.ID).
		Int("challenges", len(result.ChallengeIDs)).
		Msg("demo data seeded")
	return result, nil
}
