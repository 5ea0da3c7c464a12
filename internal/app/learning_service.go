package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"quantum-dashboard/internal/ai"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

var (
	ErrScoreNotFound   = errors.New("score not found")
	ErrHintUnavailable = errors.New("hint assistant is not configured")
	ErrHintFailed      = errors.New("hint generation failed")
)

// LearningGames lists the games scores can be submitted for.
var LearningGames = []string{"circuit-builder", "gate-quiz", "bloch-sphere", "entanglement-puzzle"}

const (
	leaderboardSize      = 20
	maxScorePoints       = 1000000
	maxScoreLevel        = 100
	hintQuestionMaxRunes = 1000
)

const tutorPrompt = "You are a patient quantum computing tutor inside a learning game. " +
	"Give one short hint that moves the learner forward without revealing the full answer. " +
	"Prefer gate names and circuit intuition over formulas."

type HintClient interface {
	Configured() bool
	Complete(ctx context.Context, messages []ai.ChatMessage, maxTokens int) (string, error)
}

type LearningService struct {
	scores *repository.ScoreRepository
	llm    HintClient
}

type ScoreInput struct {
	UserID uint
	Game   string
	Points int
	Level  int
}

type HintInput struct {
	Game     string
	Level    int
	Question string
}

func NewLearningService(scores *repository.ScoreRepository, llm HintClient) *LearningService {
	return &LearningService{scores: scores, llm: llm}
}

func (s *LearningService) SubmitScore(actor Actor, input ScoreInput) (*model.Score, error) {
	input.UserID = actor.UserID
	return s.createScore(input)
}

func (s *LearningService) Leaderboard(game string) ([]model.LeaderboardEntry, error) {
	game = strings.TrimSpace(game)
	if err := validation.Validate(game, validation.Required, validation.In(gameChoices()...)); err != nil {
		return nil, fmt.Errorf("%w: game: %v", ErrInvalidInput, err)
	}
	return s.scores.Leaderboard(game, leaderboardSize)
}

func (s *LearningService) Hint(ctx context.Context, input HintInput) (string, error) {
	input.Game = strings.TrimSpace(input.Game)
	input.Question = strings.TrimSpace(input.Question)
	if err := validation.ValidateStruct(&input,
		validation.Field(&input.Game, validation.Required, validation.In(gameChoices()...)),
		validation.Field(&input.Question, validation.Required, validation.RuneLength(1, hintQuestionMaxRunes)),
	); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.llm == nil || !s.llm.Configured() {
		return "", ErrHintUnavailable
	}

	hint, err := s.llm.Complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: tutorPrompt},
		{Role: "user", Content: fmt.Sprintf("Game: %s (level %d)\nQuestion: %s", input.Game, input.Level, input.Question)},
	}, 200)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHintFailed, err)
	}
	return hint, nil
}

// Admin score management.

func (s *LearningService) ListScores(game string, page repository.Page) ([]model.Score, int64, error) {
	return s.scores.List(strings.TrimSpace(game), page)
}

func (s *LearningService) CreateScore(input ScoreInput) (*model.Score, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.createScore(input)
}

func (s *LearningService) UpdateScore(id uint, points, level *int) (*model.Score, error) {
	score, err := s.scores.GetByID(id)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, ErrScoreNotFound
	}
	if points != nil {
		score.Points = *points
	}
	if level != nil {
		score.Level = *level
	}
	if err := validateScore(score.Game, score.Points, score.Level); err != nil {
		return nil, err
	}
	if err := s.scores.Save(score); err != nil {
		return nil, err
	}
	return score, nil
}

func (s *LearningService) DeleteScore(id uint) error {
	score, err := s.scores.GetByID(id)
	if err != nil {
		return err
	}
	if score == nil {
		return ErrScoreNotFound
	}
	return s.scores.Delete(id)
}

func (s *LearningService) createScore(input ScoreInput) (*model.Score, error) {
	input.Game = strings.TrimSpace(input.Game)
	if input.Level == 0 {
		input.Level = 1
	}
	if err := validateScore(input.Game, input.Points, input.Level); err != nil {
		return nil, err
	}
	score := &model.Score{
		UserID: input.UserID,
		Game:   input.Game,
		Points: input.Points,
		Level:  input.Level,
	}
	if err := s.scores.Create(score); err != nil {
		return nil, err
	}
	return score, nil
}

func validateScore(game string, points, level int) error {
	err := validation.Errors{
		"game":   validation.Validate(game, validation.Required, validation.In(gameChoices()...)),
		"points": validation.Validate(points, validation.Min(0), validation.Max(maxScorePoints)),
		"level":  validation.Validate(level, validation.Min(1), validation.Max(maxScoreLevel)),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func gameChoices() []any {
	out := make([]any, len(LearningGames))
	for i, game := range LearningGames {
		out[i] = game
	}
	return out
}
