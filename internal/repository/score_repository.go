package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type ScoreRepository struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) Create(score *model.Score) error {
	if err := r.db.Create(score).Error; err != nil {
		return fmt.Errorf("create score failed: %w", err)
	}
	return nil
}

func (r *ScoreRepository) GetByID(id uint) (*model.Score, error) {
	var score model.Score
	if err := r.db.First(&score, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get score failed: %w", err)
	}
	return &score, nil
}

// List returns scores, newest first; an empty game matches every game.
func (r *ScoreRepository) List(game string, page Page) ([]model.Score, int64, error) {
	q := r.db.Model(&model.Score{})
	if game != "" {
		q = q.Where("game = ?", game)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count scores failed: %w", err)
	}
	var scores []model.Score
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(page.limit()).Offset(page.Offset).
		Find(&scores).Error; err != nil {
		return nil, 0, fmt.Errorf("list scores failed: %w", err)
	}
	return scores, total, nil
}

func (r *ScoreRepository) Save(score *model.Score) error {
	if err := r.db.Save(score).Error; err != nil {
		return fmt.Errorf("save score failed: %w", err)
	}
	return nil
}

func (r *ScoreRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Score{}, id).Error; err != nil {
		return fmt.Errorf("delete score failed: %w", err)
	}
	return nil
}

// Leaderboard returns each user's best points for the game, highest first.
func (r *ScoreRepository) Leaderboard(game string, limit int) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	err := r.db.Table("scores").
		Select("scores.user_id AS user_id, users.username AS username, MAX(scores.points) AS points").
		Joins("JOIN users ON users.id = scores.user_id").
		Where("scores.game = ?", game).
		Group("scores.user_id, users.username").
		Order("MAX(scores.points) DESC").
		Limit(Page{Limit: limit}.limit()).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query leaderboard failed: %w", err)
	}
	return entries, nil
}
