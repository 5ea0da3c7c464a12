package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// List returns sessions owned by userID, optionally narrowed to a project.
func (r *SessionRepository) List(userID, projectID uint) ([]model.Session, error) {
	q := r.db.Where("owner_id = ?", userID)
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	var sessions []model.Session
	if err := q.Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetByID(id uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetByCode(code string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("code = ?", code).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by code failed: %w", err)
	}
	return &session, nil
}

// SaveDocument stores a document snapshot unless a newer version is already stored.
func (r *SessionRepository) SaveDocument(code, content string, version int) error {
	err := r.db.Model(&model.Session{}).
		Where("code = ? AND document_version <= ?", code, version).
		Updates(map[string]any{
			"document_content": content,
			"document_version": version,
		}).Error
	if err != nil {
		return fmt.Errorf("save session document failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteByIDAndOwnerID(id, ownerID uint) error {
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}
