package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type BackendRepository struct {
	db *gorm.DB
}

func NewBackendRepository(db *gorm.DB) *BackendRepository {
	return &BackendRepository{db: db}
}

func (r *BackendRepository) Create(backend *model.Backend) error {
	if err := r.db.Create(backend).Error; err != nil {
		return fmt.Errorf("create backend failed: %w", err)
	}
	return nil
}

func (r *BackendRepository) List() ([]model.Backend, error) {
	var backends []model.Backend
	if err := r.db.Order("name ASC").Find(&backends).Error; err != nil {
		return nil, fmt.Errorf("list backends failed: %w", err)
	}
	return backends, nil
}

func (r *BackendRepository) GetByID(id uint) (*model.Backend, error) {
	var backend model.Backend
	if err := r.db.First(&backend, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get backend failed: %w", err)
	}
	return &backend, nil
}

func (r *BackendRepository) GetByName(name string) (*model.Backend, error) {
	var backend model.Backend
	if err := r.db.Where("name = ?", name).First(&backend).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get backend by name failed: %w", err)
	}
	return &backend, nil
}

func (r *BackendRepository) UpdateStatus(id uint, status model.BackendStatus) error {
	if err := r.db.Model(&model.Backend{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return fmt.Errorf("update backend status failed: %w", err)
	}
	return nil
}

func (r *BackendRepository) UpdateQueueLength(name string, queueLength int) error {
	if err := r.db.Model(&model.Backend{}).Where("name = ?", name).Update("queue_length", queueLength).Error; err != nil {
		return fmt.Errorf("update backend queue failed: %w", err)
	}
	return nil
}

func (r *BackendRepository) CountByStatus(status model.BackendStatus) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Backend{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count backends failed: %w", err)
	}
	return count, nil
}

// EnsureSeeded inserts the given backends when the table is empty.
func (r *BackendRepository) EnsureSeeded(backends []model.Backend) error {
	var count int64
	if err := r.db.Model(&model.Backend{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count backends failed: %w", err)
	}
	if count > 0 || len(backends) == 0 {
		return nil
	}
	if err := r.db.Create(&backends).Error; err != nil {
		return fmt.Errorf("seed backends failed: %w", err)
	}
	return nil
}
