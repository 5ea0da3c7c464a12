package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(project *model.Project) error {
	if err := r.db.Create(project).Error; err != nil {
		return fmt.Errorf("create project failed: %w", err)
	}
	return nil
}

// ListByOwnerID lists the owner's projects; workspaceID 0 means every workspace.
func (r *ProjectRepository) ListByOwnerID(ownerID, workspaceID uint) ([]model.Project, error) {
	q := r.db.Where("owner_id = ?", ownerID)
	if workspaceID != 0 {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	var list []model.Project
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	return list, nil
}

func (r *ProjectRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) Save(project *model.Project) error {
	if err := r.db.Save(project).Error; err != nil {
		return fmt.Errorf("save project failed: %w", err)
	}
	return nil
}

func (r *ProjectRepository) DeleteByIDAndOwnerID(id, ownerID uint) error {
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Project{}).Error; err != nil {
		return fmt.Errorf("delete project failed: %w", err)
	}
	return nil
}
