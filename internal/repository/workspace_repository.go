package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type WorkspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

func (r *WorkspaceRepository) Create(workspace *model.Workspace) error {
	if err := r.db.Create(workspace).Error; err != nil {
		return fmt.Errorf("create workspace failed: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListByOwnerID(ownerID uint) ([]model.Workspace, error) {
	var list []model.Workspace
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list workspaces failed: %w", err)
	}
	return list, nil
}

func (r *WorkspaceRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Workspace, error) {
	var workspace model.Workspace
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace failed: %w", err)
	}
	return &workspace, nil
}

func (r *WorkspaceRepository) Save(workspace *model.Workspace) error {
	if err := r.db.Save(workspace).Error; err != nil {
		return fmt.Errorf("save workspace failed: %w", err)
	}
	return nil
}

// DeleteByIDAndOwnerID removes the workspace together with its projects.
func (r *WorkspaceRepository) DeleteByIDAndOwnerID(id, ownerID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", id).Delete(&model.Project{}).Error; err != nil {
			return fmt.Errorf("delete workspace projects failed: %w", err)
		}
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Workspace{}).Error; err != nil {
			return fmt.Errorf("delete workspace failed: %w", err)
		}
		return nil
	})
}
