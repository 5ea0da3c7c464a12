package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

type PricingPlanRepository struct {
	db *gorm.DB
}

func NewPricingPlanRepository(db *gorm.DB) *PricingPlanRepository {
	return &PricingPlanRepository{db: db}
}

func (r *PricingPlanRepository) Create(plan *model.PricingPlan) error {
	if err := r.db.Create(plan).Error; err != nil {
		return fmt.Errorf("create pricing plan failed: %w", err)
	}
	return nil
}

func (r *PricingPlanRepository) List() ([]model.PricingPlan, error) {
	var plans []model.PricingPlan
	if err := r.db.Order("price_cents ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list pricing plans failed: %w", err)
	}
	return plans, nil
}

func (r *PricingPlanRepository) GetByID(id uint) (*model.PricingPlan, error) {
	var plan model.PricingPlan
	if err := r.db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pricing plan failed: %w", err)
	}
	return &plan, nil
}

func (r *PricingPlanRepository) GetByName(name string) (*model.PricingPlan, error) {
	var plan model.PricingPlan
	if err := r.db.Where("name = ?", name).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pricing plan by name failed: %w", err)
	}
	return &plan, nil
}

func (r *PricingPlanRepository) Save(plan *model.PricingPlan) error {
	if err := r.db.Save(plan).Error; err != nil {
		return fmt.Errorf("save pricing plan failed: %w", err)
	}
	return nil
}

func (r *PricingPlanRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.PricingPlan{}, id).Error; err != nil {
		return fmt.Errorf("delete pricing plan failed: %w", err)
	}
	return nil
}
