package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/datatypes"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

var (
	ErrPlanNotFound = errors.New("pricing plan not found")
	ErrPlanExists   = errors.New("pricing plan name already exists")
	ErrSelfDemotion = errors.New("admins cannot change or delete their own account")
)

// AdminService is the back-office: users and pricing plans. Jobs, scores and
// backends are managed through their own services with an admin actor.
type AdminService struct {
	users *repository.UserRepository
	plans *repository.PricingPlanRepository
}

type PricingPlanInput struct {
	Name            *string
	PriceCents      *int
	Currency        *string
	Interval        *string
	MaxQubits       *int
	MaxJobsPerMonth *int
	Features        []string
	Active          *bool
}

func NewAdminService(users *repository.UserRepository, plans *repository.PricingPlanRepository) *AdminService {
	return &AdminService{users: users, plans: plans}
}

func (s *AdminService) ListUsers(page repository.Page) ([]model.User, int64, error) {
	return s.users.List(page)
}

func (s *AdminService) UpdateUserRole(actor Actor, id uint, role model.UserRole) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if id == actor.UserID {
		return nil, ErrSelfDemotion
	}
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := s.users.UpdateRole(id, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (s *AdminService) DeleteUser(actor Actor, id uint) error {
	if id == actor.UserID {
		return ErrSelfDemotion
	}
	user, err := s.users.GetByID(id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.users.Delete(id)
}

func (s *AdminService) ListPlans() ([]model.PricingPlan, error) {
	return s.plans.List()
}

func (s *AdminService) CreatePlan(input PricingPlanInput) (*model.PricingPlan, error) {
	if input.Name == nil || input.PriceCents == nil || input.Interval == nil {
		return nil, fmt.Errorf("%w: name, price_cents and interval are required", ErrInvalidInput)
	}
	plan := &model.PricingPlan{Currency: "USD", Active: true}
	if err := applyPlanInput(plan, input); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(plan.Name, 0); err != nil {
		return nil, err
	}
	if err := s.plans.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *AdminService) UpdatePlan(id uint, input PricingPlanInput) (*model.PricingPlan, error) {
	plan, err := s.plans.GetByID(id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if err := applyPlanInput(plan, input); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(plan.Name, plan.ID); err != nil {
		return nil, err
	}
	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *AdminService) DeletePlan(id uint) error {
	plan, err := s.plans.GetByID(id)
	if err != nil {
		return err
	}
	if plan == nil {
		return ErrPlanNotFound
	}
	return s.plans.Delete(id)
}

func (s *AdminService) ensureUniqueName(name string, selfID uint) error {
	existing, err := s.plans.GetByName(name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrPlanExists
	}
	return nil
}

func applyPlanInput(plan *model.PricingPlan, input PricingPlanInput) error {
	if input.Name != nil {
		plan.Name = strings.TrimSpace(*input.Name)
	}
	if input.PriceCents != nil {
		plan.PriceCents = *input.PriceCents
	}
	if input.Currency != nil {
		plan.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.Interval != nil {
		plan.Interval = model.PlanInterval(strings.TrimSpace(*input.Interval))
	}
	if input.MaxQubits != nil {
		plan.MaxQubits = *input.MaxQubits
	}
	if input.MaxJobsPerMonth != nil {
		plan.MaxJobsPerMonth = *input.MaxJobsPerMonth
	}
	if input.Active != nil {
		plan.Active = *input.Active
	}
	if input.Features != nil {
		features, err := json.Marshal(input.Features)
		if err != nil {
			return fmt.Errorf("marshal plan features failed: %w", err)
		}
		plan.Features = datatypes.JSON(features)
	}

	if err := validation.ValidateStruct(plan,
		validation.Field(&plan.Name, validation.Required, validation.Length(1, 64)),
		validation.Field(&plan.PriceCents, validation.Min(0)),
		validation.Field(&plan.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&plan.Interval, validation.Required, validation.In(model.PlanMonthly, model.PlanYearly)),
		validation.Field(&plan.MaxQubits, validation.Min(0), validation.Max(MaxJobQubits)),
		validation.Field(&plan.MaxJobsPerMonth, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
