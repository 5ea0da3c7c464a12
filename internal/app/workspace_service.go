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

var ErrWorkspaceNotFound = errors.New("workspace not found")

type WorkspaceService struct {
	workspaces *repository.WorkspaceRepository
	projects   *repository.ProjectRepository
}

type WorkspaceInput struct {
	Name        *string
	Description *string
	Settings    json.RawMessage
}

type ProjectInput struct {
	WorkspaceID uint
	Name        *string
	Description *string
	Tags        []string
}

func NewWorkspaceService(workspaces *repository.WorkspaceRepository, projects *repository.ProjectRepository) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, projects: projects}
}

func (s *WorkspaceService) ListWorkspaces(actor Actor) ([]model.Workspace, error) {
	return s.workspaces.ListByOwnerID(actor.UserID)
}

func (s *WorkspaceService) GetWorkspace(actor Actor, id uint) (*model.Workspace, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	workspace, err := s.workspaces.GetByIDAndOwnerID(id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, ErrWorkspaceNotFound
	}
	return workspace, nil
}

func (s *WorkspaceService) CreateWorkspace(actor Actor, input WorkspaceInput) (*model.Workspace, error) {
	if input.Name == nil {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	workspace := &model.Workspace{OwnerID: actor.UserID}
	if err := applyWorkspaceInput(workspace, input); err != nil {
		return nil, err
	}
	if err := s.workspaces.Create(workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

func (s *WorkspaceService) UpdateWorkspace(actor Actor, id uint, input WorkspaceInput) (*model.Workspace, error) {
	workspace, err := s.GetWorkspace(actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyWorkspaceInput(workspace, input); err != nil {
		return nil, err
	}
	if err := s.workspaces.Save(workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

// DeleteWorkspace removes the workspace together with its projects.
func (s *WorkspaceService) DeleteWorkspace(actor Actor, id uint) error {
	if _, err := s.GetWorkspace(actor, id); err != nil {
		return err
	}
	return s.workspaces.DeleteByIDAndOwnerID(id, actor.UserID)
}

func (s *WorkspaceService) ListProjects(actor Actor, workspaceID uint) ([]model.Project, error) {
	return s.projects.ListByOwnerID(actor.UserID, workspaceID)
}

func (s *WorkspaceService) GetProject(actor Actor, id uint) (*model.Project, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	project, err := s.projects.GetByIDAndOwnerID(id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *WorkspaceService) CreateProject(actor Actor, input ProjectInput) (*model.Project, error) {
	if input.Name == nil || input.WorkspaceID == 0 {
		return nil, fmt.Errorf("%w: name and workspace_id are required", ErrInvalidInput)
	}
	if _, err := s.GetWorkspace(actor, input.WorkspaceID); err != nil {
		return nil, err
	}
	project := &model.Project{OwnerID: actor.UserID, WorkspaceID: input.WorkspaceID}
	if err := applyProjectInput(project, input); err != nil {
		return nil, err
	}
	if err := s.projects.Create(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *WorkspaceService) UpdateProject(actor Actor, id uint, input ProjectInput) (*model.Project, error) {
	project, err := s.GetProject(actor, id)
	if err != nil {
		return nil, err
	}
	if input.WorkspaceID != 0 && input.WorkspaceID != project.WorkspaceID {
		if _, err := s.GetWorkspace(actor, input.WorkspaceID); err != nil {
			return nil, err
		}
		project.WorkspaceID = input.WorkspaceID
	}
	if err := applyProjectInput(project, input); err != nil {
		return nil, err
	}
	if err := s.projects.Save(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *WorkspaceService) DeleteProject(actor Actor, id uint) error {
	if _, err := s.GetProject(actor, id); err != nil {
		return err
	}
	return s.projects.DeleteByIDAndOwnerID(id, actor.UserID)
}

func applyWorkspaceInput(workspace *model.Workspace, input WorkspaceInput) error {
	if input.Name != nil {
		workspace.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		workspace.Description = strings.TrimSpace(*input.Description)
	}
	if len(input.Settings) > 0 {
		if !json.Valid(input.Settings) {
			return fmt.Errorf("%w: settings must be valid json", ErrInvalidInput)
		}
		workspace.Settings = datatypes.JSON(input.Settings)
	}
	if err := validation.ValidateStruct(workspace,
		validation.Field(&workspace.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&workspace.Description, validation.Length(0, 512)),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func applyProjectInput(project *model.Project, input ProjectInput) error {
	if input.Name != nil {
		project.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Tags != nil {
		if err := validation.Validate(input.Tags, validation.Length(0, 16), validation.Each(validation.Length(1, 32))); err != nil {
			return fmt.Errorf("%w: tags: %v", ErrInvalidInput, err)
		}
		tags, err := json.Marshal(input.Tags)
		if err != nil {
			return fmt.Errorf("marshal project tags failed: %w", err)
		}
		project.Tags = datatypes.JSON(tags)
	}
	if err := validation.ValidateStruct(project,
		validation.Field(&project.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&project.Description, validation.Length(0, 512)),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
