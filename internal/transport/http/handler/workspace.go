package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/transport/http/response"
)

type WorkspaceHandler struct {
	workspaces *app.WorkspaceService
}

type WorkspaceRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Settings    json.RawMessage `json:"settings"`
}

type ProjectRequest struct {
	WorkspaceID uint     `json:"workspace_id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

type ListProjectsQuery struct {
	WorkspaceID uint `form:"workspace_id"`
}

func NewWorkspaceHandler(workspaces *app.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

func (r WorkspaceRequest) input() app.WorkspaceInput {
	return app.WorkspaceInput{Name: r.Name, Description: r.Description, Settings: r.Settings}
}

func (r ProjectRequest) input() app.ProjectInput {
	return app.ProjectInput{WorkspaceID: r.WorkspaceID, Name: r.Name, Description: r.Description, Tags: r.Tags}
}

func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	workspaces, err := h.workspaces.ListWorkspaces(actor)
	if err != nil {
		writeServiceError(c, err, "list workspaces failed")
		return
	}
	response.List(c, workspaces, int64(len(workspaces)))
}

func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	workspace, err := h.workspaces.CreateWorkspace(actor, req.input())
	if err != nil {
		writeServiceError(c, err, "create workspace failed")
		return
	}
	response.Created(c, workspace)
}

func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	workspace, err := h.workspaces.GetWorkspace(actor, id)
	if err != nil {
		writeServiceError(c, err, "get workspace failed")
		return
	}
	response.OK(c, workspace)
}

func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	workspace, err := h.workspaces.UpdateWorkspace(actor, id, req.input())
	if err != nil {
		writeServiceError(c, err, "update workspace failed")
		return
	}
	response.OK(c, workspace)
}

func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.workspaces.DeleteWorkspace(actor, id); err != nil {
		writeServiceError(c, err, "delete workspace failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}

func (h *WorkspaceHandler) ListProjects(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q ListProjectsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace_id")
		return
	}
	projects, err := h.workspaces.ListProjects(actor, q.WorkspaceID)
	if err != nil {
		writeServiceError(c, err, "list projects failed")
		return
	}
	response.List(c, projects, int64(len(projects)))
}

func (h *WorkspaceHandler) CreateProject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	project, err := h.workspaces.CreateProject(actor, req.input())
	if err != nil {
		writeServiceError(c, err, "create project failed")
		return
	}
	response.Created(c, project)
}

func (h *WorkspaceHandler) GetProject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := h.workspaces.GetProject(actor, id)
	if err != nil {
		writeServiceError(c, err, "get project failed")
		return
	}
	response.OK(c, project)
}

func (h *WorkspaceHandler) UpdateProject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	project, err := h.workspaces.UpdateProject(actor, id, req.input())
	if err != nil {
		writeServiceError(c, err, "update project failed")
		return
	}
	response.OK(c, project)
}

func (h *WorkspaceHandler) DeleteProject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.workspaces.DeleteProject(actor, id); err != nil {
		writeServiceError(c, err, "delete project failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}
