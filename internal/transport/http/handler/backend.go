package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/transport/http/response"
)

type BackendHandler struct {
	backends *app.BackendService
}

type UpdateBackendStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewBackendHandler(backends *app.BackendService) *BackendHandler {
	return &BackendHandler{backends: backends}
}

func (h *BackendHandler) List(c *gin.Context) {
	backends, err := h.backends.List()
	if err != nil {
		writeServiceError(c, err, "list backends failed")
		return
	}
	response.OK(c, backends)
}

func (h *BackendHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	backend, err := h.backends.Get(id)
	if err != nil {
		writeServiceError(c, err, "get backend failed")
		return
	}
	response.OK(c, backend)
}

func (h *BackendHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateBackendStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	backend, err := h.backends.UpdateStatus(id, model.BackendStatus(req.Status))
	if err != nil {
		writeServiceError(c, err, "update backend status failed")
		return
	}
	response.OK(c, backend)
}
