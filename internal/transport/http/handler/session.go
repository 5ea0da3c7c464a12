package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/collab"
	"quantum-dashboard/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionService
}

type CreateSessionRequest struct {
	Name      string `json:"name" binding:"required,max=128"`
	ProjectID uint   `json:"project_id"`
}

type ListSessionsQuery struct {
	ProjectID uint `form:"project_id"`
}

type MessagesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q ListSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid project_id")
		return
	}
	sessions, err := h.sessions.List(actor, q.ProjectID)
	if err != nil {
		writeServiceError(c, err, "list sessions failed")
		return
	}
	response.List(c, sessions, int64(len(sessions)))
}

func (h *SessionHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	session, err := h.sessions.Create(actor, app.CreateSessionInput{Name: req.Name, ProjectID: req.ProjectID})
	if err != nil {
		writeServiceError(c, err, "create session failed")
		return
	}
	response.Created(c, session)
}

func (h *SessionHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessions.Get(actor, id)
	if err != nil {
		writeServiceError(c, err, "get session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), actor, id); err != nil {
		writeServiceError(c, err, "delete session failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}

// Messages returns the chat history in the same shape the socket delivers it.
func (h *SessionHandler) Messages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q MessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
		return
	}
	messages, err := h.sessions.Messages(c.Request.Context(), actor, id, q.Limit)
	if err != nil {
		writeServiceError(c, err, "fetch chat history failed")
		return
	}
	out := make([]collab.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, collab.ChatFromModel(m))
	}
	response.OK(c, out)
}
