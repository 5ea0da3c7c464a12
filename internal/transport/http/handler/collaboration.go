package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/collab"
	"quantum-dashboard/internal/transport/http/response"
)

// CollaborationHandler upgrades /ws/collaboration and hands the socket to the hub.
type CollaborationHandler struct {
	hub      *collab.Hub
	sessions *app.SessionService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type CollaborationQuery struct {
	SessionID string `form:"sessionId" binding:"required"`
	ProjectID string `form:"projectId"`
	UserID    string `form:"userId"`
	UserName  string `form:"userName"`
}

func NewCollaborationHandler(hub *collab.Hub, sessions *app.SessionService, allowedOrigins []string, logger *slog.Logger) *CollaborationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollaborationHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func (h *CollaborationHandler) Connect(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q CollaborationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "sessionId is required")
		return
	}

	subject := strconv.FormatUint(uint64(actor.UserID), 10)
	if q.UserID != "" && q.UserID != subject {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "userId does not match token")
		return
	}
	name := strings.TrimSpace(q.UserName)
	if name == "" {
		name = actor.Username
	}

	session, err := h.sessions.GetByCode(q.SessionID)
	if err != nil {
		writeServiceError(c, err, "load session failed")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Warn("websocket upgrade failed", "error", err, "session", session.Code)
		return
	}

	err = h.hub.Serve(c.Request.Context(), ws, session.Code, collab.Client{
		UserID:    subject,
		UserName:  name,
		ProjectID: q.ProjectID,
	})
	if err != nil && !errors.Is(err, collab.ErrHubClosed) {
		h.logger.Error("collaboration socket failed", "error", err, "session", session.Code, "user_id", subject)
	}
}

// originChecker allows any origin when the list is empty. Requests without an
// Origin header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
