package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/transport/http/response"
)

// UserLookup loads the current state of a user.
type UserLookup interface {
	GetUserByID(id uint) (*model.User, error)
}

// RequireAdmin rejects callers who are not admins right now. The role in the
// token is only a hint; the stored role decides, so a demoted or deleted
// admin loses access before their token expires. It must run after AuthJWT.
func RequireAdmin(users UserLookup, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok || actor.Role != model.RoleAdmin {
			forbidden(c)
			return
		}

		user, err := users.GetUserByID(actor.UserID)
		if err != nil {
			logger.Error("load admin failed", "user_id", actor.UserID, "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load user failed")
			c.Abort()
			return
		}
		if user == nil || user.Role != model.RoleAdmin {
			forbidden(c)
			return
		}

		c.Set(ContextRoleKey, user.Role)
		c.Next()
	}
}

func forbidden(c *gin.Context) {
	response.Error(c, http.StatusForbidden, response.CodeForbidden, "admin role required")
	c.Abort()
}
