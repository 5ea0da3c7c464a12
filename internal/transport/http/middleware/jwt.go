package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/pkg/jwtutil"
	"quantum-dashboard/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return authJWT(secret, false)
}

// AuthJWTOrQuery also accepts the token as a "token" query parameter, for
// WebSocket upgrades where browsers cannot set headers.
func AuthJWTOrQuery(secret string) gin.HandlerFunc {
	return authJWT(secret, true)
}

func authJWT(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c, allowQuery)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextRoleKey, model.UserRole(claims.Role))
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (string, string) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		if allowQuery {
			if token := strings.TrimSpace(c.Query("token")); token != "" {
				return token, ""
			}
		}
		return "", "missing authorization header"
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", "invalid authorization scheme"
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix)), "missing bearer token"
}

// CurrentActor returns the caller set by AuthJWT.
func CurrentActor(c *gin.Context) (app.Actor, bool) {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return app.Actor{}, false
	}
	id, ok := userID.(uint)
	if !ok || id == 0 {
		return app.Actor{}, false
	}
	return app.Actor{
		UserID:   id,
		Username: c.GetString(ContextUsernameKey),
		Role:     roleOf(c),
	}, true
}

func roleOf(c *gin.Context) model.UserRole {
	v, _ := c.Get(ContextRoleKey)
	role, _ := v.(model.UserRole)
	return role
}
