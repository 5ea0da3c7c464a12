package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"quantum-dashboard/internal/bootstrap"
	"quantum-dashboard/internal/transport/http/handler"
	"quantum-dashboard/internal/transport/http/middleware"
)

// NewHandler builds the router and wraps it with CORS.
func NewHandler(app *bootstrap.App) http.Handler {
	router := NewRouter(app)
	return cors.New(cors.Options{
		AllowedOrigins:   app.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	svc := app.Services
	secret := app.Config.Auth.JWTSecret

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(svc.Auth)
	jobHandler := handler.NewJobHandler(svc.Jobs)
	analyticsHandler := handler.NewAnalyticsHandler(svc.Analytics)
	backendHandler := handler.NewBackendHandler(svc.Backends)
	sessionHandler := handler.NewSessionHandler(svc.Sessions)
	workspaceHandler := handler.NewWorkspaceHandler(svc.Workspaces)
	learningHandler := handler.NewLearningHandler(svc.Learning)
	adminHandler := handler.NewAdminHandler(svc.Admin)
	collabHandler := handler.NewCollaborationHandler(app.Hub, svc.Sessions, app.Config.Collab.AllowedOrigins, app.Logger)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/ws/collaboration", middleware.AuthJWTOrQuery(secret), collabHandler.Connect)

	api := router.Group("/api")
	limit := func(c *gin.Context) { c.Next() }
	if app.RateLimiter != nil {
		limit = middleware.RateLimit(app.RateLimiter, app.Logger)
	}

	authGroup := api.Group("/auth", limit)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	authed := api.Group("", middleware.AuthJWT(secret), limit)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/jobs", jobHandler.List)
	authed.GET("/jobs/search", jobHandler.Search)
	authed.GET("/jobs/:id", jobHandler.Get)
	authed.POST("/jobs", jobHandler.Create)
	authed.PATCH("/jobs/:id/status", jobHandler.UpdateStatus)
	authed.DELETE("/jobs/:id", jobHandler.Delete)

	authed.GET("/analytics/stats", analyticsHandler.Stats)
	authed.GET("/analytics/trends", analyticsHandler.Trends)

	authed.GET("/backends", backendHandler.List)
	authed.GET("/backends/:id", backendHandler.Get)

	authed.GET("/sessions", sessionHandler.List)
	authed.POST("/sessions", sessionHandler.Create)
	authed.GET("/sessions/:id", sessionHandler.Get)
	authed.DELETE("/sessions/:id", sessionHandler.Delete)
	authed.GET("/sessions/:id/messages", sessionHandler.Messages)

	authed.GET("/workspaces", workspaceHandler.ListWorkspaces)
	authed.POST("/workspaces", workspaceHandler.CreateWorkspace)
	authed.GET("/workspaces/:id", workspaceHandler.GetWorkspace)
	authed.PATCH("/workspaces/:id", workspaceHandler.UpdateWorkspace)
	authed.DELETE("/workspaces/:id", workspaceHandler.DeleteWorkspace)

	authed.GET("/projects", workspaceHandler.ListProjects)
	authed.POST("/projects", workspaceHandler.CreateProject)
	authed.GET("/projects/:id", workspaceHandler.GetProject)
	authed.PATCH("/projects/:id", workspaceHandler.UpdateProject)
	authed.DELETE("/projects/:id", workspaceHandler.DeleteProject)

	authed.POST("/learning/scores", learningHandler.SubmitScore)
	authed.GET("/learning/leaderboard", learningHandler.Leaderboard)
	authed.POST("/learning/hint", learningHandler.Hint)

	admin := authed.Group("/admin", middleware.RequireAdmin(svc.Auth, app.Logger))
	admin.GET("/users", adminHandler.ListUsers)
	admin.PATCH("/users/:id/role", adminHandler.UpdateUserRole)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)
	admin.GET("/jobs", jobHandler.List)
	admin.GET("/scores", learningHandler.ListScores)
	admin.POST("/scores", learningHandler.CreateScore)
	admin.PATCH("/scores/:id", learningHandler.UpdateScore)
	admin.DELETE("/scores/:id", learningHandler.DeleteScore)
	admin.GET("/pricing-plans", adminHandler.ListPlans)
	admin.POST("/pricing-plans", adminHandler.CreatePlan)
	admin.PATCH("/pricing-plans/:id", adminHandler.UpdatePlan)
	admin.DELETE("/pricing-plans/:id", adminHandler.DeletePlan)
	admin.PATCH("/backends/:id/status", backendHandler.UpdateStatus)

	return router
}
