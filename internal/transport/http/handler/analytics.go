package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/transport/http/response"
)

type AnalyticsHandler struct {
	analytics *app.AnalyticsService
}

type TrendsQuery struct {
	Days int `form:"days"`
}

func NewAnalyticsHandler(analytics *app.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Stats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	stats, err := h.analytics.Stats(c.Request.Context(), actor)
	if err != nil {
		writeServiceError(c, err, "load job stats failed")
		return
	}
	response.OK(c, stats)
}

func (h *AnalyticsHandler) Trends(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q TrendsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "days must be a number")
		return
	}
	points, err := h.analytics.Trends(actor, q.Days)
	if err != nil {
		writeServiceError(c, err, "load job trends failed")
		return
	}
	response.OK(c, points)
}
