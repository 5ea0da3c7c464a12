package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/repository"
	"quantum-dashboard/internal/transport/http/response"
)

type LearningHandler struct {
	learning *app.LearningService
}

type SubmitScoreRequest struct {
	Game   string `json:"game" binding:"required"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
}

type AdminScoreRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Game   string `json:"game" binding:"required"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
}

type UpdateScoreRequest struct {
	Points *int `json:"points"`
	Level  *int `json:"level"`
}

type HintRequest struct {
	Game     string `json:"game" binding:"required"`
	Level    int    `json:"level"`
	Question string `json:"question" binding:"required"`
}

type LeaderboardQuery struct {
	Game string `form:"game" binding:"required"`
}

type ListScoresQuery struct {
	PageQuery
	Game string `form:"game"`
}

func NewLearningHandler(learning *app.LearningService) *LearningHandler {
	return &LearningHandler{learning: learning}
}

func (h *LearningHandler) SubmitScore(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	score, err := h.learning.SubmitScore(actor, app.ScoreInput{Game: req.Game, Points: req.Points, Level: req.Level})
	if err != nil {
		writeServiceError(c, err, "submit score failed")
		return
	}
	response.Created(c, score)
}

func (h *LearningHandler) Leaderboard(c *gin.Context) {
	var q LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query parameter game is required")
		return
	}
	entries, err := h.learning.Leaderboard(q.Game)
	if err != nil {
		writeServiceError(c, err, "load leaderboard failed")
		return
	}
	response.OK(c, entries)
}

func (h *LearningHandler) Hint(c *gin.Context) {
	var req HintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	hint, err := h.learning.Hint(c.Request.Context(), app.HintInput{Game: req.Game, Level: req.Level, Question: req.Question})
	if err != nil {
		writeServiceError(c, err, "generate hint failed")
		return
	}
	response.OK(c, gin.H{"hint": hint})
}

func (h *LearningHandler) ListScores(c *gin.Context) {
	var q ListScoresQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query parameters")
		return
	}
	scores, total, err := h.learning.ListScores(q.Game, repository.Page{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		writeServiceError(c, err, "list scores failed")
		return
	}
	response.List(c, scores, total)
}

func (h *LearningHandler) CreateScore(c *gin.Context) {
	var req AdminScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	score, err := h.learning.CreateScore(app.ScoreInput{UserID: req.UserID, Game: req.Game, Points: req.Points, Level: req.Level})
	if err != nil {
		writeServiceError(c, err, "create score failed")
		return
	}
	response.Created(c, score)
}

func (h *LearningHandler) UpdateScore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	score, err := h.learning.UpdateScore(id, req.Points, req.Level)
	if err != nil {
		writeServiceError(c, err, "update score failed")
		return
	}
	response.OK(c, score)
}

func (h *LearningHandler) DeleteScore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.learning.DeleteScore(id); err != nil {
		writeServiceError(c, err, "delete score failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}
