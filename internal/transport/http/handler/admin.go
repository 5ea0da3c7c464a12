package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
	"quantum-dashboard/internal/transport/http/response"
)

type AdminHandler struct {
	admin *app.AdminService
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type PricingPlanRequest struct {
	Name            *string  `json:"name"`
	PriceCents      *int     `json:"price_cents"`
	Currency        *string  `json:"currency"`
	Interval        *string  `json:"interval"`
	MaxQubits       *int     `json:"max_qubits"`
	MaxJobsPerMonth *int     `json:"max_jobs_per_month"`
	Features        []string `json:"features"`
	Active          *bool    `json:"active"`
}

func NewAdminHandler(admin *app.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (r PricingPlanRequest) input() app.PricingPlanInput {
	return app.PricingPlanInput{
		Name:            r.Name,
		PriceCents:      r.PriceCents,
		Currency:        r.Currency,
		Interval:        r.Interval,
		MaxQubits:       r.MaxQubits,
		MaxJobsPerMonth: r.MaxJobsPerMonth,
		Features:        r.Features,
		Active:          r.Active,
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query parameters")
		return
	}
	users, total, err := h.admin.ListUsers(repository.Page{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		writeServiceError(c, err, "list users failed")
		return
	}
	response.List(c, users, total)
}

func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	user, err := h.admin.UpdateUserRole(actor, id, model.UserRole(req.Role))
	if err != nil {
		writeServiceError(c, err, "update user role failed")
		return
	}
	response.OK(c, user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(actor, id); err != nil {
		writeServiceError(c, err, "delete user failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.admin.ListPlans()
	if err != nil {
		writeServiceError(c, err, "list pricing plans failed")
		return
	}
	response.List(c, plans, int64(len(plans)))
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req PricingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	plan, err := h.admin.CreatePlan(req.input())
	if err != nil {
		writeServiceError(c, err, "create pricing plan failed")
		return
	}
	response.Created(c, plan)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PricingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	plan, err := h.admin.UpdatePlan(id, req.input())
	if err != nil {
		writeServiceError(c, err, "update pricing plan failed")
		return
	}
	response.OK(c, plan)
}

func (h *AdminHandler) DeletePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeletePlan(id); err != nil {
		writeServiceError(c, err, "delete pricing plan failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}
