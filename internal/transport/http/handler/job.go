package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/transport/http/response"
)

type JobHandler struct {
	jobService *app.JobService
}

type ListJobsQuery struct {
	PageQuery
	Status  string `form:"status"`
	Backend string `form:"backend"`
}

type SearchJobsQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

type CreateJobRequest struct {
	Name    string   `json:"name" binding:"required"`
	Backend string   `json:"backend" binding:"required"`
	Qubits  int      `json:"qubits" binding:"required"`
	Shots   int      `json:"shots" binding:"required"`
	Circuit string   `json:"circuit"`
	Tags    []string `json:"tags"`
}

type UpdateJobStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewJobHandler(jobService *app.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// List serves both /api/jobs and /api/admin/jobs; admins see every user's jobs.
func (h *JobHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q ListJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query parameters")
		return
	}

	jobs, total, err := h.jobService.List(actor, app.ListJobsInput{
		Status:  q.Status,
		Backend: q.Backend,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
	if err != nil {
		writeServiceError(c, err, "list jobs failed")
		return
	}
	response.List(c, jobs, total)
}

func (h *JobHandler) Search(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q SearchJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query parameter q is required")
		return
	}

	jobs, err := h.jobService.Search(actor, q.Q, q.Limit)
	if err != nil {
		writeServiceError(c, err, "search jobs failed")
		return
	}
	response.List(c, jobs, int64(len(jobs)))
}

func (h *JobHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	job, err := h.jobService.Get(actor, id)
	if err != nil {
		writeServiceError(c, err, "get job failed")
		return
	}
	response.OK(c, job)
}

func (h *JobHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	job, err := h.jobService.Create(c.Request.Context(), actor, app.CreateJobInput{
		Name:    req.Name,
		Backend: req.Backend,
		Qubits:  req.Qubits,
		Shots:   req.Shots,
		Circuit: req.Circuit,
		Tags:    req.Tags,
	})
	if err != nil {
		writeServiceError(c, err, "create job failed")
		return
	}
	response.Created(c, job)
}

func (h *JobHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	job, err := h.jobService.UpdateStatus(c.Request.Context(), actor, id, model.JobStatus(req.Status))
	if err != nil {
		writeServiceError(c, err, "update job status failed")
		return
	}
	response.OK(c, job)
}

func (h *JobHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.jobService.Delete(c.Request.Context(), actor, id); err != nil {
		writeServiceError(c, err, "delete job failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}
