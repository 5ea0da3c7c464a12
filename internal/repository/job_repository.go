package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
)

// JobFilter narrows job listings. A zero UserID means all users.
type JobFilter struct {
	UserID  uint
	Status  model.JobStatus
	Backend string
	Page    Page
}

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.Job) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(id uint) (*model.Job, error) {
	var job model.Job
	if err := r.db.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) List(filter JobFilter) ([]model.Job, int64, error) {
	q := r.scoped(filter.UserID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Backend != "" {
		q = q.Where("backend = ?", filter.Backend)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Model(&model.Job{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs failed: %w", err)
	}

	var jobs []model.Job
	if err := q.Order("submitted_at DESC").Order("id DESC").
		Limit(filter.Page.limit()).Offset(filter.Page.Offset).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs failed: %w", err)
	}
	return jobs, total, nil
}

// Search matches the query against job name and backend, case-insensitively.
func (r *JobRepository) Search(userID uint, query string, limit int) ([]model.Job, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var jobs []model.Job
	if err := r.scoped(userID).
		Where("LOWER(name) LIKE ? OR LOWER(backend) LIKE ?", pattern, pattern).
		Order("submitted_at DESC").
		Limit(Page{Limit: limit}.limit()).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("search jobs failed: %w", err)
	}
	return jobs, nil
}

// ListByStatus returns the oldest jobs in the given status first.
func (r *JobRepository) ListByStatus(status model.JobStatus, limit int) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.db.Where("status = ?", status).
		Order("submitted_at ASC").Order("id ASC").
		Limit(Page{Limit: limit}.limit()).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs by status failed: %w", err)
	}
	return jobs, nil
}

// ListSubmittedSince returns jobs submitted at or after since, oldest first.
func (r *JobRepository) ListSubmittedSince(userID uint, since time.Time) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.scoped(userID).Where("submitted_at >= ?", since).
		Order("submitted_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs since failed: %w", err)
	}
	return jobs, nil
}

type statusCount struct {
	Status model.JobStatus
	Count  int64
}

func (r *JobRepository) CountByStatus(userID uint) (map[model.JobStatus]int64, error) {
	var rows []statusCount
	if err := r.scoped(userID).Model(&model.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs by status failed: %w", err)
	}
	counts := make(map[model.JobStatus]int64, len(model.JobStatuses))
	for _, status := range model.JobStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

type backendCount struct {
	Backend string
	Count   int64
}

// CountActiveByBackend counts queued and running jobs per backend name.
func (r *JobRepository) CountActiveByBackend() (map[string]int64, error) {
	var rows []backendCount
	if err := r.db.Model(&model.Job{}).
		Select("backend, COUNT(*) AS count").
		Where("status IN ?", []model.JobStatus{model.JobQueued, model.JobRunning}).
		Group("backend").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count active jobs failed: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Backend] = row.Count
	}
	return counts, nil
}

// ListFinished returns completed jobs with both timestamps set, for runtime averages.
func (r *JobRepository) ListFinished(userID uint, limit int) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.scoped(userID).
		Where("status = ? AND started_at IS NOT NULL AND completed_at IS NOT NULL", model.JobCompleted).
		Order("completed_at DESC").
		Limit(Page{Limit: limit}.limit()).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list finished jobs failed: %w", err)
	}
	return jobs, nil
}

// UpdateIfStatus writes the lifecycle fields of job only while the stored row
// is still in status prev. It reports false when the row changed status or
// was deleted in the meantime, in which case nothing is written.
func (r *JobRepository) UpdateIfStatus(job *model.Job, prev model.JobStatus) (bool, error) {
	res := r.db.Model(&model.Job{}).
		Where("id = ? AND status = ?", job.ID, prev).
		Updates(map[string]any{
			"status":       job.Status,
			"progress":     job.Progress,
			"error":        job.Error,
			"results":      job.Results,
			"started_at":   job.StartedAt,
			"completed_at": job.CompletedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update job failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *JobRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Job{}, id).Error; err != nil {
		return fmt.Errorf("delete job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) scoped(userID uint) *gorm.DB {
	if userID == 0 {
		return r.db
	}
	return r.db.Where("user_id = ?", userID)
}
