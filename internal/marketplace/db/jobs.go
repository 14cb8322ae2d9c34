package db

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateJob inserts a job owned by an existing organization.
func (r *Repository) CreateJob(ctx context.Context, job *models.Job) error {
	newID(&job.ID)
	job.Version = 1
	if err := prepare(job); err != nil {
		return err
	}
	ok, err := r.exists(ctx, &models.Organization{}, "id = ?", job.OrganizationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: organization %s", e.ErrNotFound, job.OrganizationID)
	}
	return r.create(ctx, job)
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.first(ctx, &job, "id = ?", id); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobs returns the jobs with the given ids. Missing ids are skipped.
func (r *Repository) GetJobs(ctx context.Context, ids []uuid.UUID) ([]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var jobs []models.Job
	err := db.Where("id IN ?", ids).Find(&jobs).Error
	return jobs, translate(err)
}

func (r *Repository) UpdateJob(ctx context.Context, update *models.JobUpdate) (*models.Job, error) {
	return mutate(ctx, r, update.ID, update.ExpectedVersion, jobVersion,
		func(j *models.Job) (bool, error) {
			update.Apply(j)
			return true, nil
		})
}

// MutateJob applies fn to the stored job under a version check. State
// machines use it to decide a transition against the committed status.
func (r *Repository) MutateJob(ctx context.Context, id uuid.UUID, expected *int64, fn Mutation[models.Job]) (*models.Job, error) {
	return mutate(ctx, r, id, expected, jobVersion, fn)
}

// JobQuery is a typed job filter evaluated by the store.
type JobQuery struct {
	Statuses        []models.JobStatus
	VisibleAt       *time.Time
	OrganizationID  *uuid.UUID
	EmploymentTypes []models.EmploymentType
	Regions         []string
	Categories      []string
	Skills          []string
	BBox            *BBox
	// Terms match case-insensitively against title or description. Terms
	// must already be tokenized.
	Terms  []string
	Offset int
	Limit  int
}

func (q *JobQuery) scope(tx *gorm.DB) *gorm.DB {
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if q.VisibleAt != nil {
		tx = tx.Scopes(visibleAt(*q.VisibleAt))
	}
	if q.OrganizationID != nil {
		tx = tx.Where("organization_id = ?", *q.OrganizationID)
	}
	if len(q.EmploymentTypes) > 0 {
		tx = tx.Where("employment_type IN ?", q.EmploymentTypes)
	}
	if len(q.Regions) > 0 {
		tx = tx.Where("region IN ?", models.NormalizeTags(q.Regions))
	}
	if len(q.Categories) > 0 {
		tx = tx.Where("category IN ?", models.NormalizeTags(q.Categories))
	}
	if q.BBox != nil {
		tx = q.BBox.scope(tx, "location_lat", "location_lng")
	}
	return anyTerm(tx, q.Terms, "title", "description")
}

// QueryJobs returns a page of matching jobs, newest first.
func (r *Repository) QueryJobs(ctx context.Context, q JobQuery) ([]models.Job, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	tx := q.scope(db.Model(&models.Job{}))
	// Skills live in a JSON column and are filtered after the fetch, so
	// paging is only pushed down when there is nothing left to filter.
	filtered := len(q.Skills) > 0
	if !filtered {
		if q.Offset > 0 {
			tx = tx.Offset(q.Offset)
		}
		if q.Limit > 0 {
			tx = tx.Limit(q.Limit)
		}
	}
	var jobs []models.Job
	if err := tx.Order("created_at DESC").Order("id").Find(&jobs).Error; err != nil {
		return nil, translate(err)
	}
	if !filtered {
		return jobs, nil
	}
	jobs = filterByTags(jobs, q.Skills, func(j *models.Job) []string { return j.Skills })
	return truncate(skip(jobs, q.Offset), q.Limit), nil
}

// CountJobs returns how many jobs match q, ignoring its paging.
func (r *Repository) CountJobs(ctx context.Context, q JobQuery) (int64, error) {
	q.Offset, q.Limit = 0, 0
	if len(q.Skills) > 0 {
		jobs, err := r.QueryJobs(ctx, q)
		if err != nil {
			return 0, err
		}
		return int64(len(jobs)), nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var n int64
	if err := q.scope(db.Model(&models.Job{})).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// ScanVisibleJobs streams every publicly visible job in batches.
func (r *Repository) ScanVisibleJobs(ctx context.Context, now time.Time, batchSize int, fn func([]models.Job) error) error {
	var batch []models.Job
	err := r.db.WithContext(ctx).Scopes(visibleAt(now)).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
	return translate(err)
}

func visibleAt(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ? AND active = ? AND expires_at > ?", models.JobApproved, true, now.UTC())
	}
}

func jobVersion(j *models.Job) *int64 { return &j.Version }
