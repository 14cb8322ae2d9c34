package db

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

// CreateApplication inserts an application. A second application for the
// same (job, applicant) pair fails with ErrDuplicateApplication.
func (r *Repository) CreateApplication(ctx context.Context, app *models.Application) error {
	newID(&app.ID)
	app.Version = 1
	if app.Status == "" {
		app.Status = models.ApplicationSubmitted
	}
	if err := prepare(app); err != nil {
		return err
	}
	if err := r.create(ctx, app); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return fmt.Errorf("%w: applicant %s already applied to job %s",
				e.ErrDuplicateApplication, app.ApplicantID, app.JobID)
		}
		return err
	}
	return nil
}

func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.first(ctx, &app, "id = ?", id); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *Repository) MutateApplication(ctx context.Context, id uuid.UUID, expected *int64, fn Mutation[models.Application]) (*models.Application, error) {
	return mutate(ctx, r, id, expected, applicationVersion, fn)
}

func (r *Repository) ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var apps []models.Application
	err := db.Where("job_id = ?", jobID).Order("created_at").Find(&apps).Error
	return apps, translate(err)
}

func (r *Repository) ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var apps []models.Application
	err := db.Where("applicant_id = ?", applicantID).Order("created_at DESC").Find(&apps).Error
	return apps, translate(err)
}

func applicationVersion(a *models.Application) *int64 { return &a.Version }
