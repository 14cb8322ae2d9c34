package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobService owns job lifecycle: creation for existing organizations,
// content edits and the moderation state machine.
type JobService struct {
	repo     Repository
	indexer  *Indexer
	producer EventProducer
	now      func() time.Time
	logger   *zap.Logger
}

func NewJobService(repo Repository, indexer *Indexer, producer EventProducer, logger *zap.Logger) *JobService {
	return &JobService{
		repo:     repo,
		indexer:  indexer,
		producer: producer,
		now:      utcNow,
		logger:   logger.Named("job_service"),
	}
}

// CreateJob adds a job to an organization the actor manages.
func (s *JobService) CreateJob(ctx context.Context, actor models.Actor, orgID uuid.UUID, fields models.JobFields) (*models.Job, error) {
	if _, err := authorizeOrganization(ctx, s.repo, actor, orgID); err != nil {
		return nil, err
	}
	job := models.NewJob(orgID, actor.AccountID, fields)
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.committed(ctx, events.JobCreated, job)
	return job, nil
}

// GetJob returns a job. Jobs outside the public set are only visible to
// admins and to the owning organization's managers; others get ErrNotFound.
func (s *JobService) GetJob(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Job, error) {
	job, err := retry(ctx, func() (*models.Job, error) { return s.repo.GetJob(ctx, id) })
	if err != nil {
		return nil, err
	}
	if job.Visible(s.now()) {
		return job, nil
	}
	if _, err := authorizeOrganization(ctx, s.repo, actor, job.OrganizationID); err != nil {
		if errors.Is(err, e.ErrForbidden) || errors.Is(err, e.ErrUnauthenticated) {
			return nil, e.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateJob edits job content. Moderation status is not editable here.
func (s *JobService) UpdateJob(ctx context.Context, actor models.Actor, update *models.JobUpdate) (*models.Job, error) {
	if update.ID == uuid.Nil {
		return nil, e.Invalid("id", "is required")
	}
	if err := s.authorizeJob(ctx, actor, update.ID); err != nil {
		return nil, err
	}
	job, err := s.repo.UpdateJob(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	s.committed(ctx, events.JobUpdated, job)
	return job, nil
}

// SetJobActive opens or closes a posting.
func (s *JobService) SetJobActive(ctx context.Context, actor models.Actor, id uuid.UUID, active bool) (*models.Job, error) {
	return s.UpdateJob(ctx, actor, &models.JobUpdate{ID: id, Active: &active})
}

// SubmitJobForReview moves a draft to pending_review. Submitting a job that
// is already pending is a no-op.
func (s *JobService) SubmitJobForReview(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Job, error) {
	if err := s.authorizeJob(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, func(j *models.Job) (bool, error) {
		switch j.Status {
		case models.JobPendingReview:
			return false, nil
		case models.JobDraft:
			j.Status = models.JobPendingReview
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot submit a %s job for review", e.ErrInvalidTransition, j.Status)
	})
}

// TransitionJobStatus is the administrator's moderation decision. Only
// approved and rejected are valid targets; a job must have been submitted
// for review first. Re-applying the current status is a successful no-op,
// and approved and rejected may be swapped at any time.
func (s *JobService) TransitionJobStatus(ctx context.Context, id uuid.UUID, target models.JobStatus, actor models.Actor) (*models.Job, error) {
	if target != models.JobApproved && target != models.JobRejected {
		return nil, fmt.Errorf("%w: %q is not a moderation decision", e.ErrInvalidTransition, target)
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: moderation requires the admin role", e.ErrForbidden)
	}
	return s.transition(ctx, id, func(j *models.Job) (bool, error) {
		switch j.Status {
		case target:
			return false, nil
		case models.JobDraft:
			return false, fmt.Errorf("%w: draft jobs must be submitted for review first", e.ErrInvalidTransition)
		}
		j.Status = target
		return true, nil
	})
}

// transition applies a status change under the store's version check,
// retrying timeouts. The decision is re-evaluated on each attempt.
func (s *JobService) transition(ctx context.Context, id uuid.UUID, decide func(*models.Job) (bool, error)) (*models.Job, error) {
	var changed bool
	var from models.JobStatus
	job, err := retry(ctx, func() (*models.Job, error) {
		return s.repo.MutateJob(ctx, id, nil, func(j *models.Job) (bool, error) {
			from = j.Status
			ok, err := decide(j)
			changed = ok
			return ok, err
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("Job status changed",
			zap.String("job_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(job.Status)),
		)
		s.committed(ctx, events.JobStatusChanged, job)
	}
	return job, nil
}

func (s *JobService) authorizeJob(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	_, err = authorizeOrganization(ctx, s.repo, actor, job.OrganizationID)
	return err
}

func (s *JobService) committed(ctx context.Context, t events.EventType, job *models.Job) {
	s.indexer.Job(ctx, job)
	s.producer.Produce(events.Event{Type: t, Kind: events.KindJob, ID: job.ID, Status: string(job.Status)})
}
