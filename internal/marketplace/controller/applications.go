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

// pipeline ranks the forward states of an application.
var pipeline = map[models.ApplicationStatus]int{
	models.ApplicationSubmitted: 0,
	models.ApplicationReview:    1,
	models.ApplicationInterview: 2,
	models.ApplicationOffer:     3,
	models.ApplicationHired:     4,
}

// CanTransition reports whether an application may move from one status to
// another. Moves are forward-only and may skip stages; rejected is reachable
// from any open status; hired only from offer; terminal statuses never move.
func CanTransition(from, to models.ApplicationStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == models.ApplicationRejected {
		return true
	}
	if to == models.ApplicationHired {
		return from == models.ApplicationOffer
	}
	toRank, ok := pipeline[to]
	if !ok {
		return false
	}
	return toRank > pipeline[from]
}

type ApplicationService struct {
	repo     Repository
	producer EventProducer
	now      func() time.Time
	logger   *zap.Logger
}

func NewApplicationService(repo Repository, producer EventProducer, logger *zap.Logger) *ApplicationService {
	return &ApplicationService{
		repo:     repo,
		producer: producer,
		now:      utcNow,
		logger:   logger.Named("application_service"),
	}
}

// SubmitApplication applies applicantID to a publicly visible job. Jobs that
// are not visible are reported as not found. A second application to the
// same job fails with ErrDuplicateApplication.
func (s *ApplicationService) SubmitApplication(ctx context.Context, jobID, applicantID uuid.UUID, coverLetter, resumeRef string) (*models.Application, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	if !job.Visible(s.now()) {
		return nil, fmt.Errorf("job %s: %w", jobID, e.ErrNotFound)
	}
	if _, err := s.repo.GetAccount(ctx, applicantID); err != nil {
		return nil, fmt.Errorf("applicant %s: %w", applicantID, err)
	}

	app := &models.Application{
		JobID:       jobID,
		ApplicantID: applicantID,
		CoverLetter: coverLetter,
		ResumeRef:   resumeRef,
		Status:      models.ApplicationSubmitted,
	}
	profile, err := s.repo.GetProfileByAccount(ctx, applicantID)
	switch {
	case err == nil:
		app.Profile = profile.Snapshot()
	case !errors.Is(err, e.ErrNotFound):
		return nil, fmt.Errorf("failed to load applicant profile: %w", err)
	}

	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.producer.Produce(events.Event{
		Type: events.ApplicationSubmitted, Kind: events.KindApplication, ID: app.ID, Status: string(app.Status),
	})
	return app, nil
}

// TransitionApplication moves an application through the hiring pipeline.
// Admins and managers of the job's organization may do this. Re-applying
// the current status is a no-op.
func (s *ApplicationService) TransitionApplication(ctx context.Context, id uuid.UUID, target models.ApplicationStatus, actor models.Actor) (*models.Application, error) {
	if _, ok := pipeline[target]; !ok && target != models.ApplicationRejected {
		return nil, fmt.Errorf("%w: unknown application status %q", e.ErrInvalidTransition, target)
	}
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := s.repo.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", app.JobID, err)
	}
	if _, err := authorizeOrganization(ctx, s.repo, actor, job.OrganizationID); err != nil {
		return nil, err
	}

	var changed bool
	app, err = retry(ctx, func() (*models.Application, error) {
		return s.repo.MutateApplication(ctx, id, nil, func(a *models.Application) (bool, error) {
			changed = false
			if a.Status == target {
				return false, nil
			}
			if !CanTransition(a.Status, target) {
				return false, fmt.Errorf("%w: %s -> %s", e.ErrInvalidTransition, a.Status, target)
			}
			a.Status = target
			changed = true
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.producer.Produce(events.Event{
			Type: events.ApplicationStatusChanged, Kind: events.KindApplication, ID: app.ID, Status: string(app.Status),
		})
	}
	return app, nil
}

// ListJobApplications returns the applications of a job to its managers.
func (s *ApplicationService) ListJobApplications(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Application, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeOrganization(ctx, s.repo, actor, job.OrganizationID); err != nil {
		return nil, err
	}
	return s.repo.ListApplicationsByJob(ctx, jobID)
}

// ListMyApplications returns the actor's own applications.
func (s *ApplicationService) ListMyApplications(ctx context.Context, actor models.Actor) ([]models.Application, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	return s.repo.ListApplicationsByApplicant(ctx, actor.AccountID)
}
