// Package controller implements the marketplace service layer: it
// orchestrates entity store operations, enforces who may do what, keeps the
// search index in step with committed writes and emits change events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/harvest/internal/marketplace/db"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

type EventProducer interface {
	Produce(event events.Event)
}

// Repository defines the entity store operations the services rely on.
type Repository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateAccount(ctx context.Context, update *models.AccountUpdate) (*models.Account, error)

	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (*models.Profile, error)
	GetProfiles(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fields models.ProfileFields) (*models.Profile, error)
	QueryProfiles(ctx context.Context, q db.ProfileQuery) ([]models.Profile, error)

	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizations(ctx context.Context, ids []uuid.UUID) ([]models.Organization, error)
	UpdateOrganization(ctx context.Context, update *models.OrganizationUpdate) (*models.Organization, error)
	IsMember(ctx context.Context, orgID, accountID uuid.UUID) (bool, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobs(ctx context.Context, ids []uuid.UUID) ([]models.Job, error)
	UpdateJob(ctx context.Context, update *models.JobUpdate) (*models.Job, error)
	MutateJob(ctx context.Context, id uuid.UUID, expected *int64, fn db.Mutation[models.Job]) (*models.Job, error)
	QueryJobs(ctx context.Context, q db.JobQuery) ([]models.Job, error)
	CountJobs(ctx context.Context, q db.JobQuery) (int64, error)

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	MutateApplication(ctx context.Context, id uuid.UUID, expected *int64, fn db.Mutation[models.Application]) (*models.Application, error)
	ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	MarkMessageRead(ctx context.Context, id uuid.UUID, at time.Time) (*models.Message, error)
	ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Message, error)

	Count(ctx context.Context, what db.Counted) (int64, error)
	CountCreated(ctx context.Context, what db.Counted, from, to time.Time) (int64, error)
	TopJobGroups(ctx context.Context, by db.JobGrouping, limit int) ([]db.GroupCount, error)

	PurgeOrganization(ctx context.Context, id uuid.UUID) (*db.PurgeReport, error)
	PurgeAccount(ctx context.Context, id uuid.UUID) (*db.PurgeReport, error)

	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
}

func utcNow() time.Time { return time.Now().UTC() }

// maxRetries bounds retries of operations that are safe to repeat.
const maxRetries = 3

// retry repeats op while it fails with ErrTimeout.
func retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(50*time.Millisecond)), maxRetries), ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, e.ErrTimeout) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b)
}

// requireRole fails with ErrUnauthenticated for anonymous actors and
// ErrForbidden when the actor holds none of roles.
func requireRole(actor models.Actor, roles ...models.Role) error {
	if actor.Anonymous() {
		return e.ErrUnauthenticated
	}
	if actor.IsAdmin() {
		return nil
	}
	for _, r := range roles {
		if actor.Has(r) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires one of %v", e.ErrForbidden, roles)
}

// authorizeOrganization lets admins, the owner, listed managers and members
// act on behalf of an organization.
func authorizeOrganization(ctx context.Context, repo Repository, actor models.Actor, orgID uuid.UUID) (*models.Organization, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	org, err := repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", orgID, err)
	}
	if actor.IsAdmin() || org.Manages(actor.AccountID) {
		return org, nil
	}
	member, err := repo.IsMember(ctx, orgID, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of organization %s", e.ErrForbidden, orgID)
	}
	return org, nil
}
