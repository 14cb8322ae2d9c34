package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/harvest/internal/marketplace/db"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one creation in a recipe. It must only use the transactional
// repository it is given.
type Step struct {
	Name string
	Run  func(ctx context.Context, tx *db.Repository) error
}

// Recipe is an ordered list of steps committed as one unit. Recipes with an
// IdempotencyKey run at most once per key.
type Recipe struct {
	Name           string
	IdempotencyKey string
	Steps          []Step
}

// Composer runs recipes in a single store transaction.
type Composer struct {
	repo     Repository
	indexer  *Indexer
	producer EventProducer
	logger   *zap.Logger
}

func NewComposer(repo Repository, indexer *Indexer, producer EventProducer, logger *zap.Logger) *Composer {
	return &Composer{
		repo:     repo,
		indexer:  indexer,
		producer: producer,
		logger:   logger.Named("composer"),
	}
}

// Execute commits every step of r or none of them. Any failure is reported
// as a single *errors.RecipeError naming the failed step.
func (c *Composer) Execute(ctx context.Context, r Recipe) error {
	err := c.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if r.IdempotencyKey != "" {
			if err := tx.ClaimRecipeKey(ctx, r.IdempotencyKey, r.Name); err != nil {
				return &e.RecipeError{Recipe: r.Name, Step: "claim_key", Err: err}
			}
		}
		for _, step := range r.Steps {
			if err := ctx.Err(); err != nil {
				return &e.RecipeError{Recipe: r.Name, Step: step.Name, Err: err}
			}
			if err := step.Run(ctx, tx); err != nil {
				return &e.RecipeError{Recipe: r.Name, Step: step.Name, Err: err}
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var recipeErr *e.RecipeError
	if !errors.As(err, &recipeErr) {
		err = &e.RecipeError{Recipe: r.Name, Step: "commit", Err: err}
	}
	c.logger.Warn("Recipe rolled back", zap.String("recipe", r.Name), zap.Error(err))
	return err
}

// OrganizationInput holds the caller-supplied organization fields.
type OrganizationInput struct {
	Name         string
	Location     models.Point
	Regions      []string
	ManagerIDs   []uuid.UUID
	Testimonials []models.Testimonial
}

// DetailsInput holds the caller-supplied organization details.
type DetailsInput struct {
	About          string
	Website        string
	ContactEmail   string
	Phone          string
	FoundedYear    int
	Certifications []string
}

// MembershipInput links an account to the new organization. A nil account
// means the acting account.
type MembershipInput struct {
	AccountID uuid.UUID
	Role      models.MembershipRole
}

type OrganizationWithJobInput struct {
	Organization   OrganizationInput
	Details        DetailsInput
	Membership     MembershipInput
	Job            models.JobFields
	IdempotencyKey string
}

type OrganizationWithJob struct {
	Organization *models.Organization        `json:"organization"`
	Details      *models.OrganizationDetails `json:"details"`
	Membership   *models.Membership          `json:"membership"`
	Job          *models.Job                 `json:"job"`
}

const recipeOrganizationWithJob = "create_organization_with_job"

// CreateOrganizationWithJob creates an organization, its details, a
// membership link and a first job atomically. The acting employer owns the
// organization.
func (c *Composer) CreateOrganizationWithJob(ctx context.Context, actor models.Actor, in OrganizationWithJobInput) (*OrganizationWithJob, error) {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return nil, err
	}
	member := in.Membership
	if member.AccountID == uuid.Nil {
		member.AccountID = actor.AccountID
	}
	if member.Role == "" {
		member.Role = models.MembershipOwner
	}

	out := &OrganizationWithJob{
		Organization: &models.Organization{
			Name:         in.Organization.Name,
			Location:     in.Organization.Location,
			Regions:      in.Organization.Regions,
			OwnerID:      actor.AccountID,
			ManagerIDs:   in.Organization.ManagerIDs,
			Testimonials: in.Organization.Testimonials,
		},
	}
	recipe := Recipe{
		Name:           recipeOrganizationWithJob,
		IdempotencyKey: in.IdempotencyKey,
		Steps: []Step{
			{Name: "organization", Run: func(ctx context.Context, tx *db.Repository) error {
				return tx.CreateOrganization(ctx, out.Organization)
			}},
			{Name: "details", Run: func(ctx context.Context, tx *db.Repository) error {
				out.Details = &models.OrganizationDetails{
					OrganizationID: out.Organization.ID,
					About:          in.Details.About,
					Website:        in.Details.Website,
					ContactEmail:   in.Details.ContactEmail,
					Phone:          in.Details.Phone,
					FoundedYear:    in.Details.FoundedYear,
					Certifications: in.Details.Certifications,
				}
				return tx.CreateOrganizationDetails(ctx, out.Details)
			}},
			{Name: "membership", Run: func(ctx context.Context, tx *db.Repository) error {
				if _, err := tx.GetAccount(ctx, member.AccountID); err != nil {
					return fmt.Errorf("membership account %s: %w", member.AccountID, err)
				}
				out.Membership = &models.Membership{
					OrganizationID: out.Organization.ID,
					AccountID:      member.AccountID,
					Role:           member.Role,
				}
				return tx.CreateMembership(ctx, out.Membership)
			}},
			{Name: "job", Run: func(ctx context.Context, tx *db.Repository) error {
				out.Job = models.NewJob(out.Organization.ID, actor.AccountID, in.Job)
				return tx.CreateJob(ctx, out.Job)
			}},
		},
	}
	if err := c.Execute(ctx, recipe); err != nil {
		return nil, err
	}

	c.indexer.Organization(ctx, out.Organization)
	c.indexer.Job(ctx, out.Job)
	c.producer.Produce(events.Event{Type: events.OrganizationCreated, Kind: events.KindOrganization, ID: out.Organization.ID})
	c.producer.Produce(events.Event{
		Type: events.JobCreated, Kind: events.KindJob, ID: out.Job.ID, Status: string(out.Job.Status),
	})
	c.logger.Info("Organization created with job",
		zap.String("organization_id", out.Organization.ID.String()),
		zap.String("job_id", out.Job.ID.String()),
	)
	return out, nil
}
