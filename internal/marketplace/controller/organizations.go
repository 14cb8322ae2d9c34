package controller

import (
	"context"
	"fmt"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"go.uber.org/zap"
)

// OrganizationService creates organizations through the composer and edits
// them in place afterwards.
type OrganizationService struct {
	repo     Repository
	composer *Composer
	indexer  *Indexer
	producer EventProducer
	logger   *zap.Logger
}

func NewOrganizationService(repo Repository, composer *Composer, indexer *Indexer, producer EventProducer, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{
		repo:     repo,
		composer: composer,
		indexer:  indexer,
		producer: producer,
		logger:   logger.Named("organization_service"),
	}
}

func (s *OrganizationService) CreateOrganizationWithJob(ctx context.Context, actor models.Actor, in OrganizationWithJobInput) (*OrganizationWithJob, error) {
	return s.composer.CreateOrganizationWithJob(ctx, actor, in)
}

// UpdateOrganization applies a partial update. Only the owner or an
// administrator may change an organization.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, actor models.Actor, update *models.OrganizationUpdate) (*models.Organization, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	org, err := retry(ctx, func() (*models.Organization, error) { return s.repo.GetOrganization(ctx, update.ID) })
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", update.ID, err)
	}
	if !actor.IsAdmin() && org.OwnerID != actor.AccountID {
		return nil, fmt.Errorf("%w: only the owner may update organization %s", e.ErrForbidden, update.ID)
	}

	org, err = s.repo.UpdateOrganization(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	s.logger.Info("Organization updated",
		zap.String("organization_id", org.ID.String()), zap.Int64("version", org.Version))
	s.indexer.Organization(ctx, org)
	s.producer.Produce(events.Event{Type: events.OrganizationUpdated, Kind: events.KindOrganization, ID: org.ID})
	return org, nil
}
