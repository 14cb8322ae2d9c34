package controller

import (
	"context"
	"fmt"

	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminService exposes destructive maintenance operations.
type AdminService struct {
	repo     Repository
	indexer  *Indexer
	producer EventProducer
	logger   *zap.Logger
}

func NewAdminService(repo Repository, indexer *Indexer, producer EventProducer, logger *zap.Logger) *AdminService {
	return &AdminService{
		repo:     repo,
		indexer:  indexer,
		producer: producer,
		logger:   logger.Named("admin_service"),
	}
}

// PurgeOrganization deletes an organization with its details, memberships,
// jobs and their applications and messages.
func (s *AdminService) PurgeOrganization(ctx context.Context, actor models.Actor, id uuid.UUID) (*db.PurgeReport, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	report, err := s.repo.PurgeOrganization(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to purge organization %s: %w", id, err)
	}
	s.purged(report)
	s.logger.Info("Organization purged",
		zap.String("organization_id", id.String()),
		zap.Int("jobs", len(report.Jobs)),
		zap.Int("applications", len(report.Applications)))
	return report, nil
}

// PurgeAccount deletes an account and everything it owns, including the
// organizations it is the owner of.
func (s *AdminService) PurgeAccount(ctx context.Context, actor models.Actor, id uuid.UUID) (*db.PurgeReport, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	report, err := s.repo.PurgeAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to purge account %s: %w", id, err)
	}
	s.purged(report)
	s.logger.Info("Account purged",
		zap.String("account_id", id.String()),
		zap.Int("organizations", len(report.Organizations)),
		zap.Int("jobs", len(report.Jobs)))
	return report, nil
}

func (s *AdminService) purged(r *db.PurgeReport) {
	s.indexer.Remove(index.KindJob, r.Jobs...)
	s.indexer.Remove(index.KindProfile, r.Profiles...)
	s.indexer.Remove(index.KindOrganization, r.Organizations...)

	emit := func(kind string, ids []uuid.UUID) {
		for _, id := range ids {
			s.producer.Produce(events.Event{Type: events.EntityPurged, Kind: kind, ID: id})
		}
	}
	emit(events.KindAccount, r.Accounts)
	emit(events.KindProfile, r.Profiles)
	emit(events.KindOrganization, r.Organizations)
	emit(events.KindJob, r.Jobs)
	emit(events.KindApplication, r.Applications)
}
