package controller

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProfileService struct {
	repo     Repository
	indexer  *Indexer
	producer EventProducer
	logger   *zap.Logger
}

func NewProfileService(repo Repository, indexer *Indexer, producer EventProducer, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		repo:     repo,
		indexer:  indexer,
		producer: producer,
		logger:   logger.Named("profile_service"),
	}
}

// UpsertProfile creates the actor's profile or updates it in place.
func (s *ProfileService) UpsertProfile(ctx context.Context, actor models.Actor, fields models.ProfileFields) (*models.Profile, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	profile, err := s.upsert(ctx, actor.AccountID, fields)
	if errors.Is(err, e.ErrDuplicateKey) {
		// Lost a race with a concurrent create; the profile exists now.
		profile, err = s.upsert(ctx, actor.AccountID, fields)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	s.indexer.Profile(ctx, profile)
	s.producer.Produce(events.Event{Type: events.ProfileUpserted, Kind: events.KindProfile, ID: profile.ID})
	return profile, nil
}

func (s *ProfileService) upsert(ctx context.Context, accountID uuid.UUID, fields models.ProfileFields) (*models.Profile, error) {
	existing, err := s.repo.GetProfileByAccount(ctx, accountID)
	if errors.Is(err, e.ErrNotFound) {
		profile := &models.Profile{
			AccountID: accountID,
			Headline:  fields.Headline,
			Summary:   fields.Summary,
			Skills:    fields.Skills,
			Location:  fields.Location,
			Links:     fields.Links,
		}
		if err := s.repo.CreateProfile(ctx, profile); err != nil {
			return nil, err
		}
		return profile, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateProfile(ctx, existing.ID, fields)
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID uuid.UUID) (*models.Profile, error) {
	return retry(ctx, func() (*models.Profile, error) {
		return s.repo.GetProfileByAccount(ctx, accountID)
	})
}
