package db

import (
	"context"
	"errors"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	newID(&profile.ID)
	profile.Version = 1
	if err := prepare(profile); err != nil {
		return err
	}
	ok, err := r.exists(ctx, &models.Account{}, "id = ?", profile.AccountID)
	if err != nil {
		return err
	}
	if !ok {
		return e.Invalid("account_id", "references an unknown account")
	}
	if err := r.create(ctx, profile); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return e.Duplicate("account_id", profile.AccountID.String())
		}
		return err
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.first(ctx, &profile, "id = ?", id); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.first(ctx, &profile, "account_id = ?", accountID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfiles returns the profiles with the given ids. Missing ids are skipped.
func (r *Repository) GetProfiles(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var profiles []models.Profile
	err := db.Where("id IN ?", ids).Find(&profiles).Error
	return profiles, translate(err)
}

// UpdateProfile replaces the editable fields of the profile with id.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fields models.ProfileFields) (*models.Profile, error) {
	return mutate(ctx, r, id, fields.ExpectedVersion, profileVersion,
		func(p *models.Profile) (bool, error) {
			p.Headline = fields.Headline
			p.Summary = fields.Summary
			p.Skills = fields.Skills
			p.Location = fields.Location
			p.Links = fields.Links
			return true, nil
		})
}

// ProfileQuery filters profiles for the store-backed candidate search.
type ProfileQuery struct {
	BBox   *BBox
	Skills []string
	Terms  []string
	Limit  int
}

func (r *Repository) QueryProfiles(ctx context.Context, q ProfileQuery) ([]models.Profile, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	tx := db.Model(&models.Profile{})
	if q.BBox != nil {
		tx = q.BBox.scope(tx, "location_lat", "location_lng")
	}
	tx = anyTerm(tx, q.Terms, "headline", "summary")
	if q.Limit > 0 && len(q.Skills) == 0 {
		tx = tx.Limit(q.Limit)
	}
	var profiles []models.Profile
	if err := tx.Order("created_at DESC").Order("id").Find(&profiles).Error; err != nil {
		return nil, translate(err)
	}
	profiles = filterByTags(profiles, q.Skills, func(p *models.Profile) []string { return p.Skills })
	return truncate(profiles, q.Limit), nil
}

// ScanProfiles streams every profile in batches.
func (r *Repository) ScanProfiles(ctx context.Context, batchSize int, fn func([]models.Profile) error) error {
	var batch []models.Profile
	err := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
	return translate(err)
}

func profileVersion(p *models.Profile) *int64 { return &p.Version }
