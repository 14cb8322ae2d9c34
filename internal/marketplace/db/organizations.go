package db

import (
	"context"
	"errors"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOrganization inserts an organization after deriving its slug. The
// name and slug are checked first so the error names the violated key; the
// unique indexes decide races between concurrent writers.
func (r *Repository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	newID(&org.ID)
	org.Version = 1
	if err := prepare(org); err != nil {
		return err
	}
	if org.Slug == "" {
		return e.Invalid("name", "must contain at least one letter or digit")
	}
	if err := r.checkOrganizationKeys(ctx, org); err != nil {
		return err
	}
	if err := r.create(ctx, org); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return e.Duplicate("name", org.Name)
		}
		return err
	}
	return nil
}

func (r *Repository) checkOrganizationKeys(ctx context.Context, org *models.Organization) error {
	taken, err := r.exists(ctx, &models.Organization{}, "name = ? AND id <> ?", org.Name, org.ID)
	if err != nil {
		return err
	}
	if taken {
		return e.Duplicate("name", org.Name)
	}
	taken, err = r.exists(ctx, &models.Organization{}, "slug = ? AND id <> ?", org.Slug, org.ID)
	if err != nil {
		return err
	}
	if taken {
		return e.Duplicate("slug", org.Slug)
	}
	return nil
}

func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := r.first(ctx, &org, "id = ?", id); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *Repository) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	if err := r.first(ctx, &org, "slug = ?", slug); err != nil {
		return nil, err
	}
	return &org, nil
}

// GetOrganizations returns the organizations with the given ids. Missing ids are skipped.
func (r *Repository) GetOrganizations(ctx context.Context, ids []uuid.UUID) ([]models.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var orgs []models.Organization
	err := db.Where("id IN ?", ids).Find(&orgs).Error
	return orgs, translate(err)
}

// UpdateOrganization applies a partial update. Renaming re-derives the slug.
func (r *Repository) UpdateOrganization(ctx context.Context, update *models.OrganizationUpdate) (*models.Organization, error) {
	var out *models.Organization
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		org, err := mutate(ctx, tx, update.ID, update.ExpectedVersion, organizationVersion,
			func(o *models.Organization) (bool, error) {
				if update.Name != nil {
					o.Name = *update.Name
					o.Normalize()
					if o.Slug == "" {
						return false, e.Invalid("name", "must contain at least one letter or digit")
					}
					if err := tx.checkOrganizationKeys(ctx, o); err != nil {
						return false, err
					}
				}
				if update.Location != nil {
					o.Location = *update.Location
				}
				if update.Regions != nil {
					o.Regions = *update.Regions
				}
				if update.ManagerIDs != nil {
					o.ManagerIDs = *update.ManagerIDs
				}
				if update.Testimonials != nil {
					o.Testimonials = *update.Testimonials
				}
				return true, nil
			})
		out = org
		return err
	})
	if err != nil {
		var dup *e.DuplicateError
		if !errors.As(err, &dup) && errors.Is(err, e.ErrDuplicateKey) && update.Name != nil {
			return nil, e.Duplicate("name", *update.Name)
		}
		return nil, err
	}
	return out, nil
}

func (r *Repository) CreateOrganizationDetails(ctx context.Context, details *models.OrganizationDetails) error {
	newID(&details.ID)
	if err := prepare(details); err != nil {
		return err
	}
	if err := r.create(ctx, details); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return e.Duplicate("organization_id", details.OrganizationID.String())
		}
		return err
	}
	return nil
}

func (r *Repository) GetOrganizationDetails(ctx context.Context, orgID uuid.UUID) (*models.OrganizationDetails, error) {
	var details models.OrganizationDetails
	if err := r.first(ctx, &details, "organization_id = ?", orgID); err != nil {
		return nil, err
	}
	return &details, nil
}

func (r *Repository) CreateMembership(ctx context.Context, m *models.Membership) error {
	newID(&m.ID)
	if err := prepare(m); err != nil {
		return err
	}
	if err := r.create(ctx, m); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return e.Duplicate("membership", m.OrganizationID.String()+"/"+m.AccountID.String())
		}
		return err
	}
	return nil
}

func (r *Repository) ListMemberships(ctx context.Context, orgID uuid.UUID) ([]models.Membership, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var memberships []models.Membership
	err := db.Where("organization_id = ?", orgID).Order("created_at").Find(&memberships).Error
	return memberships, translate(err)
}

func (r *Repository) IsMember(ctx context.Context, orgID, accountID uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Membership{}, "organization_id = ? AND account_id = ?", orgID, accountID)
}

// ScanOrganizations streams every organization in batches.
func (r *Repository) ScanOrganizations(ctx context.Context, batchSize int, fn func([]models.Organization) error) error {
	var batch []models.Organization
	err := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
	return translate(err)
}

func organizationVersion(o *models.Organization) *int64 { return &o.Version }
