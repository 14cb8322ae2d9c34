package db

import (
	"context"
	"fmt"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

// PurgeReport lists what a purge removed.
type PurgeReport struct {
	Accounts      []uuid.UUID `json:"accounts"`
	Profiles      []uuid.UUID `json:"profiles"`
	Organizations []uuid.UUID `json:"organizations"`
	Jobs          []uuid.UUID `json:"jobs"`
	Applications  []uuid.UUID `json:"applications"`
	Messages      int64       `json:"messages"`
}

// PurgeOrganization removes an organization and everything that references
// it, in one transaction.
func (r *Repository) PurgeOrganization(ctx context.Context, id uuid.UUID) (*PurgeReport, error) {
	report := &PurgeReport{}
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		return tx.purgeOrganization(ctx, id, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// PurgeAccount removes an account, the organizations it owns and everything
// that references either.
func (r *Repository) PurgeAccount(ctx context.Context, id uuid.UUID) (*PurgeReport, error) {
	report := &PurgeReport{}
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		db := tx.db.WithContext(ctx)

		var owned []uuid.UUID
		if err := db.Model(&models.Organization{}).Where("owner_id = ?", id).Pluck("id", &owned).Error; err != nil {
			return translate(err)
		}
		for _, orgID := range owned {
			if err := tx.purgeOrganization(ctx, orgID, report); err != nil {
				return err
			}
		}

		var jobIDs []uuid.UUID
		if err := db.Model(&models.Job{}).Where("created_by = ?", id).Pluck("id", &jobIDs).Error; err != nil {
			return translate(err)
		}
		if err := tx.purgeJobs(ctx, jobIDs, report); err != nil {
			return err
		}

		var appIDs []uuid.UUID
		if err := db.Model(&models.Application{}).Where("applicant_id = ?", id).Pluck("id", &appIDs).Error; err != nil {
			return translate(err)
		}
		if err := tx.purgeApplications(ctx, appIDs, report); err != nil {
			return err
		}

		res := db.Where("sender_id = ? OR recipient_id = ?", id, id).Delete(&models.Message{})
		if res.Error != nil {
			return translate(res.Error)
		}
		report.Messages += res.RowsAffected

		if err := tx.dropManager(ctx, id); err != nil {
			return err
		}
		if err := db.Where("account_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return translate(err)
		}

		var profileIDs []uuid.UUID
		if err := db.Model(&models.Profile{}).Where("account_id = ?", id).Pluck("id", &profileIDs).Error; err != nil {
			return translate(err)
		}
		if err := db.Where("account_id = ?", id).Delete(&models.Profile{}).Error; err != nil {
			return translate(err)
		}
		report.Profiles = append(report.Profiles, profileIDs...)

		if err := db.Delete(&models.Account{}, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		report.Accounts = append(report.Accounts, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Repository) purgeOrganization(ctx context.Context, id uuid.UUID, report *PurgeReport) error {
	db := r.db.WithContext(ctx)
	if _, err := r.GetOrganization(ctx, id); err != nil {
		return fmt.Errorf("organization %s: %w", id, err)
	}

	var jobIDs []uuid.UUID
	if err := db.Model(&models.Job{}).Where("organization_id = ?", id).Pluck("id", &jobIDs).Error; err != nil {
		return translate(err)
	}
	if err := r.purgeJobs(ctx, jobIDs, report); err != nil {
		return err
	}

	res := db.Where("organization_id = ?", id).Delete(&models.Message{})
	if res.Error != nil {
		return translate(res.Error)
	}
	report.Messages += res.RowsAffected

	for _, model := range []any{&models.Membership{}, &models.OrganizationDetails{}} {
		if err := db.Where("organization_id = ?", id).Delete(model).Error; err != nil {
			return translate(err)
		}
	}
	if err := db.Delete(&models.Organization{}, "id = ?", id).Error; err != nil {
		return translate(err)
	}
	report.Organizations = append(report.Organizations, id)
	return nil
}

func (r *Repository) purgeJobs(ctx context.Context, jobIDs []uuid.UUID, report *PurgeReport) error {
	if len(jobIDs) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	var appIDs []uuid.UUID
	if err := db.Model(&models.Application{}).Where("job_id IN ?", jobIDs).Pluck("id", &appIDs).Error; err != nil {
		return translate(err)
	}
	if err := r.purgeApplications(ctx, appIDs, report); err != nil {
		return err
	}
	res := db.Where("job_id IN ?", jobIDs).Delete(&models.Message{})
	if res.Error != nil {
		return translate(res.Error)
	}
	report.Messages += res.RowsAffected
	if err := db.Where("id IN ?", jobIDs).Delete(&models.Job{}).Error; err != nil {
		return translate(err)
	}
	report.Jobs = append(report.Jobs, jobIDs...)
	return nil
}

func (r *Repository) purgeApplications(ctx context.Context, appIDs []uuid.UUID, report *PurgeReport) error {
	if len(appIDs) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	res := db.Where("application_id IN ?", appIDs).Delete(&models.Message{})
	if res.Error != nil {
		return translate(res.Error)
	}
	report.Messages += res.RowsAffected
	if err := db.Where("id IN ?", appIDs).Delete(&models.Application{}).Error; err != nil {
		return translate(err)
	}
	report.Applications = append(report.Applications, appIDs...)
	return nil
}

// dropManager removes accountID from every organization's manager list.
func (r *Repository) dropManager(ctx context.Context, accountID uuid.UUID) error {
	var orgs []models.Organization
	err := r.db.WithContext(ctx).
		Where("CAST(manager_ids AS TEXT) LIKE ?", "%"+accountID.String()+"%").
		Find(&orgs).Error
	if err != nil {
		return translate(err)
	}
	for i := range orgs {
		org := &orgs[i]
		kept := org.ManagerIDs[:0]
		for _, m := range org.ManagerIDs {
			if m != accountID {
				kept = append(kept, m)
			}
		}
		org.ManagerIDs = kept
		prev := org.Version
		org.Version++
		if err := r.saveVersioned(ctx, org, prev); err != nil {
			return err
		}
	}
	return nil
}
