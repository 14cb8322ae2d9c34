package db

import (
	"context"
	"errors"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

// CreateAccount inserts a new account. The unique index on the folded email
// is the only uniqueness check, so concurrent creations admit one winner.
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	newID(&account.ID)
	account.Version = 1
	if err := prepare(account); err != nil {
		return err
	}
	if err := r.create(ctx, account); err != nil {
		if errors.Is(err, e.ErrDuplicateKey) {
			return e.Duplicate("email", account.Email)
		}
		return err
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.first(ctx, &account, "id = ?", id); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByEmail looks an account up case-insensitively.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.first(ctx, &account, "email_key = ?", models.NormalizeEmail(email)); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, update *models.AccountUpdate) (*models.Account, error) {
	account, err := mutate(ctx, r, update.ID, update.ExpectedVersion, accountVersion,
		func(a *models.Account) (bool, error) {
			if update.Email != nil {
				a.Email = *update.Email
			}
			if update.PasswordHash != nil {
				a.PasswordHash = *update.PasswordHash
			}
			if update.Roles != nil {
				a.Roles = *update.Roles
			}
			if update.Active != nil {
				a.Active = *update.Active
			}
			return true, nil
		})
	if errors.Is(err, e.ErrDuplicateKey) && update.Email != nil {
		return nil, e.Duplicate("email", *update.Email)
	}
	return account, err
}

func accountVersion(a *models.Account) *int64 { return &a.Version }
