package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/harvest/internal/marketplace/auth"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService creates accounts and verifies credentials.
type AccountService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

func NewAccountService(repo Repository, producer EventProducer, logger *zap.Logger) *AccountService {
	return &AccountService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("account_service"),
	}
}

// CreateAccount registers an active account. Two accounts never share an
// email, compared case-insensitively.
func (s *AccountService) CreateAccount(ctx context.Context, email, credential string, roles []models.Role) (*models.Account, error) {
	hash, err := auth.HashPassword(credential)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		Active:       true,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.Info("Account created",
		zap.String("account_id", account.ID.String()),
		zap.Any("roles", roles),
	)
	s.producer.Produce(events.Event{Type: events.AccountCreated, Kind: events.KindAccount, ID: account.ID})
	return account, nil
}

// Verify returns the active account matching email and credential. Unknown
// emails, wrong credentials and inactive accounts all fail the same way.
func (s *AccountService) Verify(ctx context.Context, email, credential string) (*models.Account, error) {
	account, err := retry(ctx, func() (*models.Account, error) {
		return s.repo.GetAccountByEmail(ctx, email)
	})
	if errors.Is(err, e.ErrNotFound) {
		return nil, e.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if err := auth.CheckPassword(account.PasswordHash, credential); err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: account is inactive", e.ErrUnauthenticated)
	}
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return retry(ctx, func() (*models.Account, error) {
		return s.repo.GetAccount(ctx, id)
	})
}

// SetActive enables or disables an account. Admin only.
func (s *AccountService) SetActive(ctx context.Context, actor models.Actor, id uuid.UUID, active bool) (*models.Account, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.UpdateAccount(ctx, &models.AccountUpdate{ID: id, Active: &active})
}
