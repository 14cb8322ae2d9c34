package seed

import (
	"context"
	"testing"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/db/dbtest"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newServices(t *testing.T) (*db.Repository, Services) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := dbtest.NewRepository(t)
	idx := index.NewManager(logger)
	indexer := controller.NewIndexer(idx, index.NewReconciler(repo, idx, index.ReconcilerConfig{}, logger), logger)
	producer := events.Discard{}
	return repo, Services{
		Store:        repo,
		Accounts:     controller.NewAccountService(repo, producer, logger),
		Profiles:     controller.NewProfileService(repo, indexer, producer, logger),
		Composer:     controller.NewComposer(repo, indexer, producer, logger),
		Jobs:         controller.NewJobService(repo, indexer, producer, logger),
		Applications: controller.NewApplicationService(repo, producer, logger),
		Messages:     controller.NewMessageService(repo, producer, logger),
	}
}

func assertCounts(t *testing.T, repo *db.Repository) {
	t.Helper()
	want := map[db.Counted]int64{
		db.CountAccounts:      5,
		db.CountOrganizations: 2,
		db.CountJobs:          3,
		db.CountApplications:  2,
		db.CountMessages:      2,
	}
	for what, n := range want {
		got, err := repo.Count(context.Background(), what)
		require.NoError(t, err)
		assert.Equal(t, n, got, string(what))
	}
}

func TestRunTwice(t *testing.T) {
	repo, svc := newServices(t)
	ctx := context.Background()

	res, err := Run(ctx, svc, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, models.JobApproved, res.Jobs[0].Status)
	assert.Equal(t, models.JobPendingReview, res.Jobs[2].Status)
	assertCounts(t, repo)

	_, err = Run(ctx, svc, "", zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrAlreadySeeded)
	assertCounts(t, repo)
}

func TestRunResumesInterruptedSeed(t *testing.T) {
	repo, svc := newServices(t)
	ctx := context.Background()

	// State left by a run that stopped after the first organization.
	_, err := svc.Accounts.CreateAccount(ctx, AdminEmail, DefaultPassword, []models.Role{models.RoleAdmin})
	require.NoError(t, err)
	grower, err := svc.Accounts.CreateAccount(ctx, "grower@sunfield.example", DefaultPassword, []models.Role{models.RoleEmployer})
	require.NoError(t, err)
	out, err := svc.Composer.CreateOrganizationWithJob(ctx, models.Actor{AccountID: grower.ID, Roles: grower.Roles},
		controller.OrganizationWithJobInput{
			Organization: controller.OrganizationInput{Name: "Sunfield Farms", Regions: []string{"Central Valley"}},
			Job: models.JobFields{
				Title:           "Tractor operator",
				Description:     "Operate and maintain tractors for spring planting.",
				EmploymentType:  models.Seasonal,
				SalaryMin:       20,
				SalaryMax:       26,
				Currency:        "USD",
				ExpiresAt:       time.Now().Add(24 * time.Hour),
				SubmitForReview: true,
			},
			IdempotencyKey: "seed-sunfield-farms",
		})
	require.NoError(t, err)

	res, err := Run(ctx, svc, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, grower.ID, res.Employers[0].AccountID)
	assert.Equal(t, out.Organization.ID, res.Organizations[0].ID)
	assert.Equal(t, out.Job.ID, res.Jobs[0].ID)
	assert.Equal(t, models.JobApproved, res.Jobs[0].Status)
	assertCounts(t, repo)

	_, err = Run(ctx, svc, "", zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}
