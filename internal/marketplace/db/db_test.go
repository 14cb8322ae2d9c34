package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/gartstein/harvest/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// SetupTestDB initializes an in-memory SQLite database for testing.
func SetupTestDB(t *testing.T) *Repository {
	repo, err := Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), 5*time.Second)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createAccount(t *testing.T, repo *Repository, email string, roles ...models.Role) *models.Account {
	t.Helper()
	acc := &models.Account{Email: email, PasswordHash: "hash", Roles: roles, Active: true}
	require.NoError(t, repo.CreateAccount(context.Background(), acc))
	return acc
}

func createOrganization(t *testing.T, repo *Repository, name string, owner uuid.UUID) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: name, OwnerID: owner, Regions: []string{"Valley"}}
	require.NoError(t, repo.CreateOrganization(context.Background(), org))
	return org
}

func jobFields(title string) models.JobFields {
	return models.JobFields{
		Title:          title,
		Description:    "Picking and packing fruit",
		Category:       "Harvest",
		EmploymentType: models.Seasonal,
		Location:       models.Point{Lng: -120.5, Lat: 36.7},
		Region:         "Valley",
		Skills:         []string{"Picking"},
		SalaryMin:      15,
		SalaryMax:      20,
		Currency:       "USD",
		ExpiresAt:      time.Now().Add(30 * 24 * time.Hour),
	}
}

func createJob(t *testing.T, repo *Repository, org *models.Organization, title string, status models.JobStatus) *models.Job {
	t.Helper()
	job := models.NewJob(org.ID, org.OwnerID, jobFields(title))
	job.Status = status
	require.NoError(t, repo.CreateJob(context.Background(), job))
	return job
}

// TestCreateAccount tests the creation of an account record.
func TestCreateAccount(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	acc := createAccount(t, repo, "Grower@Example.com", models.RoleEmployer)
	assert.NotEqual(t, uuid.Nil, acc.ID)
	assert.Equal(t, int64(1), acc.Version)

	retrieved, err := repo.GetAccountByEmail(ctx, "grower@example.COM")
	require.NoError(t, err, "lookup should ignore case")
	assert.Equal(t, acc.ID, retrieved.ID)
	assert.Equal(t, []models.Role{models.RoleEmployer}, []models.Role(retrieved.Roles))
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	repo := SetupTestDB(t)
	createAccount(t, repo, "picker@example.com", models.RoleCandidate)

	err := repo.CreateAccount(context.Background(), &models.Account{
		Email: "PICKER@example.com", PasswordHash: "x", Roles: []models.Role{models.RoleCandidate},
	})
	var dup *e.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Key)
	assert.ErrorIs(t, err, e.ErrDuplicateKey)
}

func TestCreateAccountConcurrentSameEmail(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateAccount(ctx, &models.Account{
				Email: "Same@Example.com", PasswordHash: "x", Roles: []models.Role{models.RoleCandidate},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, e.ErrDuplicateKey)
	}
	assert.Equal(t, 1, wins)
	n, err := repo.Count(ctx, CountAccounts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateAccountValidation(t *testing.T) {
	repo := SetupTestDB(t)

	tests := []struct {
		name    string
		account *models.Account
		field   string
	}{
		{"bad email", &models.Account{Email: "nope", PasswordHash: "x", Roles: []models.Role{models.RoleAdmin}}, "email"},
		{"no roles", &models.Account{Email: "a@b.co", PasswordHash: "x", Roles: []models.Role{}}, "roles"},
		{"unknown role", &models.Account{Email: "a@b.co", PasswordHash: "x", Roles: []models.Role{"owner"}}, "roles[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.CreateAccount(context.Background(), tt.account)
			var verr *e.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// TestGetAccountNotFound verifies error handling when the account does not exist.
func TestGetAccountNotFound(t *testing.T) {
	repo := SetupTestDB(t)
	_, err := repo.GetAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestUpdateAccountVersionCheck(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	acc := createAccount(t, repo, "v@example.com", models.RoleCandidate)

	updated, err := repo.UpdateAccount(ctx, &models.AccountUpdate{
		ID: acc.ID, ExpectedVersion: utils.Ptr(int64(1)), Active: utils.Ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.UpdateAccount(ctx, &models.AccountUpdate{
		ID: acc.ID, ExpectedVersion: utils.Ptr(int64(1)), Active: utils.Ptr(true),
	})
	assert.ErrorIs(t, err, e.ErrConflict)
	assert.True(t, e.Retryable(err))
}

func TestUpdateAccountNotFound(t *testing.T) {
	repo := SetupTestDB(t)
	_, err := repo.UpdateAccount(context.Background(), &models.AccountUpdate{ID: uuid.New(), Active: utils.Ptr(true)})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestProfileOnePerAccount(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	acc := createAccount(t, repo, "c@example.com", models.RoleCandidate)

	p := &models.Profile{AccountID: acc.ID, Headline: "Tractor driver", Skills: []string{"Driving", "driving"}}
	require.NoError(t, repo.CreateProfile(ctx, p))
	assert.Equal(t, []string{"driving"}, []string(p.Skills))

	err := repo.CreateProfile(ctx, &models.Profile{AccountID: acc.ID})
	var dup *e.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "account_id", dup.Key)

	err = repo.CreateProfile(ctx, &models.Profile{AccountID: uuid.New()})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	updated, err := repo.UpdateProfile(ctx, p.ID, models.ProfileFields{Headline: "Irrigation", Skills: []string{"Pumps"}})
	require.NoError(t, err)
	assert.Equal(t, "Irrigation", updated.Headline)
	assert.Equal(t, int64(2), updated.Version)
}

func TestCreateOrganizationDuplicates(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)

	org := createOrganization(t, repo, "Acme Corporation", owner.ID)
	assert.Equal(t, "acme-corporation", org.Slug)

	tests := []struct {
		name string
		key  string
	}{
		{"Acme Corporation", "name"},
		{"acme   corporation!", "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.CreateOrganization(ctx, &models.Organization{Name: tt.name, OwnerID: owner.ID})
			var dup *e.DuplicateError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.key, dup.Key)
		})
	}

	err := repo.CreateOrganization(ctx, &models.Organization{Name: "!!!", OwnerID: owner.ID})
	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestUpdateOrganizationRename(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Sunny Farms", owner.ID)
	createOrganization(t, repo, "Green Acres", owner.ID)

	renamed, err := repo.UpdateOrganization(ctx, &models.OrganizationUpdate{ID: org.ID, Name: utils.Ptr("Sunny Farms Co")})
	require.NoError(t, err)
	assert.Equal(t, "sunny-farms-co", renamed.Slug)

	_, err = repo.UpdateOrganization(ctx, &models.OrganizationUpdate{ID: org.ID, Name: utils.Ptr("Green Acres")})
	assert.ErrorIs(t, err, e.ErrDuplicateKey)

	stored, err := repo.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunny Farms Co", stored.Name)
}

func TestOrganizationTestimonialRating(t *testing.T) {
	repo := SetupTestDB(t)
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)

	err := repo.CreateOrganization(context.Background(), &models.Organization{
		Name:         "Rated",
		OwnerID:      owner.ID,
		Testimonials: []models.Testimonial{{Author: "A", Text: "Great", Rating: 6}},
	})
	var verr *e.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "testimonials[0].rating", verr.Field)
}

func TestCreateJobValidation(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)

	f := jobFields("Picker")
	f.SalaryMin, f.SalaryMax = 30, 20
	err := repo.CreateJob(ctx, models.NewJob(org.ID, owner.ID, f))
	var verr *e.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "salary_max", verr.Field)

	f = jobFields("")
	err = repo.CreateJob(ctx, models.NewJob(org.ID, owner.ID, f))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	err = repo.CreateJob(ctx, models.NewJob(uuid.New(), owner.ID, jobFields("Orphan")))
	assert.ErrorIs(t, err, e.ErrNotFound)

	n, err := repo.Count(ctx, CountJobs)
	require.NoError(t, err)
	assert.Zero(t, n, "validation failures must not write")
}

func TestMutateJob(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)
	job := createJob(t, repo, org, "Picker", models.JobPendingReview)

	unchanged, err := repo.MutateJob(ctx, job.ID, nil, func(j *models.Job) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), unchanged.Version)

	approved, err := repo.MutateJob(ctx, job.ID, nil, func(j *models.Job) (bool, error) {
		j.Status = models.JobApproved
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobApproved, approved.Status)
	assert.Equal(t, int64(2), approved.Version)

	_, err = repo.MutateJob(ctx, job.ID, utils.Ptr(int64(1)), func(j *models.Job) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, e.ErrConflict)

	boom := errors.New("boom")
	_, err = repo.MutateJob(ctx, job.ID, nil, func(j *models.Job) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestQueryJobs(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)

	visible := createJob(t, repo, org, "Apple picker", models.JobApproved)
	createJob(t, repo, org, "Apple sorter", models.JobPendingReview)
	expired := models.NewJob(org.ID, owner.ID, jobFields("Old apple job"))
	expired.Status = models.JobApproved
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateJob(ctx, expired))

	now := time.Now()
	jobs, err := repo.QueryJobs(ctx, JobQuery{VisibleAt: &now})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, visible.ID, jobs[0].ID)

	jobs, err = repo.QueryJobs(ctx, JobQuery{Terms: []string{"sorter"}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Apple sorter", jobs[0].Title)

	jobs, err = repo.QueryJobs(ctx, JobQuery{Statuses: []models.JobStatus{models.JobApproved}, Skills: []string{"PICKING"}})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = repo.QueryJobs(ctx, JobQuery{Regions: []string{"elsewhere"}})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	box := BoundingBox(models.Point{Lng: -120.5, Lat: 36.7}, 10)
	jobs, err = repo.QueryJobs(ctx, JobQuery{BBox: box, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestQueryJobsPaging(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := range 5 {
		job := models.NewJob(org.ID, owner.ID, jobFields(fmt.Sprintf("Picker %d", i)))
		job.Status = models.JobApproved
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 0 {
			job.Category = "Equipment"
			job.Skills = []string{"Tractor"}
		}
		require.NoError(t, repo.CreateJob(ctx, job))
		ids = append(ids, job.ID)
	}

	tests := []struct {
		name      string
		query     JobQuery
		want      []uuid.UUID
		wantTotal int64
	}{
		{"newest first", JobQuery{Limit: 2}, []uuid.UUID{ids[4], ids[3]}, 5},
		{"offset", JobQuery{Offset: 3, Limit: 5}, []uuid.UUID{ids[1], ids[0]}, 5},
		{"category", JobQuery{Categories: []string{" EQUIPMENT"}, Limit: 1}, []uuid.UUID{ids[0]}, 1},
		{"skill behind newer rows", JobQuery{Skills: []string{"tractor"}, Limit: 1}, []uuid.UUID{ids[0]}, 1},
		{"skill offset", JobQuery{Skills: []string{"picking"}, Offset: 2, Limit: 5}, []uuid.UUID{ids[2], ids[1]}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := repo.QueryJobs(ctx, tt.query)
			require.NoError(t, err)
			got := make([]uuid.UUID, len(jobs))
			for i, j := range jobs {
				got[i] = j.ID
			}
			assert.Equal(t, tt.want, got)

			total, err := repo.CountJobs(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestQueryProfilesSkillsBeforeLimit(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	older := createAccount(t, repo, "older@example.com", models.RoleCandidate)
	newer := createAccount(t, repo, "newer@example.com", models.RoleCandidate)

	driver := &models.Profile{AccountID: older.ID, Headline: "Driver", Skills: []string{"tractor"}, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.CreateProfile(ctx, driver))
	require.NoError(t, repo.CreateProfile(ctx, &models.Profile{AccountID: newer.ID, Headline: "Pruner", Skills: []string{"pruning"}}))

	profiles, err := repo.QueryProfiles(ctx, ProfileQuery{Skills: []string{"tractor"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, driver.ID, profiles[0].ID)

	profiles, err = repo.QueryProfiles(ctx, ProfileQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.NotEqual(t, driver.ID, profiles[0].ID)
}

func TestScanVisibleJobs(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)
	for i := 0; i < 5; i++ {
		createJob(t, repo, org, "Visible", models.JobApproved)
	}
	createJob(t, repo, org, "Hidden", models.JobRejected)

	seen, batches := 0, 0
	err := repo.ScanVisibleJobs(ctx, time.Now(), 2, func(jobs []models.Job) error {
		batches++
		seen += len(jobs)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)
	assert.Equal(t, 3, batches)
}

func TestCreateApplicationDuplicate(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	candidate := createAccount(t, repo, "c@example.com", models.RoleCandidate)
	org := createOrganization(t, repo, "Farm", owner.ID)
	job := createJob(t, repo, org, "Picker", models.JobApproved)

	app := &models.Application{JobID: job.ID, ApplicantID: candidate.ID, CoverLetter: "Hi"}
	require.NoError(t, repo.CreateApplication(ctx, app))
	assert.Equal(t, models.ApplicationSubmitted, app.Status)

	err := repo.CreateApplication(ctx, &models.Application{JobID: job.ID, ApplicantID: candidate.ID})
	assert.ErrorIs(t, err, e.ErrDuplicateApplication)

	apps, err := repo.ListApplicationsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Hi", apps[0].CoverLetter)
}

func TestMarkMessageRead(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	a := createAccount(t, repo, "a@example.com", models.RoleEmployer)
	b := createAccount(t, repo, "b@example.com", models.RoleCandidate)

	msg := &models.Message{SenderID: a.ID, RecipientID: b.ID, Body: "Interview tomorrow?"}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	err := repo.CreateMessage(ctx, &models.Message{SenderID: a.ID, RecipientID: a.ID, Body: "self"})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	read, err := repo.MarkMessageRead(ctx, msg.ID, first)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	again, err := repo.MarkMessageRead(ctx, msg.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(first), "first read time is kept")

	inbox, err := repo.ListInbox(ctx, b.ID, true, 10)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestAnalyticsQueries(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Farm", owner.ID)
	createJob(t, repo, org, "One", models.JobApproved)
	createJob(t, repo, org, "Two", models.JobDraft)

	now := time.Now()
	n, err := repo.CountCreated(ctx, CountJobs, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountCreated(ctx, CountJobs, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	groups, err := repo.TopJobGroups(ctx, GroupByRegion, 5)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Key: "valley", Count: 2}}, groups)

	_, err = repo.TopJobGroups(ctx, JobGrouping("title"), 5)
	assert.Error(t, err)
}

func TestTopJobGroupsEmpty(t *testing.T) {
	repo := SetupTestDB(t)
	groups, err := repo.TopJobGroups(context.Background(), GroupByCategory, 5)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestWithTransactionRollback(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)

	err := repo.WithTransaction(ctx, func(tx *Repository) error {
		org := &models.Organization{Name: "Temp", OwnerID: owner.ID}
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return err
		}
		if err := tx.ClaimRecipeKey(ctx, "key-1", "test"); err != nil {
			return err
		}
		return tx.CreateOrganization(ctx, &models.Organization{Name: "Temp", OwnerID: owner.ID})
	})
	assert.ErrorIs(t, err, e.ErrDuplicateKey)

	_, err = repo.GetOrganizationBySlug(ctx, "temp")
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.NoError(t, repo.ClaimRecipeKey(ctx, "key-1", "test"), "rolled back key is free again")

	err = repo.ClaimRecipeKey(ctx, "key-1", "test")
	var dup *e.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "recipe_key", dup.Key)
}

func TestPurgeOrganization(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	candidate := createAccount(t, repo, "c@example.com", models.RoleCandidate)
	org := createOrganization(t, repo, "Farm", owner.ID)
	keep := createOrganization(t, repo, "Other Farm", owner.ID)
	require.NoError(t, repo.CreateOrganizationDetails(ctx, &models.OrganizationDetails{OrganizationID: org.ID}))
	require.NoError(t, repo.CreateMembership(ctx, &models.Membership{OrganizationID: org.ID, AccountID: owner.ID, Role: models.MembershipOwner}))
	job := createJob(t, repo, org, "Picker", models.JobApproved)
	kept := createJob(t, repo, keep, "Packer", models.JobApproved)
	app := &models.Application{JobID: job.ID, ApplicantID: candidate.ID}
	require.NoError(t, repo.CreateApplication(ctx, app))
	require.NoError(t, repo.CreateMessage(ctx, &models.Message{
		SenderID: owner.ID, RecipientID: candidate.ID, ApplicationID: &app.ID, Body: "Hello",
	}))

	report, err := repo.PurgeOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{org.ID}, report.Organizations)
	assert.Equal(t, []uuid.UUID{job.ID}, report.Jobs)
	assert.Equal(t, []uuid.UUID{app.ID}, report.Applications)
	assert.Equal(t, int64(1), report.Messages)

	_, err = repo.GetOrganizationDetails(ctx, org.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
	_, err = repo.GetApplication(ctx, app.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
	ok, err := repo.IsMember(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = repo.GetJob(ctx, kept.ID)
	assert.NoError(t, err)

	_, err = repo.PurgeOrganization(ctx, org.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPurgeAccount(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "o@example.com", models.RoleEmployer)
	manager := createAccount(t, repo, "m@example.com", models.RoleEmployer)
	other := createAccount(t, repo, "x@example.com", models.RoleEmployer)
	org := createOrganization(t, repo, "Owned", owner.ID)
	managed := &models.Organization{Name: "Managed", OwnerID: other.ID, ManagerIDs: []uuid.UUID{owner.ID, manager.ID}}
	require.NoError(t, repo.CreateOrganization(ctx, managed))
	createJob(t, repo, org, "Picker", models.JobApproved)
	require.NoError(t, repo.CreateProfile(ctx, &models.Profile{AccountID: owner.ID}))

	report, err := repo.PurgeAccount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{owner.ID}, report.Accounts)
	assert.Equal(t, []uuid.UUID{org.ID}, report.Organizations)
	assert.Len(t, report.Jobs, 1)
	assert.Len(t, report.Profiles, 1)

	stored, err := repo.GetOrganization(ctx, managed.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{manager.ID}, []uuid.UUID(stored.ManagerIDs))
	_, err = repo.GetAccount(ctx, owner.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestStoreTimeout(t *testing.T) {
	repo := SetupTestDB(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, e.ErrTimeout)
	assert.True(t, e.Retryable(err))
}
