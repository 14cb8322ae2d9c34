// Package seed loads a small demonstration dataset through the public
// services, so every invariant the services enforce holds for seeded data.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/gartstein/harvest/internal/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPassword is the credential of every seeded account.
const DefaultPassword = "harvest-demo-password"

// AdminEmail identifies the seeded administrator.
const AdminEmail = "admin@harvest.example"

// ErrAlreadySeeded is returned when the store already holds the dataset.
var ErrAlreadySeeded = errors.New("store already seeded")

// The reply is the last record Run writes; its presence marks a complete seed.
const replyBody = "Yes, Monday works."

// Store is the read access Run needs to pick up an interrupted seed.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)
	QueryJobs(ctx context.Context, q db.JobQuery) ([]models.Job, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error)
	ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Message, error)
}

type Services struct {
	Store        Store
	Accounts     *controller.AccountService
	Profiles     *controller.ProfileService
	Composer     *controller.Composer
	Jobs         *controller.JobService
	Applications *controller.ApplicationService
	Messages     *controller.MessageService
}

// Result lists what Run created.
type Result struct {
	Admin         models.Actor
	Employers     []models.Actor
	Candidates    []models.Actor
	Organizations []*models.Organization
	// Jobs holds the two approved jobs followed by the pending contract job.
	Jobs         []*models.Job
	Applications []*models.Application
	Messages     []*models.Message
}

// Run creates 5 accounts (1 admin, 2 employers, 2 candidates), 2 candidate
// profiles, 2 organizations with a first job each, a third contract job
// left pending review, 2 applications and 2 messages. Records left by an
// interrupted run are reused, so running again completes the dataset.
func Run(ctx context.Context, svc Services, password string, logger *zap.Logger) (*Result, error) {
	logger = logger.Named("seed")
	if password == "" {
		password = DefaultPassword
	}
	done, err := complete(ctx, svc.Store)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadySeeded
	}

	res := &Result{}
	now := time.Now().UTC()
	expires := now.AddDate(0, 3, 0)

	account := func(email string, roles ...models.Role) (models.Actor, error) {
		acc, err := svc.Store.GetAccountByEmail(ctx, email)
		if errors.Is(err, e.ErrNotFound) {
			acc, err = svc.Accounts.CreateAccount(ctx, email, password, roles)
		}
		if err != nil {
			return models.Actor{}, fmt.Errorf("account %s: %w", email, err)
		}
		return models.Actor{AccountID: acc.ID, Roles: acc.Roles}, nil
	}

	admin, err := account(AdminEmail, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	res.Admin = admin

	for _, email := range employerEmails {
		actor, err := account(email, models.RoleEmployer)
		if err != nil {
			return nil, err
		}
		res.Employers = append(res.Employers, actor)
	}
	for _, email := range []string{"maria@workers.example", "jose@workers.example"} {
		actor, err := account(email, models.RoleCandidate)
		if err != nil {
			return nil, err
		}
		res.Candidates = append(res.Candidates, actor)
	}

	profiles := []models.ProfileFields{
		{
			Headline: "Experienced tractor operator",
			Summary:  "Ten seasons of row crop work, licensed for heavy equipment.",
			Skills:   []string{"Tractor", "Irrigation"},
			Location: models.Point{Lng: -119.7871, Lat: 36.7378},
		},
		{
			Headline: "Orchard picker and pruner",
			Summary:  "Stone fruit harvest crews and winter pruning.",
			Skills:   []string{"Pruning", "Harvest"},
			Location: models.Point{Lng: -119.2921, Lat: 36.3302},
		},
	}
	for i, fields := range profiles {
		if _, err := svc.Profiles.UpsertProfile(ctx, res.Candidates[i], fields); err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
	}

	orgs := []controller.OrganizationWithJobInput{
		{
			Organization: controller.OrganizationInput{
				Name:     "Sunfield Farms",
				Location: models.Point{Lng: -119.7871, Lat: 36.7378},
				Regions:  []string{"Central Valley"},
				Testimonials: []models.Testimonial{
					{Author: "Former crew lead", Text: "Fair hours and on-time pay.", Rating: 5},
				},
			},
			Details: controller.DetailsInput{
				About:        "Family farm growing tomatoes and almonds.",
				ContactEmail: "grower@sunfield.example",
				FoundedYear:  1978,
			},
			Job: models.JobFields{
				Title:           "Tractor operator",
				Description:     "Operate and maintain tractors for spring planting.",
				Category:        "Equipment",
				EmploymentType:  models.Seasonal,
				Location:        models.Point{Lng: -119.7871, Lat: 36.7378},
				Region:          "Central Valley",
				Skills:          []string{"Tractor"},
				SalaryMin:       20,
				SalaryMax:       26,
				Currency:        "USD",
				ExpiresAt:       expires,
				SubmitForReview: true,
			},
			IdempotencyKey: "seed-sunfield-farms",
		},
		{
			Organization: controller.OrganizationInput{
				Name:     "Valley Orchards",
				Location: models.Point{Lng: -119.2921, Lat: 36.3302},
				Regions:  []string{"Central Valley", "Tulare County"},
			},
			Details: controller.DetailsInput{
				About:          "Stone fruit orchards and packing.",
				ContactEmail:   "hiring@valleyorchards.example",
				Certifications: []string{"GlobalG.A.P."},
			},
			Job: models.JobFields{
				Title:           "Orchard harvest crew",
				Description:     "Peach and nectarine harvest, early morning shifts.",
				Category:        "Harvest",
				EmploymentType:  models.Seasonal,
				Location:        models.Point{Lng: -119.2921, Lat: 36.3302},
				Region:          "Tulare County",
				Skills:          []string{"Harvest", "Pruning"},
				SalaryMin:       18,
				SalaryMax:       22,
				Currency:        "USD",
				ExpiresAt:       expires,
				SubmitForReview: true,
			},
			IdempotencyKey: "seed-valley-orchards",
		},
	}
	for i, in := range orgs {
		org, job, err := organization(ctx, svc, res.Employers[i], in)
		if err != nil {
			return nil, fmt.Errorf("organization %s: %w", in.Organization.Name, err)
		}
		if job.Status != models.JobApproved {
			approved, err := svc.Jobs.TransitionJobStatus(ctx, job.ID, models.JobApproved, admin)
			if err != nil {
				return nil, fmt.Errorf("approve job %s: %w", job.ID, err)
			}
			job = approved
		}
		res.Organizations = append(res.Organizations, org)
		res.Jobs = append(res.Jobs, job)
	}

	contractFields := models.JobFields{
		Title:           "Irrigation technician",
		Description:     "Contract install of drip irrigation lines.",
		Category:        "Irrigation",
		EmploymentType:  models.Contract,
		Location:        models.Point{Lng: -119.7871, Lat: 36.7378},
		Region:          "Central Valley",
		Skills:          []string{"Irrigation"},
		SalaryMin:       28,
		SalaryMax:       35,
		Currency:        "USD",
		ExpiresAt:       expires,
		SubmitForReview: true,
	}
	contract, err := findJob(ctx, svc.Store, res.Organizations[0].ID, contractFields.Title)
	if err == nil && contract == nil {
		contract, err = svc.Jobs.CreateJob(ctx, res.Employers[0], res.Organizations[0].ID, contractFields)
	}
	if err != nil {
		return nil, fmt.Errorf("contract job: %w", err)
	}
	res.Jobs = append(res.Jobs, contract)

	for i, candidate := range res.Candidates {
		app, err := application(ctx, svc, res.Jobs[i].ID, candidate.AccountID)
		if err != nil {
			return nil, fmt.Errorf("application %d: %w", i, err)
		}
		res.Applications = append(res.Applications, app)
	}

	first := res.Applications[0]
	invite, err := message(ctx, svc, res.Employers[0], controller.MessageInput{
		RecipientID:    res.Candidates[0].AccountID,
		OrganizationID: utils.Ptr(res.Organizations[0].ID),
		JobID:          utils.Ptr(first.JobID),
		ApplicationID:  utils.Ptr(first.ID),
		Body:           "Thanks for applying. Can you start Monday?",
	})
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	reply, err := svc.Messages.SendMessage(ctx, res.Candidates[0], controller.MessageInput{
		RecipientID:   res.Employers[0].AccountID,
		ApplicationID: utils.Ptr(first.ID),
		Body:          replyBody,
	})
	if err != nil {
		return nil, fmt.Errorf("reply: %w", err)
	}
	res.Messages = append(res.Messages, invite, reply)

	logger.Info("Seed data created",
		zap.Int("accounts", 1+len(res.Employers)+len(res.Candidates)),
		zap.Int("organizations", len(res.Organizations)),
		zap.Int("jobs", len(res.Jobs)),
		zap.Int("applications", len(res.Applications)),
		zap.Int("messages", len(res.Messages)),
	)
	return res, nil
}

var employerEmails = []string{"grower@sunfield.example", "hiring@valleyorchards.example"}

// complete reports whether the final reply of a previous run exists.
func complete(ctx context.Context, store Store) (bool, error) {
	acc, err := store.GetAccountByEmail(ctx, employerEmails[0])
	if errors.Is(err, e.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check seed state: %w", err)
	}
	msgs, err := store.ListInbox(ctx, acc.ID, false, 0)
	if err != nil {
		return false, fmt.Errorf("failed to check seed state: %w", err)
	}
	for _, m := range msgs {
		if m.Body == replyBody {
			return true, nil
		}
	}
	return false, nil
}

// organization returns the organization named by in and its first job,
// creating both when missing. The composer writes them together, so an
// existing organization always has its job.
func organization(ctx context.Context, svc Services, owner models.Actor, in controller.OrganizationWithJobInput) (*models.Organization, *models.Job, error) {
	org, err := svc.Store.GetOrganizationBySlug(ctx, models.Slugify(in.Organization.Name))
	if errors.Is(err, e.ErrNotFound) {
		out, err := svc.Composer.CreateOrganizationWithJob(ctx, owner, in)
		if err != nil {
			return nil, nil, err
		}
		return out.Organization, out.Job, nil
	}
	if err != nil {
		return nil, nil, err
	}
	job, err := findJob(ctx, svc.Store, org.ID, in.Job.Title)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, fmt.Errorf("%w: first job of %s", e.ErrNotFound, org.Slug)
	}
	return org, job, nil
}

// findJob returns the organization's job with the given title, or nil.
func findJob(ctx context.Context, store Store, orgID uuid.UUID, title string) (*models.Job, error) {
	jobs, err := store.QueryJobs(ctx, db.JobQuery{OrganizationID: &orgID})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].Title == title {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

func application(ctx context.Context, svc Services, jobID, applicantID uuid.UUID) (*models.Application, error) {
	app, err := svc.Applications.SubmitApplication(ctx, jobID, applicantID, "Available for the full season.", "")
	if !errors.Is(err, e.ErrDuplicateApplication) {
		return app, err
	}
	apps, err := svc.Store.ListApplicationsByApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].JobID == jobID {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: application to job %s", e.ErrNotFound, jobID)
}

// message sends in unless the recipient already holds the same text.
func message(ctx context.Context, svc Services, sender models.Actor, in controller.MessageInput) (*models.Message, error) {
	inbox, err := svc.Store.ListInbox(ctx, in.RecipientID, false, 0)
	if err != nil {
		return nil, err
	}
	for i := range inbox {
		if inbox[i].SenderID == sender.AccountID && inbox[i].Body == in.Body {
			return &inbox[i], nil
		}
	}
	return svc.Messages.SendMessage(ctx, sender, in)
}

// JobIDs returns the ids of jobs in res.
func (r *Result) JobIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Jobs))
	for i, j := range r.Jobs {
		ids[i] = j.ID
	}
	return ids
}
