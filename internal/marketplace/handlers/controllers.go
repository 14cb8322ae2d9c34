package handlers

import (
	"context"

	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

// The interfaces below are the business operations the HTTP handlers invoke.

type AccountController interface {
	CreateAccount(ctx context.Context, email, credential string, roles []models.Role) (*models.Account, error)
	Verify(ctx context.Context, email, credential string) (*models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetActive(ctx context.Context, actor models.Actor, id uuid.UUID, active bool) (*models.Account, error)
}

type ProfileController interface {
	UpsertProfile(ctx context.Context, actor models.Actor, fields models.ProfileFields) (*models.Profile, error)
	GetProfile(ctx context.Context, accountID uuid.UUID) (*models.Profile, error)
}

type OrganizationController interface {
	CreateOrganizationWithJob(ctx context.Context, actor models.Actor, in controller.OrganizationWithJobInput) (*controller.OrganizationWithJob, error)
	UpdateOrganization(ctx context.Context, actor models.Actor, update *models.OrganizationUpdate) (*models.Organization, error)
}

type JobController interface {
	CreateJob(ctx context.Context, actor models.Actor, orgID uuid.UUID, fields models.JobFields) (*models.Job, error)
	GetJob(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, actor models.Actor, update *models.JobUpdate) (*models.Job, error)
	SetJobActive(ctx context.Context, actor models.Actor, id uuid.UUID, active bool) (*models.Job, error)
	SubmitJobForReview(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Job, error)
	TransitionJobStatus(ctx context.Context, id uuid.UUID, target models.JobStatus, actor models.Actor) (*models.Job, error)
}

type ApplicationController interface {
	SubmitApplication(ctx context.Context, jobID, applicantID uuid.UUID, coverLetter, resumeRef string) (*models.Application, error)
	TransitionApplication(ctx context.Context, id uuid.UUID, target models.ApplicationStatus, actor models.Actor) (*models.Application, error)
	ListJobApplications(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Application, error)
	ListMyApplications(ctx context.Context, actor models.Actor) ([]models.Application, error)
}

type MessageController interface {
	SendMessage(ctx context.Context, actor models.Actor, in controller.MessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Message, error)
	Inbox(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]models.Message, error)
}

type SearchController interface {
	SearchJobs(ctx context.Context, actor models.Actor, f controller.JobFilter) (*controller.Page[controller.JobView], error)
	SearchCandidates(ctx context.Context, actor models.Actor, f controller.CandidateFilter) (*controller.Page[controller.CandidateView], error)
}

type AnalyticsController interface {
	Snapshot(ctx context.Context, actor models.Actor, windowMonths int) (*controller.AnalyticsData, error)
}

type AdminController interface {
	PurgeOrganization(ctx context.Context, actor models.Actor, id uuid.UUID) (*db.PurgeReport, error)
	PurgeAccount(ctx context.Context, actor models.Actor, id uuid.UUID) (*db.PurgeReport, error)
}

// Services bundles the controllers behind the API.
type Services struct {
	Accounts      AccountController
	Profiles      ProfileController
	Organizations OrganizationController
	Jobs          JobController
	Applications  ApplicationController
	Messages      MessageController
	Search        SearchController
	Analytics     AnalyticsController
	Admin         AdminController
}
