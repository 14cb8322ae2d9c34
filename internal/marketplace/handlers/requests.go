package handlers

import (
	"time"

	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID uuid.UUID `json:"account_id"`
}

type createAccountRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Roles    []models.Role `json:"roles"`
}

type activeRequest struct {
	Active *bool `json:"active"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type profileRequest struct {
	Headline        string       `json:"headline"`
	Summary         string       `json:"summary"`
	Skills          []string     `json:"skills"`
	Location        models.Point `json:"location"`
	Links           []string     `json:"links"`
	ExpectedVersion *int64       `json:"expected_version"`
}

func (p *profileRequest) fields() models.ProfileFields {
	return models.ProfileFields{
		Headline:        p.Headline,
		Summary:         p.Summary,
		Skills:          p.Skills,
		Location:        p.Location,
		Links:           p.Links,
		ExpectedVersion: p.ExpectedVersion,
	}
}

type jobRequest struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        string                `json:"category"`
	EmploymentType  models.EmploymentType `json:"employment_type"`
	Remote          bool                  `json:"remote"`
	Location        models.Point          `json:"location"`
	Region          string                `json:"region"`
	Skills          []string              `json:"skills"`
	SalaryMin       float64               `json:"salary_min"`
	SalaryMax       float64               `json:"salary_max"`
	Currency        string                `json:"currency"`
	ExpiresAt       time.Time             `json:"expires_at"`
	SubmitForReview bool                  `json:"submit_for_review"`
}

func (j *jobRequest) fields() models.JobFields {
	return models.JobFields{
		Title:           j.Title,
		Description:     j.Description,
		Category:        j.Category,
		EmploymentType:  j.EmploymentType,
		Remote:          j.Remote,
		Location:        j.Location,
		Region:          j.Region,
		Skills:          j.Skills,
		SalaryMin:       j.SalaryMin,
		SalaryMax:       j.SalaryMax,
		Currency:        j.Currency,
		ExpiresAt:       j.ExpiresAt,
		SubmitForReview: j.SubmitForReview,
	}
}

type jobPatchRequest struct {
	ExpectedVersion *int64                 `json:"expected_version"`
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Category        *string                `json:"category"`
	EmploymentType  *models.EmploymentType `json:"employment_type"`
	Remote          *bool                  `json:"remote"`
	Location        *models.Point          `json:"location"`
	Region          *string                `json:"region"`
	Skills          *[]string              `json:"skills"`
	SalaryMin       *float64               `json:"salary_min"`
	SalaryMax       *float64               `json:"salary_max"`
	Currency        *string                `json:"currency"`
	Active          *bool                  `json:"active"`
	ExpiresAt       *time.Time             `json:"expires_at"`
}

func (p *jobPatchRequest) update(id uuid.UUID) *models.JobUpdate {
	return &models.JobUpdate{
		ID:              id,
		ExpectedVersion: p.ExpectedVersion,
		Title:           p.Title,
		Description:     p.Description,
		Category:        p.Category,
		EmploymentType:  p.EmploymentType,
		Remote:          p.Remote,
		Location:        p.Location,
		Region:          p.Region,
		Skills:          p.Skills,
		SalaryMin:       p.SalaryMin,
		SalaryMax:       p.SalaryMax,
		Currency:        p.Currency,
		Active:          p.Active,
		ExpiresAt:       p.ExpiresAt,
	}
}

type organizationRequest struct {
	Organization struct {
		Name         string               `json:"name"`
		Location     models.Point         `json:"location"`
		Regions      []string             `json:"regions"`
		ManagerIDs   []uuid.UUID          `json:"manager_ids"`
		Testimonials []models.Testimonial `json:"testimonials"`
	} `json:"organization"`
	Details struct {
		About          string   `json:"about"`
		Website        string   `json:"website"`
		ContactEmail   string   `json:"contact_email"`
		Phone          string   `json:"phone"`
		FoundedYear    int      `json:"founded_year"`
		Certifications []string `json:"certifications"`
	} `json:"details"`
	Membership struct {
		AccountID uuid.UUID             `json:"account_id"`
		Role      models.MembershipRole `json:"role"`
	} `json:"membership"`
	Job            jobRequest `json:"job"`
	IdempotencyKey string     `json:"idempotency_key"`
}

func (o *organizationRequest) input() controller.OrganizationWithJobInput {
	return controller.OrganizationWithJobInput{
		Organization: controller.OrganizationInput{
			Name:         o.Organization.Name,
			Location:     o.Organization.Location,
			Regions:      o.Organization.Regions,
			ManagerIDs:   o.Organization.ManagerIDs,
			Testimonials: o.Organization.Testimonials,
		},
		Details: controller.DetailsInput{
			About:          o.Details.About,
			Website:        o.Details.Website,
			ContactEmail:   o.Details.ContactEmail,
			Phone:          o.Details.Phone,
			FoundedYear:    o.Details.FoundedYear,
			Certifications: o.Details.Certifications,
		},
		Membership: controller.MembershipInput{
			AccountID: o.Membership.AccountID,
			Role:      o.Membership.Role,
		},
		Job:            o.Job.fields(),
		IdempotencyKey: o.IdempotencyKey,
	}
}

type organizationPatchRequest struct {
	ExpectedVersion *int64                `json:"expected_version"`
	Name            *string               `json:"name"`
	Location        *models.Point         `json:"location"`
	Regions         *[]string             `json:"regions"`
	ManagerIDs      *[]uuid.UUID          `json:"manager_ids"`
	Testimonials    *[]models.Testimonial `json:"testimonials"`
}

func (p *organizationPatchRequest) update(id uuid.UUID) *models.OrganizationUpdate {
	return &models.OrganizationUpdate{
		ID:              id,
		ExpectedVersion: p.ExpectedVersion,
		Name:            p.Name,
		Location:        p.Location,
		Regions:         p.Regions,
		ManagerIDs:      p.ManagerIDs,
		Testimonials:    p.Testimonials,
	}
}

type applicationRequest struct {
	CoverLetter string `json:"cover_letter"`
	ResumeRef   string `json:"resume_ref"`
}

type messageRequest struct {
	RecipientID    uuid.UUID  `json:"recipient_id"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	JobID          *uuid.UUID `json:"job_id"`
	ApplicationID  *uuid.UUID `json:"application_id"`
	Body           string     `json:"body"`
}

func (m *messageRequest) input() controller.MessageInput {
	return controller.MessageInput{
		RecipientID:    m.RecipientID,
		OrganizationID: m.OrganizationID,
		JobID:          m.JobID,
		ApplicationID:  m.ApplicationID,
		Body:           m.Body,
	}
}
