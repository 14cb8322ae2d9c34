package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStatus is the moderation state of a Job.
type JobStatus string

const (
	JobDraft         JobStatus = "draft"
	JobPendingReview JobStatus = "pending_review"
	JobApproved      JobStatus = "approved"
	JobRejected      JobStatus = "rejected"
)

// EmploymentType classifies the engagement offered by a Job.
type EmploymentType string

const (
	FullTime  EmploymentType = "full_time"
	PartTime  EmploymentType = "part_time"
	Seasonal  EmploymentType = "seasonal"
	Contract  EmploymentType = "contract"
	Temporary EmploymentType = "temporary"
)

// Job is a posting owned by an Organization.
type Job struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID                   `gorm:"type:uuid;index;not null" json:"organization_id" validate:"required"`
	CreatedBy      uuid.UUID                   `gorm:"type:uuid;index;not null" json:"created_by" validate:"required"`
	Title          string                      `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description    string                      `gorm:"size:5000;not null" json:"description" validate:"required,max=5000"`
	Category       string                      `gorm:"size:100;index" json:"category" validate:"max=100"`
	EmploymentType EmploymentType              `gorm:"size:32;index;not null" json:"employment_type" validate:"required,oneof=full_time part_time seasonal contract temporary"`
	Remote         bool                        `json:"remote"`
	Location       Point                       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Region         string                      `gorm:"size:100;index" json:"region" validate:"max=100"`
	Skills         datatypes.JSONSlice[string] `json:"skills" validate:"max=50,dive,required,max=64"`
	SalaryMin      float64                     `json:"salary_min" validate:"gte=0"`
	SalaryMax      float64                     `json:"salary_max" validate:"gte=0,gtefield=SalaryMin"`
	Currency       string                      `gorm:"size:3;not null" json:"currency" validate:"required,len=3,uppercase"`
	Status         JobStatus                   `gorm:"size:32;index;not null" json:"status" validate:"required,oneof=draft pending_review approved rejected"`
	Active         bool                        `gorm:"not null" json:"active"`
	ExpiresAt      time.Time                   `gorm:"index" json:"expires_at" validate:"required"`
	Version        int64                       `gorm:"not null" json:"version"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Normalize folds skills, region and category and stores ExpiresAt in UTC.
func (j *Job) Normalize() {
	j.ExpiresAt = j.ExpiresAt.UTC()
	j.Skills = NormalizeTags(j.Skills)
	j.Region = NormalizeTag(j.Region)
	j.Category = NormalizeTag(j.Category)
}

// Visible reports whether the job may appear in public search at now.
func (j *Job) Visible(now time.Time) bool {
	return j.Status == JobApproved && j.Active && j.ExpiresAt.After(now)
}

// Text is the free text indexed for job search.
func (j *Job) Text() string {
	return j.Title + "\n" + j.Description
}

// JobFields are the caller-supplied parts of a new Job.
type JobFields struct {
	Title          string
	Description    string
	Category       string
	EmploymentType EmploymentType
	Remote         bool
	Location       Point
	Region         string
	Skills         []string
	SalaryMin      float64
	SalaryMax      float64
	Currency       string
	ExpiresAt      time.Time
	// SubmitForReview creates the job as pending_review instead of draft.
	SubmitForReview bool
}

// NewJob builds a Job from fields. Status is draft or pending_review.
func NewJob(orgID, createdBy uuid.UUID, f JobFields) *Job {
	status := JobDraft
	if f.SubmitForReview {
		status = JobPendingReview
	}
	return &Job{
		OrganizationID: orgID,
		CreatedBy:      createdBy,
		Title:          f.Title,
		Description:    f.Description,
		Category:       f.Category,
		EmploymentType: f.EmploymentType,
		Remote:         f.Remote,
		Location:       f.Location,
		Region:         f.Region,
		Skills:         f.Skills,
		SalaryMin:      f.SalaryMin,
		SalaryMax:      f.SalaryMax,
		Currency:       f.Currency,
		Status:         status,
		Active:         true,
		ExpiresAt:      f.ExpiresAt,
	}
}

// JobUpdate is a partial update of a Job's content. Status changes go through
// the moderation state machine, not through JobUpdate.
type JobUpdate struct {
	ID              uuid.UUID
	ExpectedVersion *int64
	Title           *string
	Description     *string
	Category        *string
	EmploymentType  *EmploymentType
	Remote          *bool
	Location        *Point
	Region          *string
	Skills          *[]string
	SalaryMin       *float64
	SalaryMax       *float64
	Currency        *string
	Active          *bool
	ExpiresAt       *time.Time
}

// Apply copies the non-nil fields of u onto j.
func (u *JobUpdate) Apply(j *Job) {
	if u.Title != nil {
		j.Title = *u.Title
	}
	if u.Description != nil {
		j.Description = *u.Description
	}
	if u.Category != nil {
		j.Category = *u.Category
	}
	if u.EmploymentType != nil {
		j.EmploymentType = *u.EmploymentType
	}
	if u.Remote != nil {
		j.Remote = *u.Remote
	}
	if u.Location != nil {
		j.Location = *u.Location
	}
	if u.Region != nil {
		j.Region = *u.Region
	}
	if u.Skills != nil {
		j.Skills = *u.Skills
	}
	if u.SalaryMin != nil {
		j.SalaryMin = *u.SalaryMin
	}
	if u.SalaryMax != nil {
		j.SalaryMax = *u.SalaryMax
	}
	if u.Currency != nil {
		j.Currency = *u.Currency
	}
	if u.Active != nil {
		j.Active = *u.Active
	}
	if u.ExpiresAt != nil {
		j.ExpiresAt = *u.ExpiresAt
	}
}
