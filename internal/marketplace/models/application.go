package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the hiring pipeline state of an Application.
type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationReview    ApplicationStatus = "review"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationOffer     ApplicationStatus = "offer"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationHired     ApplicationStatus = "hired"
)

// Application is a candidate's application to a Job. (JobID, ApplicantID) is unique.
type Application struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_application_pair;not null" json:"job_id" validate:"required"`
	ApplicantID uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_application_pair;index;not null" json:"applicant_id" validate:"required"`
	Profile     *ProfileSnapshot  `gorm:"serializer:json" json:"profile,omitempty"`
	CoverLetter string            `gorm:"size:5000" json:"cover_letter" validate:"max=5000"`
	ResumeRef   string            `gorm:"size:500" json:"resume_ref" validate:"max=500"`
	Status      ApplicationStatus `gorm:"size:32;index;not null" json:"status" validate:"required,oneof=submitted review interview offer rejected hired"`
	Version     int64             `gorm:"not null" json:"version"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Terminal reports whether s accepts no further transitions.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationRejected || s == ApplicationHired
}
