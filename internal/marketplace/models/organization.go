package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MembershipRole is the role of an account inside an organization.
type MembershipRole string

const (
	MembershipOwner   MembershipRole = "owner"
	MembershipManager MembershipRole = "manager"
)

// Testimonial is a review embedded in an organization.
type Testimonial struct {
	Author string `json:"author" validate:"required,max=120"`
	Text   string `json:"text" validate:"required,max=2000"`
	Rating int    `json:"rating" validate:"min=1,max=5"`
}

// Organization is an employer. Name and Slug are both unique; Slug is always
// Slugify(Name).
type Organization struct {
	ID           uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                           `gorm:"size:200;uniqueIndex;not null" json:"name" validate:"required,max=200"`
	Slug         string                           `gorm:"size:200;uniqueIndex;not null" json:"slug" validate:"required,max=200"`
	Location     Point                            `gorm:"embedded;embeddedPrefix:hq_" json:"location"`
	Regions      datatypes.JSONSlice[string]      `json:"regions" validate:"max=50,dive,required,max=100"`
	OwnerID      uuid.UUID                        `gorm:"type:uuid;index;not null" json:"owner_id" validate:"required"`
	ManagerIDs   datatypes.JSONSlice[uuid.UUID]   `json:"manager_ids"`
	Testimonials datatypes.JSONSlice[Testimonial] `json:"testimonials" validate:"dive"`
	Version      int64                            `gorm:"not null" json:"version"`
	CreatedAt    time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

// Normalize derives the slug and folds regions.
func (o *Organization) Normalize() {
	o.Slug = Slugify(o.Name)
	o.Regions = NormalizeTags(o.Regions)
	if o.ManagerIDs == nil {
		o.ManagerIDs = []uuid.UUID{}
	}
	if o.Testimonials == nil {
		o.Testimonials = []Testimonial{}
	}
}

// Manages reports whether accountID owns or manages the organization.
func (o *Organization) Manages(accountID uuid.UUID) bool {
	if o.OwnerID == accountID {
		return true
	}
	for _, id := range o.ManagerIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// OrganizationUpdate is a partial update of an Organization.
type OrganizationUpdate struct {
	ID              uuid.UUID
	ExpectedVersion *int64
	Name            *string
	Location        *Point
	Regions         *[]string
	ManagerIDs      *[]uuid.UUID
	Testimonials    *[]Testimonial
}

// OrganizationDetails holds the descriptive, rarely queried part of an
// organization. One row per organization.
type OrganizationDetails struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null" json:"organization_id" validate:"required"`
	About          string                      `gorm:"size:5000" json:"about" validate:"max=5000"`
	Website        string                      `gorm:"size:500" json:"website" validate:"omitempty,url,max=500"`
	ContactEmail   string                      `gorm:"size:254" json:"contact_email" validate:"omitempty,email"`
	Phone          string                      `gorm:"size:32" json:"phone" validate:"omitempty,max=32"`
	FoundedYear    int                         `json:"founded_year" validate:"omitempty,min=1800,max=2100"`
	Certifications datatypes.JSONSlice[string] `json:"certifications" validate:"max=50,dive,required,max=100"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Normalize fills empty list columns.
func (d *OrganizationDetails) Normalize() {
	if d.Certifications == nil {
		d.Certifications = []string{}
	}
}

// Membership links an account to an organization it may act for.
type Membership struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_membership_org_account;not null" json:"organization_id" validate:"required"`
	AccountID      uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_membership_org_account;index;not null" json:"account_id" validate:"required"`
	Role           MembershipRole `gorm:"size:32;not null" json:"role" validate:"required,oneof=owner manager"`
	CreatedAt      time.Time      `json:"created_at"`
}
