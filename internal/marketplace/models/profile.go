package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Profile is the candidate-facing description of an account. There is at
// most one Profile per Account.
type Profile struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null" json:"account_id" validate:"required"`
	Headline  string                      `gorm:"size:200" json:"headline" validate:"max=200"`
	Summary   string                      `gorm:"size:5000" json:"summary" validate:"max=5000"`
	Skills    datatypes.JSONSlice[string] `json:"skills" validate:"max=50,dive,required,max=64"`
	Location  Point                       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Links     datatypes.JSONSlice[string] `json:"links" validate:"max=10,dive,url"`
	Version   int64                       `gorm:"not null" json:"version"`
	CreatedAt time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Normalize folds skills into their canonical form.
func (p *Profile) Normalize() {
	p.Skills = NormalizeTags(p.Skills)
	if p.Links == nil {
		p.Links = []string{}
	}
}

// Text is the free text indexed for candidate search.
func (p *Profile) Text() string {
	return p.Headline + "\n" + p.Summary
}

// ProfileFields are the caller-editable parts of a Profile.
type ProfileFields struct {
	Headline string
	Summary  string
	Skills   []string
	Location Point
	Links    []string
	// ExpectedVersion, when set, must match the stored version on update.
	ExpectedVersion *int64
}

// ProfileSnapshot is the copy of a profile attached to an application at
// submission time.
type ProfileSnapshot struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	Skills    []string  `json:"skills"`
}

// Snapshot captures the current state of p.
func (p *Profile) Snapshot() *ProfileSnapshot {
	return &ProfileSnapshot{
		ProfileID: p.ID,
		Headline:  p.Headline,
		Summary:   p.Summary,
		Skills:    append([]string(nil), p.Skills...),
	}
}
