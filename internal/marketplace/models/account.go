package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Role is a capability granted to an account.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleEmployer  Role = "employer"
	RoleAdmin     Role = "admin"
)

// Account is a login identity. Email uniqueness is case-insensitive and is
// enforced through EmailKey.
type Account struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string                    `gorm:"size:254;not null" json:"email" validate:"required,email,max=254"`
	EmailKey     string                    `gorm:"size:254;uniqueIndex;not null" json:"-"`
	PasswordHash string                    `gorm:"not null" json:"-" validate:"required"`
	Roles        datatypes.JSONSlice[Role] `json:"roles" validate:"required,min=1,dive,oneof=candidate employer admin"`
	Active       bool                      `json:"active"`
	Version      int64                     `gorm:"not null" json:"version"`
	CreatedAt    time.Time                 `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// Normalize derives EmailKey and de-duplicates roles.
func (a *Account) Normalize() {
	a.EmailKey = NormalizeEmail(a.Email)
	roles := make([]Role, 0, len(a.Roles))
	for _, r := range a.Roles {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	a.Roles = roles
}

// HasRole reports whether the account holds r.
func (a *Account) HasRole(r Role) bool {
	return slices.Contains(a.Roles, r)
}

// AccountUpdate is a partial update of an Account. Nil fields are left as-is.
type AccountUpdate struct {
	ID              uuid.UUID
	ExpectedVersion *int64
	Email           *string
	PasswordHash    *string
	Roles           *[]Role
	Active          *bool
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	AccountID uuid.UUID
	Roles     []Role
}

// Has reports whether the actor holds r.
func (a Actor) Has(r Role) bool {
	return slices.Contains(a.Roles, r)
}

// IsAdmin is shorthand for Has(RoleAdmin).
func (a Actor) IsAdmin() bool {
	return a.Has(RoleAdmin)
}

// Anonymous reports whether no account backs the actor.
func (a Actor) Anonymous() bool {
	return a.AccountID == uuid.Nil
}
