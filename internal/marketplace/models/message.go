package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct note between two accounts, optionally about an
// organization, job or application.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"sender_id" validate:"required"`
	RecipientID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"recipient_id" validate:"required,nefield=SenderID"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	JobID          *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	ApplicationID  *uuid.UUID `gorm:"type:uuid;index" json:"application_id,omitempty"`
	Body           string     `gorm:"size:5000;not null" json:"body" validate:"required,max=5000"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}
