// Package models contains storage-only records that have no domain
// counterpart, configured to work using GORM as the ORM.
package models

import "time"

// RecipeKey records a caller-chosen idempotency key of a committed composer
// recipe. It is written inside the recipe's transaction, so a rolled back
// recipe leaves no key behind.
type RecipeKey struct {
	Key       string `gorm:"size:128;primaryKey"`
	Recipe    string `gorm:"size:64;not null"`
	CreatedAt time.Time
}
