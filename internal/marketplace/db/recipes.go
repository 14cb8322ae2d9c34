package db

import (
	"context"
	"errors"

	storemodels "github.com/gartstein/harvest/internal/marketplace/db/models"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
)

// ClaimRecipeKey records key for recipe. Claiming a key that is already
// committed fails with a duplicate "recipe_key" error.
func (r *Repository) ClaimRecipeKey(ctx context.Context, key, recipe string) error {
	if key == "" {
		return e.Invalid("idempotency_key", "is required")
	}
	if len(key) > 128 {
		return e.Invalid("idempotency_key", "must be at most 128")
	}
	err := r.create(ctx, &storemodels.RecipeKey{Key: key, Recipe: recipe})
	if errors.Is(err, e.ErrDuplicateKey) {
		return e.Duplicate("recipe_key", key)
	}
	return err
}
