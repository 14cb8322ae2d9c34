// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// NewRepository returns a migrated store backed by a private in-memory
// SQLite database that is closed when the test ends.
func NewRepository(t testing.TB) *db.Repository {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	repo, err := db.Open(sqlite.Open(dsn), 5*time.Second)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}
