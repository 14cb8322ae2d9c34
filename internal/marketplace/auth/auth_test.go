package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken(id, []models.Role{models.RoleEmployer}, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := validateToken(token, testSecret)
	require.NoError(t, err)
	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, id, actor.AccountID)
	assert.True(t, actor.Has(models.RoleEmployer))
	assert.False(t, actor.IsAdmin())

	_, err = validateToken(token, "wrong-secret")
	assert.Error(t, err)
}

func TestHTTPMiddleware(t *testing.T) {
	id := uuid.New()
	valid, err := GenerateToken(id, []models.Role{models.RoleAdmin}, testSecret, time.Hour)
	require.NoError(t, err)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  uuid.UUID
	}{
		{"anonymous", "", http.StatusOK, uuid.Nil},
		{"valid token", "Bearer " + valid, http.StatusOK, id},
		{"expired token", "Bearer " + expiredToken, http.StatusUnauthorized, uuid.Nil},
		{"missing prefix", valid, http.StatusUnauthorized, uuid.Nil},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, uuid.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen models.Actor
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = ActorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			HTTPMiddleware(next, testSecret).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, seen.AccountID)
		})
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong horse"), e.ErrUnauthenticated)

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, e.ErrInvalidInput)
}
