package models

import (
	"errors"
	"testing"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corporation", "acme-corporation"},
		{"  Globex   Inc!! ", "globex-inc"},
		{"Café Ñandú", "cafe-nandu"},
		{"a--b", "a-b"},
		{"Farm #42", "farm-42"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Slugify(got))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "foo@example.com", NormalizeEmail(" Foo@Example.COM "))
	assert.Equal(t, []string{"pruning", "harvest"}, NormalizeTags([]string{" Pruning", "pruning", "", "HARVEST"}))
	assert.NotNil(t, NormalizeTags(nil))
	assert.Empty(t, NormalizeTags(nil))

	acc := &Account{Email: "Grower@Farm.Test", Roles: []Role{RoleEmployer, RoleEmployer, RoleAdmin}}
	acc.Normalize()
	assert.Equal(t, "grower@farm.test", acc.EmailKey)
	assert.Equal(t, []Role{RoleEmployer, RoleAdmin}, []Role(acc.Roles))

	org := &Organization{Name: "Sunfield Farms", Regions: []string{"Central Valley", "central valley"}}
	org.Normalize()
	assert.Equal(t, "sunfield-farms", org.Slug)
	assert.Equal(t, []string{"central valley"}, []string(org.Regions))
	assert.NotNil(t, org.ManagerIDs)
}

func validJob() *Job {
	return &Job{
		OrganizationID: uuid.New(),
		CreatedBy:      uuid.New(),
		Title:          "Picker",
		Description:    "Stone fruit harvest",
		EmploymentType: Seasonal,
		Location:       Point{Lng: -119.7, Lat: 36.7},
		SalaryMin:      18,
		SalaryMax:      22,
		Currency:       "USD",
		Status:         JobDraft,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(j *Job)
		wantField string
	}{
		{"valid", func(*Job) {}, ""},
		{"missing title", func(j *Job) { j.Title = "" }, "title"},
		{"salary range", func(j *Job) { j.SalaryMax = 10 }, "salary_max"},
		{"lower case currency", func(j *Job) { j.Currency = "usd" }, "currency"},
		{"latitude out of range", func(j *Job) { j.Location.Lat = 91 }, "location.lat"},
		{"unknown employment type", func(j *Job) { j.EmploymentType = "gig" }, "employment_type"},
		{"empty skill", func(j *Job) { j.Skills = []string{""} }, "skills[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := validJob()
			tt.mutate(j)
			err := Validate(j)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, e.ErrInvalidInput))
			var ve *e.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}

	j := validJob()
	j.Title = ""
	var ve *e.ValidationError
	require.ErrorAs(t, Validate(j), &ve)
	assert.Equal(t, "is required", ve.Reason)
}

func TestJobVisible(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status JobStatus
		active bool
		expiry time.Time
		want   bool
	}{
		{"approved and open", JobApproved, true, now.Add(time.Hour), true},
		{"pending", JobPendingReview, true, now.Add(time.Hour), false},
		{"rejected", JobRejected, true, now.Add(time.Hour), false},
		{"closed", JobApproved, false, now.Add(time.Hour), false},
		{"expired", JobApproved, true, now.Add(-time.Second), false},
		{"expires now", JobApproved, true, now, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Job{Status: tt.status, Active: tt.active, ExpiresAt: tt.expiry}
			assert.Equal(t, tt.want, j.Visible(now))
		})
	}
}

func TestNewJobAndApply(t *testing.T) {
	orgID, author := uuid.New(), uuid.New()
	j := NewJob(orgID, author, JobFields{Title: "Picker", SubmitForReview: true})
	assert.Equal(t, JobPendingReview, j.Status)
	assert.True(t, j.Active)
	assert.Equal(t, orgID, j.OrganizationID)
	assert.Equal(t, JobDraft, NewJob(orgID, author, JobFields{}).Status)

	u := &JobUpdate{Title: utils.Ptr("Lead picker"), Active: utils.Ptr(false), Skills: &[]string{"ladders"}}
	u.Apply(j)
	assert.Equal(t, "Lead picker", j.Title)
	assert.False(t, j.Active)
	assert.Equal(t, []string{"ladders"}, []string(j.Skills))
	assert.Equal(t, JobPendingReview, j.Status)
}

func TestOrganizationManages(t *testing.T) {
	owner, manager := uuid.New(), uuid.New()
	org := &Organization{OwnerID: owner, ManagerIDs: []uuid.UUID{manager}}
	assert.True(t, org.Manages(owner))
	assert.True(t, org.Manages(manager))
	assert.False(t, org.Manages(uuid.New()))
}

func TestActor(t *testing.T) {
	assert.True(t, Actor{}.Anonymous())
	admin := Actor{AccountID: uuid.New(), Roles: []Role{RoleAdmin}}
	assert.False(t, admin.Anonymous())
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.Has(RoleEmployer))
}

func TestApplicationStatusTerminal(t *testing.T) {
	for _, s := range []ApplicationStatus{ApplicationRejected, ApplicationHired} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []ApplicationStatus{ApplicationSubmitted, ApplicationReview, ApplicationInterview, ApplicationOffer} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestDistanceKm(t *testing.T) {
	fresno := Point{Lng: -119.7871, Lat: 36.7378}
	sacramento := Point{Lng: -121.4944, Lat: 38.5816}

	assert.Zero(t, DistanceKm(fresno, fresno))
	assert.InDelta(t, 254, DistanceKm(fresno, sacramento), 5)
	assert.InDelta(t, DistanceKm(fresno, sacramento), DistanceKm(sacramento, fresno), 1e-9)
	assert.InDelta(t, 20015.1, DistanceKm(Point{}, Point{Lng: 180}), 1)
}

func TestBoundingBox(t *testing.T) {
	minLat, maxLat, minLng, maxLng := BoundingBox(Point{}, 111.195)
	assert.InDelta(t, -1, minLat, 0.01)
	assert.InDelta(t, 1, maxLat, 0.01)
	assert.InDelta(t, -1, minLng, 0.01)
	assert.InDelta(t, 1, maxLng, 0.01)

	minLat, maxLat, minLng, maxLng = BoundingBox(Point{Lat: 89.5}, 100)
	assert.Less(t, minLat, 89.5)
	assert.Equal(t, 90.0, maxLat)
	assert.Equal(t, -180.0, minLng)
	assert.Equal(t, 180.0, maxLng)

	_, _, minLng, maxLng = BoundingBox(Point{Lat: 60, Lng: 10}, 111.195)
	assert.InDelta(t, 8, minLng, 0.02)
	assert.InDelta(t, 12, maxLng, 0.02)
}
