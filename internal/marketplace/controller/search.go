package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/db"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	// maxFallbackScan bounds the rows read from the store when the index
	// cannot serve a search.
	maxFallbackScan = 1000
)

// Result sources.
const (
	SourceIndex = "index"
	SourceStore = "store"
)

// JobFilter is a typed job search request. Values within one list combine
// with OR; different fields combine with AND.
type JobFilter struct {
	Center          *models.Point           `json:"center"`
	RadiusKm        float64                 `json:"radius_km" validate:"gte=0,lte=20000"`
	Text            string                  `json:"text" validate:"max=200"`
	Skills          []string                `json:"skills" validate:"max=20,dive,required,max=64"`
	Regions         []string                `json:"regions" validate:"max=20,dive,required,max=100"`
	Categories      []string                `json:"categories" validate:"max=20,dive,required,max=100"`
	EmploymentTypes []models.EmploymentType `json:"employment_types" validate:"max=5,dive,oneof=full_time part_time seasonal contract temporary"`
	// Statuses other than approved are restricted to administrators.
	Statuses       []models.JobStatus `json:"statuses" validate:"max=4,dive,oneof=draft pending_review approved rejected"`
	OrganizationID *uuid.UUID         `json:"organization_id"`
	Limit          int                `json:"limit" validate:"gte=0,lte=100"`
	Offset         int                `json:"offset" validate:"gte=0"`
}

// CandidateFilter is a typed profile search request.
type CandidateFilter struct {
	Center   *models.Point `json:"center"`
	RadiusKm float64       `json:"radius_km" validate:"gte=0,lte=20000"`
	Text     string        `json:"text" validate:"max=200"`
	Skills   []string      `json:"skills" validate:"max=20,dive,required,max=64"`
	Limit    int           `json:"limit" validate:"gte=0,lte=100"`
	Offset   int           `json:"offset" validate:"gte=0"`
}

type OrganizationSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// JobView is a job joined with its organization and search annotations.
type JobView struct {
	ID             uuid.UUID             `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       string                `json:"category,omitempty"`
	EmploymentType models.EmploymentType `json:"employment_type"`
	Remote         bool                  `json:"remote"`
	Location       models.Point          `json:"location"`
	Region         string                `json:"region,omitempty"`
	Skills         []string              `json:"skills"`
	SalaryMin      float64               `json:"salary_min"`
	SalaryMax      float64               `json:"salary_max"`
	Currency       string                `json:"currency"`
	Status         models.JobStatus      `json:"status"`
	ExpiresAt      time.Time             `json:"expires_at"`
	CreatedAt      time.Time             `json:"created_at"`
	Organization   *OrganizationSummary  `json:"organization,omitempty"`
	DistanceKm     *float64              `json:"distance_km,omitempty"`
	Relevance      *index.Relevance      `json:"relevance,omitempty"`
}

type CandidateView struct {
	ProfileID  uuid.UUID        `json:"profile_id"`
	AccountID  uuid.UUID        `json:"account_id"`
	Headline   string           `json:"headline"`
	Summary    string           `json:"summary"`
	Skills     []string         `json:"skills"`
	Location   models.Point     `json:"location"`
	DistanceKm *float64         `json:"distance_km,omitempty"`
	Relevance  *index.Relevance `json:"relevance,omitempty"`
}

// Page is one page of ordered search results.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Total  int    `json:"total"`
	Source string `json:"source"`
}

// SearchService answers job and candidate searches from the local index,
// falling back to typed store queries while the index is warming up.
type SearchService struct {
	repo    Repository
	index   *index.Manager
	indexer *Indexer
	now     func() time.Time
	logger  *zap.Logger
}

func NewSearchService(repo Repository, idx *index.Manager, indexer *Indexer, logger *zap.Logger) *SearchService {
	return &SearchService{
		repo:    repo,
		index:   idx,
		indexer: indexer,
		now:     utcNow,
		logger:  logger.Named("search_service"),
	}
}

// SearchJobs returns jobs matching f. Only publicly visible jobs are returned
// unless an administrator filters by status.
func (s *SearchService) SearchJobs(ctx context.Context, actor models.Actor, f JobFilter) (*Page[JobView], error) {
	if err := validateGeo(f.Center, f.RadiusKm); err != nil {
		return nil, err
	}
	if err := models.Validate(&f); err != nil {
		return nil, err
	}
	if f.Limit == 0 {
		f.Limit = DefaultSearchLimit
	}

	moderated := len(f.Statuses) > 0 && !slices.Equal(f.Statuses, []models.JobStatus{models.JobApproved})
	if moderated && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may filter by status", e.ErrForbidden)
	}

	now := s.now()
	q := index.Query{
		Center:   f.Center,
		RadiusKm: f.RadiusKm,
		Terms:    index.Terms(f.Text),
		Tags:     jobTags(f),
		Now:      now,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}

	if moderated {
		q.Now = time.Time{}
		return s.searchJobsInStore(ctx, f, q, nil)
	}
	if !s.index.Ready() || f.OrganizationID != nil {
		return s.searchJobsInStore(ctx, f, q, &now)
	}
	return s.searchJobsInIndex(ctx, q, now)
}

func (s *SearchService) searchJobsInIndex(ctx context.Context, q index.Query, now time.Time) (*Page[JobView], error) {
	res := s.index.Search(index.KindJob, q)
	ids := make([]uuid.UUID, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	jobs, err := retry(ctx, func() ([]models.Job, error) { return s.repo.GetJobs(ctx, ids) })
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Job, len(jobs))
	for i := range jobs {
		byID[jobs[i].ID] = &jobs[i]
	}

	hits := make([]index.Hit, 0, len(res.Hits))
	ordered := make([]*models.Job, 0, len(res.Hits))
	total := res.Total
	for _, h := range res.Hits {
		job, ok := byID[h.ID]
		if !ok || !job.Visible(now) {
			// The index drifted from the store; drop the hit and let the
			// reconciler repair the entry.
			s.logger.Warn("Stale index entry", zap.String("job_id", h.ID.String()))
			s.indexer.Enqueue(index.KindJob, h.ID)
			total--
			continue
		}
		hits = append(hits, h)
		ordered = append(ordered, job)
	}

	items, err := s.jobViews(ctx, ordered, hits)
	if err != nil {
		return nil, err
	}
	return &Page[JobView]{Items: items, Total: total, Source: SourceIndex}, nil
}

// searchJobsInStore narrows candidates with a typed store query and orders
// them with a throwaway collection so both paths rank identically.
func (s *SearchService) searchJobsInStore(ctx context.Context, f JobFilter, q index.Query, visibleAt *time.Time) (*Page[JobView], error) {
	jq := db.JobQuery{
		Statuses:        f.Statuses,
		VisibleAt:       visibleAt,
		OrganizationID:  f.OrganizationID,
		EmploymentTypes: f.EmploymentTypes,
		Regions:         f.Regions,
		Categories:      f.Categories,
		Skills:          f.Skills,
		Terms:           q.Terms,
	}
	if len(q.Terms) == 0 && f.Center == nil {
		// Without relevance or distance the store already orders by
		// recency, so it pages and counts on its own.
		jq.Offset, jq.Limit = f.Offset, f.Limit
		return s.pageJobsInStore(ctx, jq)
	}
	jq.Limit = maxFallbackScan
	if f.Center != nil {
		jq.BBox = db.BoundingBox(*f.Center, f.RadiusKm)
	}
	jobs, err := retry(ctx, func() ([]models.Job, error) { return s.repo.QueryJobs(ctx, jq) })
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	if len(jobs) == maxFallbackScan {
		s.logger.Warn("Store search truncated", zap.Int("limit", maxFallbackScan))
	}

	c := index.NewCollection()
	byID := make(map[uuid.UUID]*models.Job, len(jobs))
	for i := range jobs {
		byID[jobs[i].ID] = &jobs[i]
		c.Put(index.JobDocument(&jobs[i]))
	}
	res := c.Search(q)
	ordered := make([]*models.Job, len(res.Hits))
	for i, h := range res.Hits {
		ordered[i] = byID[h.ID]
	}

	items, err := s.jobViews(ctx, ordered, res.Hits)
	if err != nil {
		return nil, err
	}
	return &Page[JobView]{Items: items, Total: res.Total, Source: SourceStore}, nil
}

func (s *SearchService) pageJobsInStore(ctx context.Context, jq db.JobQuery) (*Page[JobView], error) {
	jobs, err := retry(ctx, func() ([]models.Job, error) { return s.repo.QueryJobs(ctx, jq) })
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	total, err := retry(ctx, func() (int64, error) { return s.repo.CountJobs(ctx, jq) })
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	ordered := make([]*models.Job, len(jobs))
	hits := make([]index.Hit, len(jobs))
	for i := range jobs {
		ordered[i] = &jobs[i]
		hits[i] = index.Hit{ID: jobs[i].ID, CreatedAt: jobs[i].CreatedAt}
	}
	items, err := s.jobViews(ctx, ordered, hits)
	if err != nil {
		return nil, err
	}
	return &Page[JobView]{Items: items, Total: int(total), Source: SourceStore}, nil
}

func (s *SearchService) jobViews(ctx context.Context, jobs []*models.Job, hits []index.Hit) ([]JobView, error) {
	orgIDs := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		if !slices.Contains(orgIDs, j.OrganizationID) {
			orgIDs = append(orgIDs, j.OrganizationID)
		}
	}
	orgs, err := retry(ctx, func() ([]models.Organization, error) { return s.repo.GetOrganizations(ctx, orgIDs) })
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}
	summaries := make(map[uuid.UUID]*OrganizationSummary, len(orgs))
	for _, o := range orgs {
		summaries[o.ID] = &OrganizationSummary{ID: o.ID, Name: o.Name, Slug: o.Slug}
	}

	views := make([]JobView, len(jobs))
	for i, j := range jobs {
		views[i] = JobView{
			ID:             j.ID,
			Title:          j.Title,
			Description:    j.Description,
			Category:       j.Category,
			EmploymentType: j.EmploymentType,
			Remote:         j.Remote,
			Location:       j.Location,
			Region:         j.Region,
			Skills:         append([]string{}, j.Skills...),
			SalaryMin:      j.SalaryMin,
			SalaryMax:      j.SalaryMax,
			Currency:       j.Currency,
			Status:         j.Status,
			ExpiresAt:      j.ExpiresAt,
			CreatedAt:      j.CreatedAt,
			Organization:   summaries[j.OrganizationID],
			DistanceKm:     hits[i].DistanceKm,
			Relevance:      hits[i].Relevance,
		}
		if views[i].Organization == nil {
			s.logger.Warn("Job organization missing", zap.String("job_id", j.ID.String()))
		}
	}
	return views, nil
}

// SearchCandidates returns profiles matching f. Employers and administrators only.
func (s *SearchService) SearchCandidates(ctx context.Context, actor models.Actor, f CandidateFilter) (*Page[CandidateView], error) {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return nil, err
	}
	if err := validateGeo(f.Center, f.RadiusKm); err != nil {
		return nil, err
	}
	if err := models.Validate(&f); err != nil {
		return nil, err
	}
	if f.Limit == 0 {
		f.Limit = DefaultSearchLimit
	}

	q := index.Query{
		Center:   f.Center,
		RadiusKm: f.RadiusKm,
		Terms:    index.Terms(f.Text),
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
	if len(f.Skills) > 0 {
		q.Tags = map[string][]string{index.FieldSkill: models.NormalizeTags(f.Skills)}
	}

	source := SourceIndex
	var res index.Result
	var byID map[uuid.UUID]*models.Profile
	if s.index.Ready() {
		res = s.index.Search(index.KindProfile, q)
		ids := make([]uuid.UUID, len(res.Hits))
		for i, h := range res.Hits {
			ids[i] = h.ID
		}
		profiles, err := retry(ctx, func() ([]models.Profile, error) { return s.repo.GetProfiles(ctx, ids) })
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		byID = profileMap(profiles)
	} else {
		source = SourceStore
		pq := db.ProfileQuery{Skills: f.Skills, Terms: q.Terms, Limit: maxFallbackScan}
		if f.Center != nil {
			pq.BBox = db.BoundingBox(*f.Center, f.RadiusKm)
		}
		profiles, err := retry(ctx, func() ([]models.Profile, error) { return s.repo.QueryProfiles(ctx, pq) })
		if err != nil {
			return nil, fmt.Errorf("failed to query profiles: %w", err)
		}
		c := index.NewCollection()
		for i := range profiles {
			c.Put(index.ProfileDocument(&profiles[i]))
		}
		res = c.Search(q)
		byID = profileMap(profiles)
	}

	items := make([]CandidateView, 0, len(res.Hits))
	total := res.Total
	for _, h := range res.Hits {
		p, ok := byID[h.ID]
		if !ok {
			s.logger.Warn("Stale index entry", zap.String("profile_id", h.ID.String()))
			s.indexer.Enqueue(index.KindProfile, h.ID)
			total--
			continue
		}
		items = append(items, CandidateView{
			ProfileID:  p.ID,
			AccountID:  p.AccountID,
			Headline:   p.Headline,
			Summary:    p.Summary,
			Skills:     append([]string{}, p.Skills...),
			Location:   p.Location,
			DistanceKm: h.DistanceKm,
			Relevance:  h.Relevance,
		})
	}
	return &Page[CandidateView]{Items: items, Total: total, Source: source}, nil
}

func profileMap(profiles []models.Profile) map[uuid.UUID]*models.Profile {
	out := make(map[uuid.UUID]*models.Profile, len(profiles))
	for i := range profiles {
		out[profiles[i].ID] = &profiles[i]
	}
	return out
}

func jobTags(f JobFilter) map[string][]string {
	tags := make(map[string][]string)
	if len(f.Skills) > 0 {
		tags[index.FieldSkill] = models.NormalizeTags(f.Skills)
	}
	if len(f.Regions) > 0 {
		tags[index.FieldRegion] = models.NormalizeTags(f.Regions)
	}
	if len(f.Categories) > 0 {
		tags[index.FieldCategory] = models.NormalizeTags(f.Categories)
	}
	if len(f.EmploymentTypes) > 0 {
		types := make([]string, len(f.EmploymentTypes))
		for i, t := range f.EmploymentTypes {
			types[i] = string(t)
		}
		tags[index.FieldEmploymentType] = types
	}
	return tags
}

func validateGeo(center *models.Point, radiusKm float64) error {
	if center == nil {
		if radiusKm != 0 {
			return e.Invalid("center", "is required with radius_km")
		}
		return nil
	}
	if radiusKm <= 0 {
		return e.Invalid("radius_km", "must be positive with center")
	}
	if err := models.Validate(center); err != nil {
		var ve *e.ValidationError
		if errors.As(err, &ve) {
			return e.Invalid("center."+ve.Field, ve.Reason)
		}
		return err
	}
	return nil
}
