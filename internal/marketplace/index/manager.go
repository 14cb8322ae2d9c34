package index

import (
	"sync/atomic"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names an indexed entity kind.
type Kind string

const (
	KindJob          Kind = "job"
	KindProfile      Kind = "profile"
	KindOrganization Kind = "organization"
)

var Kinds = []Kind{KindJob, KindProfile, KindOrganization}

// Categorical fields.
const (
	FieldSkill          = "skill"
	FieldRegion         = "region"
	FieldCategory       = "category"
	FieldEmploymentType = "employment_type"
)

// Manager holds one collection per kind. Only publicly visible jobs are
// indexed; every profile and organization is.
type Manager struct {
	collections map[Kind]*Collection
	ready       atomic.Bool
	logger      *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	m := &Manager{
		collections: make(map[Kind]*Collection, len(Kinds)),
		logger:      logger.Named("index"),
	}
	for _, k := range Kinds {
		m.collections[k] = NewCollection()
	}
	return m
}

func (m *Manager) Collection(kind Kind) *Collection {
	return m.collections[kind]
}

// Ready reports whether a full sweep has populated the indexes. Until then
// searches must not trust an empty result.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

func (m *Manager) markReady() {
	if !m.ready.Swap(true) {
		m.logger.Info("Index ready",
			zap.Int("jobs", m.collections[KindJob].Len()),
			zap.Int("profiles", m.collections[KindProfile].Len()),
			zap.Int("organizations", m.collections[KindOrganization].Len()))
	}
}

// IndexJob adds a visible job or drops an invisible one.
func (m *Manager) IndexJob(job *models.Job, now time.Time) {
	c := m.collections[KindJob]
	if !job.Visible(now) {
		c.Remove(job.ID)
		return
	}
	c.Put(JobDocument(job))
}

func (m *Manager) IndexProfile(p *models.Profile) {
	m.collections[KindProfile].Put(ProfileDocument(p))
}

func (m *Manager) IndexOrganization(o *models.Organization) {
	m.collections[KindOrganization].Put(OrganizationDocument(o))
}

func (m *Manager) Remove(kind Kind, id uuid.UUID) {
	if c, ok := m.collections[kind]; ok {
		c.Remove(id)
	}
}

func (m *Manager) Search(kind Kind, q Query) Result {
	return m.collections[kind].Search(q)
}

func JobDocument(j *models.Job) Document {
	pt := j.Location
	tags := map[string][]string{
		FieldSkill:          append([]string(nil), j.Skills...),
		FieldEmploymentType: {string(j.EmploymentType)},
	}
	if j.Region != "" {
		tags[FieldRegion] = []string{j.Region}
	}
	if j.Category != "" {
		tags[FieldCategory] = []string{j.Category}
	}
	return Document{
		ID:        j.ID,
		Point:     &pt,
		Title:     j.Title,
		Body:      j.Description,
		Tags:      tags,
		CreatedAt: j.CreatedAt,
		ExpiresAt: j.ExpiresAt,
	}
}

func ProfileDocument(p *models.Profile) Document {
	pt := p.Location
	return Document{
		ID:        p.ID,
		Point:     &pt,
		Title:     p.Headline,
		Body:      p.Summary,
		Tags:      map[string][]string{FieldSkill: append([]string(nil), p.Skills...)},
		CreatedAt: p.CreatedAt,
	}
}

func OrganizationDocument(o *models.Organization) Document {
	pt := o.Location
	return Document{
		ID:        o.ID,
		Point:     &pt,
		Title:     o.Name,
		Tags:      map[string][]string{FieldRegion: append([]string(nil), o.Regions...)},
		CreatedAt: o.CreatedAt,
	}
}
