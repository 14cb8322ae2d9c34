package index

import (
	"slices"
	"sync"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

// Document is the indexed form of one entity.
type Document struct {
	ID    uuid.UUID
	Point *models.Point
	Title string
	Body  string
	// Tags holds the categorical values per field, already normalized.
	Tags      map[string][]string
	CreatedAt time.Time
	// ExpiresAt hides the document once passed. Zero never expires.
	ExpiresAt time.Time
}

// Query is a typed search over one collection. Filters combine with AND;
// the values of one Tags field combine with OR.
type Query struct {
	Center   *models.Point
	RadiusKm float64
	Terms    []string
	Tags     map[string][]string
	Now      time.Time
	Limit    int
	Offset   int
}

// Hit is one ordered search result.
type Hit struct {
	ID         uuid.UUID
	DistanceKm *float64
	Relevance  *Relevance
	CreatedAt  time.Time
}

// Result is a page of hits and the total number of matches.
type Result struct {
	Hits  []Hit
	Total int
}

type meta struct {
	createdAt time.Time
	expiresAt time.Time
}

// Collection indexes one entity kind. It is safe for concurrent use.
type Collection struct {
	mu    sync.RWMutex
	docs  map[uuid.UUID]meta
	geo   *geoIndex
	text  *textIndex
	cat   *categoricalIndex
	dirty map[uuid.UUID]struct{}
}

func NewCollection() *Collection {
	return &Collection{
		docs: make(map[uuid.UUID]meta),
		geo:  newGeoIndex(),
		text: newTextIndex(),
		cat:  newCategoricalIndex(),
	}
}

func (c *Collection) Put(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(doc)
	c.touch(doc.ID)
}

func (c *Collection) put(doc Document) {
	c.docs[doc.ID] = meta{createdAt: doc.CreatedAt, expiresAt: doc.ExpiresAt}
	if doc.Point != nil {
		c.geo.put(doc.ID, *doc.Point)
	} else {
		c.geo.remove(doc.ID)
	}
	c.text.put(doc.ID, doc.Title, doc.Body)
	c.cat.put(doc.ID, doc.Tags)
}

func (c *Collection) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
	c.touch(id)
}

func (c *Collection) remove(id uuid.UUID) {
	delete(c.docs, id)
	c.geo.remove(id)
	c.text.remove(id)
	c.cat.remove(id)
}

func (c *Collection) Contains(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[id]
	return ok
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// touch records a write made while a rebuild is in flight.
func (c *Collection) touch(id uuid.UUID) {
	if c.dirty != nil {
		c.dirty[id] = struct{}{}
	}
}

// BeginRebuild starts recording writes so that Replace can report them.
func (c *Collection) BeginRebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = make(map[uuid.UUID]struct{})
}

// AbortRebuild stops recording writes without replacing anything.
func (c *Collection) AbortRebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = nil
}

// Replace swaps the contents for docs and returns the ids written since
// BeginRebuild. Their state in docs may be stale and should be refreshed.
func (c *Collection) Replace(docs []Document) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[uuid.UUID]meta, len(docs))
	c.geo = newGeoIndex()
	c.text = newTextIndex()
	c.cat = newCategoricalIndex()
	for _, doc := range docs {
		c.put(doc)
	}
	touched := make([]uuid.UUID, 0, len(c.dirty))
	for id := range c.dirty {
		touched = append(touched, id)
	}
	c.dirty = nil
	return touched
}

// Search evaluates q. Ordering is relevance when terms are given, else
// distance when a center is given, else newest first; ties fall back to
// newest first and then id.
func (c *Collection) Search(q Query) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	candidates, filtered := c.cat.allFields(q.Tags)

	var distances map[uuid.UUID]float64
	if q.Center != nil {
		distances = c.geo.within(*q.Center, q.RadiusKm)
		candidates = intersect(candidates, filtered, keys(distances))
		filtered = true
	}

	var relevance map[uuid.UUID]Relevance
	if len(q.Terms) > 0 {
		relevance = c.text.match(q.Terms)
		candidates = intersect(candidates, filtered, keys(relevance))
		filtered = true
	}

	if !filtered {
		candidates = make(idSet, len(c.docs))
		for id := range c.docs {
			candidates[id] = struct{}{}
		}
	}

	hits := make([]Hit, 0, len(candidates))
	for id := range candidates {
		m, ok := c.docs[id]
		if !ok {
			continue
		}
		if !m.expiresAt.IsZero() && !q.Now.IsZero() && !m.expiresAt.After(q.Now) {
			continue
		}
		hit := Hit{ID: id, CreatedAt: m.createdAt}
		if d, ok := distances[id]; ok {
			hit.DistanceKm = &d
		}
		if r, ok := relevance[id]; ok {
			hit.Relevance = &r
		}
		hits = append(hits, hit)
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case relevance != nil:
			if b.Relevance.Less(*a.Relevance) {
				return -1
			}
			if a.Relevance.Less(*b.Relevance) {
				return 1
			}
		case distances != nil:
			if *a.DistanceKm < *b.DistanceKm {
				return -1
			}
			if *a.DistanceKm > *b.DistanceKm {
				return 1
			}
		}
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	return Result{Hits: page(hits, q.Offset, q.Limit), Total: len(hits)}
}

func keys[V any](m map[uuid.UUID]V) idSet {
	out := make(idSet, len(m))
	for id := range m {
		out[id] = struct{}{}
	}
	return out
}

// intersect narrows acc by next. When acc holds no filter yet, next is the result.
func intersect(acc idSet, filtered bool, next idSet) idSet {
	if !filtered {
		return next
	}
	for id := range acc {
		if _, ok := next[id]; !ok {
			delete(acc, id)
		}
	}
	return acc
}

func page(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}
