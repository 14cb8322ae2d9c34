package index

import "github.com/google/uuid"

type idSet = map[uuid.UUID]struct{}

// categoricalIndex maps field -> value -> ids.
type categoricalIndex struct {
	values map[string]map[string]idSet
	docs   map[uuid.UUID]map[string][]string
}

func newCategoricalIndex() *categoricalIndex {
	return &categoricalIndex{
		values: make(map[string]map[string]idSet),
		docs:   make(map[uuid.UUID]map[string][]string),
	}
}

func (c *categoricalIndex) put(id uuid.UUID, tags map[string][]string) {
	c.remove(id)
	for field, vals := range tags {
		byValue, ok := c.values[field]
		if !ok {
			byValue = make(map[string]idSet)
			c.values[field] = byValue
		}
		for _, v := range vals {
			set, ok := byValue[v]
			if !ok {
				set = make(idSet)
				byValue[v] = set
			}
			set[id] = struct{}{}
		}
	}
	c.docs[id] = tags
}

func (c *categoricalIndex) remove(id uuid.UUID) {
	for field, vals := range c.docs[id] {
		for _, v := range vals {
			if set, ok := c.values[field][v]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(c.values[field], v)
				}
			}
		}
	}
	delete(c.docs, id)
}

// anyOf is the union of the sets of values within one field.
func (c *categoricalIndex) anyOf(field string, vals []string) idSet {
	out := make(idSet)
	for _, v := range vals {
		for id := range c.values[field][v] {
			out[id] = struct{}{}
		}
	}
	return out
}

// allFields intersects anyOf across every filtered field. ok is false when
// no field is filtered.
func (c *categoricalIndex) allFields(filters map[string][]string) (idSet, bool) {
	var out idSet
	for field, vals := range filters {
		if len(vals) == 0 {
			continue
		}
		set := c.anyOf(field, vals)
		if out == nil {
			out = set
			continue
		}
		for id := range out {
			if _, ok := set[id]; !ok {
				delete(out, id)
			}
		}
	}
	return out, out != nil
}
