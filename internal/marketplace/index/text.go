package index

import "github.com/google/uuid"

// Field weights: a title hit counts twice as much as a body hit.
const (
	titleWeight = 2.0
	bodyWeight  = 1.0
)

// textIndex is an inverted index from term to weighted term frequency.
type textIndex struct {
	postings map[string]map[uuid.UUID]float64
	terms    map[uuid.UUID][]string
}

func newTextIndex() *textIndex {
	return &textIndex{
		postings: make(map[string]map[uuid.UUID]float64),
		terms:    make(map[uuid.UUID][]string),
	}
}

func (t *textIndex) put(id uuid.UUID, title, body string) {
	t.remove(id)
	freq := make(map[string]float64)
	for _, tok := range Tokenize(title) {
		freq[tok] += titleWeight
	}
	for _, tok := range Tokenize(body) {
		freq[tok] += bodyWeight
	}
	terms := make([]string, 0, len(freq))
	for term, f := range freq {
		posting, ok := t.postings[term]
		if !ok {
			posting = make(map[uuid.UUID]float64)
			t.postings[term] = posting
		}
		posting[id] = f
		terms = append(terms, term)
	}
	t.terms[id] = terms
}

func (t *textIndex) remove(id uuid.UUID) {
	for _, term := range t.terms[id] {
		if posting, ok := t.postings[term]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(t.postings, term)
			}
		}
	}
	delete(t.terms, id)
}

// Relevance orders text matches: more distinct query terms first, then
// higher weighted frequency.
type Relevance struct {
	Matched int     `json:"matched"`
	Weight  float64 `json:"weight"`
}

func (r Relevance) Less(o Relevance) bool {
	if r.Matched != o.Matched {
		return r.Matched < o.Matched
	}
	return r.Weight < o.Weight
}

// match scores every document holding at least one of terms.
func (t *textIndex) match(terms []string) map[uuid.UUID]Relevance {
	out := make(map[uuid.UUID]Relevance)
	for _, term := range terms {
		for id, f := range t.postings[term] {
			r := out[id]
			r.Matched++
			r.Weight += f
			out[id] = r
		}
	}
	return out
}
