package candidate

import (
	"slices"
	"sync"
	"time"
)

// Candidate is a link found on a page that matched an inclusion pattern and no
// exclusion filter, and that has not been sent yet.
type Candidate struct {
	URL         string    `json:"url"`
	PatternID   string    `json:"patternId"`
	ElementText string    `json:"elementText"`
	Timestamp   time.Time `json:"timestamp"`
	// Hash is the fingerprint, empty when it could not be computed.
	Hash string `json:"hash,omitempty"`
}

// Store is the set of candidates of one page, keyed by URL. List returns
// candidates in insertion order.
type Store struct {
	mu    sync.RWMutex
	order []string
	items map[string]Candidate
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]Candidate)}
}

// Add inserts c unless its URL is already present. It reports whether c was added.
func (s *Store) Add(c Candidate) bool {
	if c.URL == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.URL]; ok {
		return false
	}
	s.items[c.URL] = c
	s.order = append(s.order, c.URL)
	return true
}

// Remove deletes the candidate with url and reports whether it existed.
func (s *Store) Remove(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[url]; !ok {
		return false
	}
	delete(s.items, url)
	if i := slices.Index(s.order, url); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Clear removes every candidate.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]Candidate)
	s.order = nil
}

// Replace atomically swaps the contents for cs, keeping the first of any
// duplicate URLs.
func (s *Store) Replace(cs []Candidate) {
	items := make(map[string]Candidate, len(cs))
	order := make([]string, 0, len(cs))
	for _, c := range cs {
		if _, ok := items[c.URL]; ok || c.URL == "" {
			continue
		}
		items[c.URL] = c
		order = append(order, c.URL)
	}

	s.mu.Lock()
	s.items = items
	s.order = order
	s.mu.Unlock()
}

// Has reports whether url is present.
func (s *Store) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[url]
	return ok
}

// List returns a snapshot of the candidates in insertion order.
func (s *Store) List() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, s.items[url])
	}
	return out
}

// URLs returns the candidate URLs in insertion order.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Len returns the number of candidates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
