package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/s0up4200/torrentsnag/candidate"
	"github.com/s0up4200/torrentsnag/matcher"
)

var (
	// ErrScanInProgress is returned when a scan is requested while another one runs.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrSuperseded is returned when the page navigated while a scan was running.
	// The scan's results were discarded.
	ErrSuperseded = errors.New("scan superseded by navigation")
)

// Session is the scan state of one document context.
type Session struct {
	id    string
	m     *Manager
	store *candidate.Store

	mu         sync.Mutex
	url        string
	generation uint64
	scanning   bool
	lastLinks  []matcher.Link

	// debounced rescan
	timer      *time.Timer
	pending    []matcher.Link
	pendingGen uint64
	stopped    bool
}

func newSession(id string, m *Manager) *Session {
	return &Session{id: id, m: m, store: candidate.NewStore()}
}

// ID returns the context id.
func (s *Session) ID() string { return s.id }

// URL returns the current document URL.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Generation increments on every navigation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Navigate records that the context now shows url. When url differs from the
// current one the candidates are cleared, any pending rescan is dropped and
// in-flight scans are invalidated. It reports whether the URL changed.
func (s *Session) Navigate(url string) bool {
	s.mu.Lock()
	if url == s.url {
		s.mu.Unlock()
		return false
	}

	s.url = url
	s.generation++
	s.lastLinks = nil
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.store.Clear()
	s.mu.Unlock()

	s.m.logger.Debug().Str("context", s.id).Str("url", url).Msg("Context navigated")
	s.m.detected(s.id, 0)
	return true
}

// Scan matches links against the armed rules, drops links that were already
// sent and adds the rest to the candidate store. It returns how many candidates
// were added.
func (s *Session) Scan(ctx context.Context, links []matcher.Link) (int, error) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return 0, ErrScanInProgress
	}
	s.scanning = true
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	rules := s.m.rules.Load()
	found, err := rules.compiled.Scan(ctx, links, rules.budget)
	if err != nil {
		return 0, err
	}

	fresh := found[:0]
	for _, c := range found {
		hash, err := s.m.fp.Fingerprint(c.URL)
		if err != nil {
			// unknown fingerprint: keep the candidate
			s.m.logger.Debug().Err(err).Str("url", c.URL).Msg("Could not fingerprint link")
			fresh = append(fresh, c)
			continue
		}
		c.Hash = hash
		if s.m.dedup != nil && s.m.dedup.Has(ctx, hash) {
			continue
		}
		fresh = append(fresh, c)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return 0, ErrSuperseded
	}
	added := 0
	for _, c := range fresh {
		if s.store.Add(c) {
			added++
		}
	}
	s.lastLinks = links
	count := s.store.Len()
	s.mu.Unlock()

	s.m.logger.Debug().
		Str("context", s.id).
		Int("links", len(links)).
		Int("matched", len(found)).
		Int("added", added).
		Msg("Scanned document")

	if added > 0 {
		s.m.detected(s.id, count)
	}
	return added, nil
}

// Notify signals that the document changed. Bursts of signals are coalesced into
// one scan of the most recent links after the debounce delay.
func (s *Session) Notify(links []matcher.Link) {
	delay := s.m.rules.Load().debounce

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.pending = links
	s.pendingGen = s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.flush)
}

func (s *Session) flush() {
	s.mu.Lock()
	links := s.pending
	gen := s.pendingGen
	current := s.generation
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if links == nil || gen != current {
		return
	}

	_, err := s.Scan(context.Background(), links)
	switch {
	case errors.Is(err, ErrScanInProgress):
		s.requeue(links, gen)
	case errors.Is(err, ErrSuperseded):
	case err != nil:
		s.m.logger.Warn().Err(err).Str("context", s.id).Msg("Debounced rescan failed")
	}
}

// requeue re-arms the debounce for links unless a newer set is already pending.
func (s *Session) requeue(links []matcher.Link, gen uint64) {
	delay := s.m.rules.Load().debounce

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.pending != nil || gen != s.generation {
		return
	}
	s.pending = links
	s.pendingGen = gen
	s.timer = time.AfterFunc(delay, s.flush)
}

// Candidates returns the current candidates.
func (s *Session) Candidates() []candidate.Candidate {
	return s.store.List()
}

// Remove drops a single candidate.
func (s *Session) Remove(url string) bool {
	removed := s.store.Remove(url)
	if removed {
		s.m.detected(s.id, s.store.Len())
	}
	return removed
}

// Clear drops every candidate.
func (s *Session) Clear() {
	s.store.Clear()
	s.m.detected(s.id, 0)
}

// LastLinks returns the links of the last committed scan.
func (s *Session) LastLinks() []matcher.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLinks
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
