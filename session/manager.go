package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/candidate"
	"github.com/s0up4200/torrentsnag/fingerprint"
	"github.com/s0up4200/torrentsnag/matcher"
)

// DefaultDebounceDelay is the quiet period before a mutation triggers a rescan.
const DefaultDebounceDelay = 500 * time.Millisecond

// Deduper answers whether a fingerprint was already sent.
type Deduper interface {
	Has(ctx context.Context, fingerprint string) bool
}

// Rules is the matcher configuration shared by every session.
type Rules struct {
	Patterns      []matcher.Rule
	Filters       []matcher.Rule
	Budget        matcher.Budget
	DebounceDelay time.Duration
}

type armedRules struct {
	compiled *matcher.Compiled
	budget   matcher.Budget
	debounce time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithFingerprinter replaces the fingerprint engine.
func WithFingerprinter(e *fingerprint.Engine) Option {
	return func(m *Manager) {
		m.fp = e
	}
}

// WithDetectedHook registers a function called with a context's candidate count
// whenever it changes.
func WithDetectedHook(fn func(contextID string, count int)) Option {
	return func(m *Manager) {
		m.onDetected = fn
	}
}

// Manager owns the scan sessions, one per document context.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	rules      atomic.Pointer[armedRules]
	dedup      Deduper
	fp         *fingerprint.Engine
	onDetected func(contextID string, count int)
	logger     zerolog.Logger
}

// NewManager creates a Manager. Configure must be called before scanning.
func NewManager(dedup Deduper, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		dedup:    dedup,
		fp:       fingerprint.New(nil),
		logger:   logger.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.rules.Store(&armedRules{compiled: &matcher.Compiled{}, debounce: DefaultDebounceDelay})
	return m
}

// Configure compiles rules for subsequent scans. On error the previous rules
// stay armed.
func (m *Manager) Configure(r Rules) error {
	compiled, err := matcher.Compile(r.Patterns, r.Filters)
	if err != nil {
		return err
	}

	debounce := r.DebounceDelay
	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}

	m.rules.Store(&armedRules{compiled: compiled, budget: r.Budget, debounce: debounce})
	m.logger.Debug().
		Int("patterns", compiled.Patterns()).
		Int("filters", compiled.Filters()).
		Msg("Armed pattern matcher")
	return nil
}

// Rearm applies new rules and rescans every session with its last link set.
func (m *Manager) Rearm(ctx context.Context, r Rules) error {
	if err := m.Configure(r); err != nil {
		return err
	}

	for _, s := range m.all() {
		links := s.LastLinks()
		if links == nil {
			continue
		}
		if _, err := s.Scan(ctx, links); err != nil && !errors.Is(err, ErrScanInProgress) && !errors.Is(err, ErrSuperseded) {
			m.logger.Warn().Err(err).Str("context", s.id).Msg("Rescan after configuration change failed")
		}
	}
	return nil
}

// Session returns the session for id, creating it when needed.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, m)
		m.sessions[id] = s
	}
	return s
}

// Lookup returns the session for id if it exists.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// IDs returns the known context ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Candidates returns the candidates of context id.
func (m *Manager) Candidates(id string) []candidate.Candidate {
	s, ok := m.Lookup(id)
	if !ok {
		return nil
	}
	return s.Candidates()
}

// Clear empties the candidate store of context id.
func (m *Manager) Clear(id string) {
	if s, ok := m.Lookup(id); ok {
		s.Clear()
	}
}

// Close stops and forgets the session for id.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Shutdown stops every session.
func (m *Manager) Shutdown() {
	for _, s := range m.all() {
		s.stop()
	}
}

func (m *Manager) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) detected(id string, count int) {
	if m.onDetected != nil {
		m.onDetected(id, count)
	}
}
