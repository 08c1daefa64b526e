package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/labelrule"
	"github.com/s0up4200/torrentsnag/matcher"
)

// Rule id prefixes
const (
	PatternIDPrefix = "custom-"
	FilterIDPrefix  = "filter-"
)

// RuleUpdate changes the fields that are set.
type RuleUpdate struct {
	Name    *string
	Regex   *string
	Enabled *bool
}

// Service reads and writes settings. Every mutation reloads the stored
// document right before applying the change, so the last writer wins per
// field group rather than per document snapshot.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	listeners []func(*Settings)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for export dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service over repo.
func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger.With().Str("component", "settings").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called with the new settings after every save.
func (s *Service) OnChange(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns the stored settings merged over the defaults.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	doc, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	cfg := Defaults()
	if len(doc) == 0 {
		return cfg, nil
	}
	defaults := Defaults()
	cfg.Patterns, cfg.Filters = nil, nil
	if err := json.Unmarshal(doc, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if cfg.Patterns == nil {
		cfg.Patterns = defaults.Patterns
	}
	if cfg.Filters == nil {
		cfg.Filters = defaults.Filters
	}
	if cfg.Handlers == nil {
		cfg.Handlers = defaults.Handlers
	}
	cfg.Patterns = ensureBuiltins(cfg.Patterns, builtinPatterns)
	cfg.Filters = ensureBuiltins(cfg.Filters, builtinFilters)
	return cfg, nil
}

// update runs fn on freshly loaded settings, validates and saves the result,
// then notifies listeners.
func (s *Service) update(ctx context.Context, fn func(*Settings) error) (*Settings, error) {
	s.mu.Lock()

	cfg, err := s.Get(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := fn(cfg); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.save(ctx, cfg); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	listeners := append([]func(*Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(cfg.Clone())
	}
	return cfg, nil
}

func (s *Service) save(ctx context.Context, cfg *Settings) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.repo.SaveSettings(ctx, doc); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.logger.Debug().Int("patterns", len(cfg.Patterns)).Int("filters", len(cfg.Filters)).Msg("Settings saved")
	return nil
}

// Validate checks every pattern, filter and label rule.
func Validate(cfg *Settings) error {
	for _, group := range [][]matcher.Rule{cfg.Patterns, cfg.Filters} {
		for _, r := range group {
			if err := matcher.ValidateRegex(r.Regex); err != nil {
				return &ValidationError{RuleID: r.ID, Name: r.Name, Err: err}
			}
		}
	}
	for _, r := range cfg.LabelRules {
		if _, err := labelrule.NewCompiler(labelrule.WithCache(0)).Compile(r.Expression); err != nil {
			return fmt.Errorf("label rule %q: %w", r.Label, err)
		}
	}
	return nil
}

// Reset restores the factory settings.
func (s *Service) Reset(ctx context.Context) (*Settings, error) {
	return s.update(ctx, func(cfg *Settings) error {
		*cfg = *Defaults()
		return nil
	})
}

// AddPattern adds an enabled custom pattern.
func (s *Service) AddPattern(ctx context.Context, name, regex string) (matcher.Rule, error) {
	return s.addRule(ctx, patterns, PatternIDPrefix, name, regex)
}

// UpdatePattern changes a pattern. Built-in patterns may be toggled and edited.
func (s *Service) UpdatePattern(ctx context.Context, id string, u RuleUpdate) error {
	return s.updateRule(ctx, patterns, id, u)
}

// RemovePattern deletes a custom pattern.
func (s *Service) RemovePattern(ctx context.Context, id string) error {
	return s.removeRule(ctx, patterns, id)
}

// AddFilter adds an enabled custom filter.
func (s *Service) AddFilter(ctx context.Context, name, regex string) (matcher.Rule, error) {
	return s.addRule(ctx, filters, FilterIDPrefix, name, regex)
}

// UpdateFilter changes a filter.
func (s *Service) UpdateFilter(ctx context.Context, id string, u RuleUpdate) error {
	return s.updateRule(ctx, filters, id, u)
}

// RemoveFilter deletes a custom filter.
func (s *Service) RemoveFilter(ctx context.Context, id string) error {
	return s.removeRule(ctx, filters, id)
}

type ruleGroup func(*Settings) *[]matcher.Rule

var (
	patterns ruleGroup = func(s *Settings) *[]matcher.Rule { return &s.Patterns }
	filters  ruleGroup = func(s *Settings) *[]matcher.Rule { return &s.Filters }
)

func (s *Service) addRule(ctx context.Context, group ruleGroup, prefix, name, regex string) (matcher.Rule, error) {
	rule := matcher.Rule{
		ID:      NewRuleID(prefix),
		Name:    strings.TrimSpace(name),
		Regex:   regex,
		Enabled: true,
	}
	if rule.Name == "" {
		return matcher.Rule{}, ErrMissingName
	}

	_, err := s.update(ctx, func(cfg *Settings) error {
		rules := group(cfg)
		*rules = append(*rules, rule)
		return nil
	})
	if err != nil {
		return matcher.Rule{}, err
	}
	return rule, nil
}

func (s *Service) updateRule(ctx context.Context, group ruleGroup, id string, u RuleUpdate) error {
	_, err := s.update(ctx, func(cfg *Settings) error {
		rules := *group(cfg)
		for i := range rules {
			if rules[i].ID != id {
				continue
			}
			if u.Name != nil {
				rules[i].Name = *u.Name
			}
			if u.Regex != nil {
				rules[i].Regex = *u.Regex
			}
			if u.Enabled != nil {
				rules[i].Enabled = *u.Enabled
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	})
	return err
}

func (s *Service) removeRule(ctx context.Context, group ruleGroup, id string) error {
	_, err := s.update(ctx, func(cfg *Settings) error {
		rules := group(cfg)
		for i, r := range *rules {
			if r.ID != id {
				continue
			}
			if r.Builtin {
				return fmt.Errorf("%w: %s", ErrBuiltinRule, r.Name)
			}
			*rules = append((*rules)[:i], (*rules)[i+1:]...)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	})
	return err
}

// SelectHandler makes kind the dispatch target.
func (s *Service) SelectHandler(ctx context.Context, kind string) error {
	if !IsKnownKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownHandler, kind)
	}
	_, err := s.update(ctx, func(cfg *Settings) error {
		cfg.SelectedHandler = kind
		return nil
	})
	return err
}

// UpdateHandler applies fn to the configuration of kind.
func (s *Service) UpdateHandler(ctx context.Context, kind string, fn func(*HandlerConfig)) error {
	if !IsKnownKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownHandler, kind)
	}
	_, err := s.update(ctx, func(cfg *Settings) error {
		h := cfg.Handlers[kind]
		fn(&h)
		cfg.Handlers[kind] = h
		return nil
	})
	return err
}

// SetPerformance stores p after clamping it.
func (s *Service) SetPerformance(ctx context.Context, p Performance) (Performance, error) {
	p = p.Clamp()
	_, err := s.update(ctx, func(cfg *Settings) error {
		cfg.Performance = p
		return nil
	})
	return p, err
}

// SetLabelRules replaces the label rules.
func (s *Service) SetLabelRules(ctx context.Context, rules []labelrule.Rule) error {
	_, err := s.update(ctx, func(cfg *Settings) error {
		cfg.LabelRules = rules
		return nil
	})
	return err
}

// NewRuleID returns prefix followed by a time ordered UUID.
func NewRuleID(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}
