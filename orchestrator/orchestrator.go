// Package orchestrator connects detected candidates to the selected backend and
// records what was sent.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/candidate"
	"github.com/s0up4200/torrentsnag/fingerprint"
	"github.com/s0up4200/torrentsnag/handlers"
	"github.com/s0up4200/torrentsnag/labelrule"
	"github.com/s0up4200/torrentsnag/metrics"
	"github.com/s0up4200/torrentsnag/settings"
)

// ErrNoLinks is returned when there is nothing to dispatch.
var ErrNoLinks = errors.New("no new torrents found")

// SettingsSource returns the current settings.
type SettingsSource interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Recorder stores fingerprints of sent links.
type Recorder interface {
	Record(ctx context.Context, fp string, metadata map[string]string)
}

// Sessions gives access to the candidates of a context.
type Sessions interface {
	Candidates(contextID string) []candidate.Candidate
	Clear(contextID string)
}

// Factory builds a handler from its configuration.
type Factory func(kind string, cfg settings.HandlerConfig) (backend.Handler, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithFactory replaces the handler factory.
func WithFactory(f Factory) Option {
	return func(o *Orchestrator) {
		o.factory = f
	}
}

// WithFingerprinter sets the engine used for tracking fingerprints.
func WithFingerprinter(e *fingerprint.Engine) Option {
	return func(o *Orchestrator) {
		o.fingerprints = e
	}
}

// Orchestrator dispatches links to the selected handler.
type Orchestrator struct {
	settings     SettingsSource
	tracker      Recorder
	sessions     Sessions
	factory      Factory
	notifier     Notifier
	metrics      *metrics.Manager
	fingerprints *fingerprint.Engine
	compiler     *labelrule.Compiler
	logger       zerolog.Logger
}

// New creates an Orchestrator. sessions may be nil when dispatching outside of
// a scan context.
func New(src SettingsSource, tracker Recorder, sessions Sessions, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings:     src,
		tracker:      tracker,
		sessions:     sessions,
		notifier:     nopNotifier{},
		fingerprints: fingerprint.New(fingerprint.SHA256),
		compiler:     labelrule.NewCompiler(),
		logger:       logger.With().Str("component", "orchestrator").Logger(),
	}
	o.factory = func(kind string, cfg settings.HandlerConfig) (backend.Handler, error) {
		return handlers.New(kind, cfg, o.logger, handlers.Options{})
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// selectedHandler builds the handler chosen in the settings.
func (o *Orchestrator) selectedHandler(ctx context.Context) (string, backend.Handler, *settings.Settings, error) {
	cfg, err := o.settings.Get(ctx)
	if err != nil {
		return "", nil, nil, err
	}

	kind, hcfg, ok := cfg.Selected()
	if kind == "" {
		return "", nil, nil, &backend.ConfigurationError{Reason: "no handler configured"}
	}
	if !ok {
		return kind, nil, nil, &backend.ConfigurationError{Reason: "handler configuration not found for: " + kind}
	}

	h, err := o.factory(kind, hcfg)
	if err != nil {
		return kind, nil, nil, err
	}
	return kind, h, cfg, nil
}

// DispatchSelected sends urls to the selected handler. labels[i] applies to
// urls[i]; a missing label is taken from the first matching label rule and
// otherwise left to the handler default. Every URL is recorded in the tracker
// once the batch ran, whatever its individual outcome.
func (o *Orchestrator) DispatchSelected(ctx context.Context, urls []string, contextID string, labels []string) (*backend.Result, error) {
	if len(urls) == 0 {
		return nil, ErrNoLinks
	}

	kind, handler, cfg, err := o.selectedHandler(ctx)
	if err != nil {
		o.fail(kind, contextID, err)
		return nil, err
	}

	resolved := o.resolveLabels(cfg, urls, contextID, labels)

	o.logger.Info().
		Str("handler", handler.Name()).
		Int("count", len(urls)).
		Str("context", contextID).
		Msg("Dispatching torrents")

	result, err := handler.AddTorrents(ctx, urls, resolved)
	if err != nil {
		o.fail(handler.Name(), contextID, err)
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ObserveDispatch(handler.Name(), result, nil)
	}

	for i, url := range urls {
		fp, err := o.fingerprints.Fingerprint(url)
		if err != nil {
			o.logger.Error().Err(err).Str("url", url).Msg("Failed to fingerprint sent torrent")
			continue
		}
		label := ""
		if i < len(result.Results) {
			label = result.Results[i].Label
		}
		o.tracker.Record(ctx, fp, map[string]string{
			"url":     url,
			"handler": kind,
			"label":   label,
		})
	}

	if contextID != "" {
		if o.sessions != nil {
			o.sessions.Clear(contextID)
		}
		o.notifier.Badge(contextID, 0)
	}

	if result.Success {
		o.notifier.Notify(LevelInfo, fmt.Sprintf("Successfully processed %d torrents with %s", result.Count, handler.Name()))
	} else {
		o.notifier.Notify(LevelError, fmt.Sprintf("Failed to add torrents to %s", handler.Name()))
	}

	for _, item := range result.Failed() {
		o.logger.Warn().Str("url", item.URL).Str("error", item.Error).Msg("Torrent was not added")
	}

	return result, nil
}

// SendAll dispatches every pending candidate of contextID.
func (o *Orchestrator) SendAll(ctx context.Context, contextID string) (*backend.Result, error) {
	if o.sessions == nil {
		return nil, ErrNoLinks
	}

	candidates := o.sessions.Candidates(contextID)
	if len(candidates) == 0 {
		o.notifier.Notify(LevelInfo, "No new torrents found on this page")
		return nil, ErrNoLinks
	}

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}
	return o.DispatchSelected(ctx, urls, contextID, nil)
}

// TestHandler checks the connection of kind. cfg overrides the stored
// configuration, which allows testing unsaved settings.
func (o *Orchestrator) TestHandler(ctx context.Context, kind string, cfg *settings.HandlerConfig) *backend.TestResult {
	if !settings.IsKnownKind(kind) {
		return &backend.TestResult{Message: "Missing handler type or configuration"}
	}

	if cfg == nil {
		stored, err := o.settings.Get(ctx)
		if err != nil {
			return backend.FromError(err)
		}
		hcfg, ok := stored.Handlers[kind]
		if !ok {
			return &backend.TestResult{Message: "Missing handler type or configuration"}
		}
		cfg = &hcfg
	}

	handler, err := o.factory(kind, *cfg)
	if err != nil {
		return backend.FromError(err)
	}

	res := handler.TestConnection(ctx)
	if !res.Success && len(res.Suggestions) == 0 {
		res.Suggestions = backend.NetworkSuggestions
	}

	o.logger.Debug().Str("handler", kind).Bool("success", res.Success).Str("message", res.Message).Msg("Connection test")
	return res
}

func (o *Orchestrator) resolveLabels(cfg *settings.Settings, urls []string, contextID string, labels []string) []string {
	out := make([]string, len(urls))
	for i := range urls {
		if i < len(labels) {
			out[i] = strings.TrimSpace(labels[i])
		}
	}
	if len(cfg.LabelRules) == 0 {
		return out
	}

	engine, err := labelrule.New(cfg.LabelRules, o.compiler, o.logger)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Ignoring invalid label rules")
		return out
	}

	known := make(map[string]candidate.Candidate)
	if o.sessions != nil && contextID != "" {
		for _, c := range o.sessions.Candidates(contextID) {
			known[c.URL] = c
		}
	}

	for i, url := range urls {
		if out[i] != "" {
			continue
		}
		c := known[url]
		out[i] = engine.Label(labelrule.Input{URL: url, Text: c.ElementText, PatternID: c.PatternID})
	}
	return out
}

func (o *Orchestrator) fail(handler, contextID string, err error) {
	if o.metrics != nil {
		o.metrics.ObserveDispatch(handler, nil, err)
	}
	if contextID != "" {
		o.notifier.Badge(contextID, 0)
	}
	o.notifier.Notify(LevelError, "Failed to send torrents: "+err.Error())
	o.logger.Error().Err(err).Str("handler", handler).Msg("Dispatch failed")
}
