package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/session"
	"github.com/s0up4200/torrentsnag/settings"
)

// ScanRules converts settings into the rules armed on scan sessions.
func ScanRules(cfg *settings.Settings) session.Rules {
	return session.Rules{
		Patterns:      cfg.EnabledPatterns(),
		Filters:       cfg.EnabledFilters(),
		Budget:        cfg.Performance.Budget(),
		DebounceDelay: cfg.Performance.Debounce(),
	}
}

// Rearmer is implemented by session.Manager.
type Rearmer interface {
	Rearm(ctx context.Context, r session.Rules) error
}

// CapSetter is implemented by tracker.Tracker.
type CapSetter interface {
	SetMaxEntries(n int)
}

// Follow arms sessions with the current settings and re-arms them, rescanning
// open contexts, whenever the settings change.
func Follow(ctx context.Context, svc *settings.Service, sessions Rearmer, caps CapSetter, logger zerolog.Logger) error {
	apply := func(cfg *settings.Settings) {
		if err := sessions.Rearm(ctx, ScanRules(cfg)); err != nil {
			logger.Error().Err(err).Msg("Failed to apply pattern settings")
		}
		if caps != nil {
			caps.SetMaxEntries(cfg.Performance.MaxDuplicateEntries)
		}
	}

	cfg, err := svc.Get(ctx)
	if err != nil {
		return err
	}
	if err := sessions.Rearm(ctx, ScanRules(cfg)); err != nil {
		return err
	}
	if caps != nil {
		caps.SetMaxEntries(cfg.Performance.MaxDuplicateEntries)
	}

	svc.OnChange(apply)
	return nil
}
