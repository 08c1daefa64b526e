package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/s0up4200/torrentsnag/labelrule"
	"github.com/s0up4200/torrentsnag/matcher"
)

const (
	// ExportVersion is the version of the export document.
	ExportVersion = "1.0"

	// ExtensionName identifies export documents of this application.
	ExtensionName = "Torrent Snag"
)

// ExportDocument is the settings export format.
type ExportDocument struct {
	Version       string    `json:"version"`
	ExportDate    time.Time `json:"exportDate"`
	ExtensionName string    `json:"extensionName"`
	Settings      *Settings `json:"settings"`
}

// ImportSummary reports what an import changed.
type ImportSummary struct {
	Patterns int  `json:"patterns"`
	Filters  int  `json:"filters"`
	Handlers int  `json:"handlers"`
	Selected bool `json:"selected"`
}

// importDocument mirrors ExportDocument with optional fields.
type importDocument struct {
	Version       string          `json:"version"`
	ExtensionName string          `json:"extensionName"`
	Settings      *importSettings `json:"settings"`
}

type importSettings struct {
	Patterns        *[]importRule              `json:"patterns"`
	Filters         *[]importRule              `json:"filters"`
	Performance     *importPerformance         `json:"performance"`
	Theme           *importTheme               `json:"theme"`
	Handlers        map[string]json.RawMessage `json:"handlers"`
	SelectedHandler string                     `json:"selectedHandler"`
	Language        string                     `json:"language"`
	LabelRules      *[]labelrule.Rule          `json:"labelRules"`
}

type importRule struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Regex   string `json:"regex"`
	Enabled *bool  `json:"enabled"`
	Builtin bool   `json:"builtin"`
}

type importTheme struct {
	ForceDarkMode *bool `json:"forceDarkMode"`
}

type importPerformance struct {
	MaxLinksPerScan     *float64 `json:"maxLinksPerScan"`
	ChunkSize           *float64 `json:"chunkSize"`
	DebounceDelay       *float64 `json:"debounceDelay"`
	MaxDuplicateEntries *float64 `json:"maxDuplicateEntries"`
}

// Export returns the current settings as an indented export document.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	doc := ExportDocument{
		Version:       ExportVersion,
		ExportDate:    s.now().UTC(),
		ExtensionName: ExtensionName,
		Settings:      cfg,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import merges an export document into the current settings. Custom patterns
// and filters replace the current custom ones and get fresh ids. Every regex is
// validated before anything is saved.
func (s *Service) Import(ctx context.Context, data []byte) (*ImportSummary, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid settings file: %w", err)
	}
	if doc.Settings == nil {
		return nil, ErrMissingSettings
	}
	if doc.ExtensionName != "" && doc.ExtensionName != ExtensionName {
		return nil, ErrWrongApplication
	}

	in := doc.Settings
	summary := &ImportSummary{}

	_, err := s.update(ctx, func(cfg *Settings) error {
		if in.Patterns != nil {
			cfg.Patterns, summary.Patterns = mergeRules(cfg.Patterns, *in.Patterns, PatternIDPrefix)
		}
		if in.Filters != nil {
			cfg.Filters, summary.Filters = mergeRules(cfg.Filters, *in.Filters, FilterIDPrefix)
		}

		if p := in.Performance; p != nil {
			setClamped(&cfg.Performance.MaxLinksPerScan, p.MaxLinksPerScan, MinMaxLinksPerScan, MaxMaxLinksPerScan)
			setClamped(&cfg.Performance.ChunkSize, p.ChunkSize, MinChunkSize, MaxChunkSize)
			setClamped(&cfg.Performance.DebounceDelay, p.DebounceDelay, MinDebounceDelay, MaxDebounceDelay)
			setClamped(&cfg.Performance.MaxDuplicateEntries, p.MaxDuplicateEntries, MinDuplicateEntries, MaxDuplicateEntries)
		}

		if in.Theme != nil && in.Theme.ForceDarkMode != nil {
			cfg.Theme.ForceDarkMode = *in.Theme.ForceDarkMode
		}

		for kind, raw := range in.Handlers {
			if !IsKnownKind(kind) {
				s.logger.Debug().Str("handler", kind).Msg("Skipping unknown handler in import")
				continue
			}
			h := cfg.Handlers[kind]
			if err := json.Unmarshal(raw, &h); err != nil {
				s.logger.Warn().Err(err).Str("handler", kind).Msg("Skipping malformed handler in import")
				continue
			}
			cfg.Handlers[kind] = h
			summary.Handlers++
		}

		if IsKnownKind(in.SelectedHandler) {
			cfg.SelectedHandler = in.SelectedHandler
			summary.Selected = true
		}
		if lang := strings.TrimSpace(in.Language); lang != "" {
			cfg.Language = lang
		}
		if in.LabelRules != nil {
			cfg.LabelRules = *in.LabelRules
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("patterns", summary.Patterns).
		Int("filters", summary.Filters).
		Int("handlers", summary.Handlers).
		Msg("Settings imported")
	return summary, nil
}

// mergeRules keeps the built-in rules of current, carrying over the enabled
// flag of imported built-ins, and replaces every custom rule with the valid
// custom rules of imported.
func mergeRules(current []matcher.Rule, imported []importRule, prefix string) ([]matcher.Rule, int) {
	builtinEnabled := make(map[string]bool)
	var custom []matcher.Rule

	for _, r := range imported {
		if r.Builtin {
			if r.Enabled != nil {
				builtinEnabled[r.ID] = *r.Enabled
			}
			continue
		}
		if strings.TrimSpace(r.Name) == "" || r.Regex == "" || r.Enabled == nil {
			continue
		}
		custom = append(custom, matcher.Rule{
			ID:      NewRuleID(prefix),
			Name:    r.Name,
			Regex:   r.Regex,
			Enabled: *r.Enabled,
		})
	}

	out := make([]matcher.Rule, 0, len(current)+len(custom))
	for _, r := range current {
		if !r.Builtin {
			continue
		}
		if enabled, ok := builtinEnabled[r.ID]; ok {
			r.Enabled = enabled
		}
		out = append(out, r)
	}
	return append(out, custom...), len(custom)
}

func setClamped(dst *int, v *float64, lo, hi int) {
	if v == nil {
		return
	}
	*dst = clamp(int(*v), lo, hi)
}
