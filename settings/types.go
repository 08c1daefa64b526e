package settings

import (
	"maps"
	"slices"
	"time"

	"github.com/s0up4200/torrentsnag/labelrule"
	"github.com/s0up4200/torrentsnag/matcher"
)

// Handler kinds
const (
	KindQBittorrent  = "qbittorrent"
	KindTransmission = "transmission"
	KindDeluge       = "deluge"
	KindDownload     = "download"
)

// Kinds lists the handler kinds in display order.
var Kinds = []string{KindQBittorrent, KindTransmission, KindDeluge, KindDownload}

// IsKnownKind reports whether kind names a handler.
func IsKnownKind(kind string) bool {
	return slices.Contains(Kinds, kind)
}

// Settings is the persisted user configuration.
type Settings struct {
	Patterns        []matcher.Rule           `json:"patterns"`
	Filters         []matcher.Rule           `json:"filters"`
	Performance     Performance              `json:"performance"`
	Theme           Theme                    `json:"theme"`
	Handlers        map[string]HandlerConfig `json:"handlers"`
	SelectedHandler string                   `json:"selectedHandler"`
	Language        string                   `json:"language"`
	LabelRules      []labelrule.Rule         `json:"labelRules,omitempty"`
}

// Performance tunes scanning and duplicate tracking. Delays are milliseconds.
type Performance struct {
	MaxLinksPerScan     int `json:"maxLinksPerScan"`
	ChunkSize           int `json:"chunkSize"`
	DebounceDelay       int `json:"debounceDelay"`
	MaxDuplicateEntries int `json:"maxDuplicateEntries"`
}

// Theme holds display preferences of the UI.
type Theme struct {
	ForceDarkMode bool `json:"forceDarkMode"`
}

// HandlerConfig is the configuration of one handler kind. Timeout is in
// milliseconds.
type HandlerConfig struct {
	URL          string `json:"url,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	DefaultLabel string `json:"defaultLabel,omitempty"`
	DownloadDir  string `json:"downloadDir,omitempty"`
	BasicUser    string `json:"basicUser,omitempty"`
	BasicPass    string `json:"basicPass,omitempty"`
	Timeout      int    `json:"timeout,omitempty"`
}

// TimeoutDuration returns Timeout as a duration, DefaultTimeout when unset.
func (h HandlerConfig) TimeoutDuration() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(h.Timeout) * time.Millisecond
}

// Budget returns the scan budget.
func (p Performance) Budget() matcher.Budget {
	return matcher.Budget{ChunkSize: p.ChunkSize, MaxLinksPerScan: p.MaxLinksPerScan}
}

// Debounce returns DebounceDelay as a duration.
func (p Performance) Debounce() time.Duration {
	return time.Duration(p.DebounceDelay) * time.Millisecond
}

// Clamp limits every value to its safe range.
func (p Performance) Clamp() Performance {
	p.MaxLinksPerScan = clamp(p.MaxLinksPerScan, MinMaxLinksPerScan, MaxMaxLinksPerScan)
	p.ChunkSize = clamp(p.ChunkSize, MinChunkSize, MaxChunkSize)
	p.DebounceDelay = clamp(p.DebounceDelay, MinDebounceDelay, MaxDebounceDelay)
	p.MaxDuplicateEntries = clamp(p.MaxDuplicateEntries, MinDuplicateEntries, MaxDuplicateEntries)
	return p
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Selected returns the selected handler kind and its configuration.
func (s *Settings) Selected() (string, HandlerConfig, bool) {
	cfg, ok := s.Handlers[s.SelectedHandler]
	return s.SelectedHandler, cfg, ok
}

// EnabledPatterns returns the enabled patterns in order.
func (s *Settings) EnabledPatterns() []matcher.Rule {
	return enabled(s.Patterns)
}

// EnabledFilters returns the enabled filters in order.
func (s *Settings) EnabledFilters() []matcher.Rule {
	return enabled(s.Filters)
}

func enabled(rules []matcher.Rule) []matcher.Rule {
	out := make([]matcher.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Patterns = slices.Clone(s.Patterns)
	c.Filters = slices.Clone(s.Filters)
	c.LabelRules = slices.Clone(s.LabelRules)
	c.Handlers = maps.Clone(s.Handlers)
	if c.Handlers == nil {
		c.Handlers = make(map[string]HandlerConfig)
	}
	return &c
}
