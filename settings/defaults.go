package settings

import (
	"time"

	"github.com/s0up4200/torrentsnag/matcher"
)

// DefaultTimeout is the handler request timeout.
const DefaultTimeout = 30 * time.Second

// Performance ranges
const (
	MinMaxLinksPerScan  = 100
	MaxMaxLinksPerScan  = 5000
	MinChunkSize        = 50
	MaxChunkSize        = 500
	MinDebounceDelay    = 100
	MaxDebounceDelay    = 2000
	MinDuplicateEntries = 1000
	MaxDuplicateEntries = 50000
)

var builtinPatterns = []matcher.Rule{
	{
		ID:      "magnet-links",
		Name:    "Magnet Links",
		Regex:   `magnet:\?xt=urn:btih:[a-fA-F0-9]{40}[^\s]*`,
		Enabled: true,
		Builtin: true,
	},
	{
		ID:      "torrent-files",
		Name:    "Torrent Files",
		Regex:   `https?://[^\s]*\.torrent(?:\?[^\s]*)?`,
		Enabled: true,
		Builtin: true,
	},
	{
		ID:      "html-torrent-downloads",
		Name:    "HTML Torrent Downloads",
		Regex:   `https?://[^\s]*(?:/torrents?/download/|/download/[^\s]*\.html|/torrent/[^\s]*\.html|[?&]action=download)`,
		Enabled: true,
		Builtin: true,
	},
}

var builtinFilters = []matcher.Rule{
	{
		ID:      "skip-greatest-hits",
		Name:    "Skip Greatest Hits",
		Regex:   `\b(greatest|hits)\b`,
		Builtin: true,
	},
	{
		ID:      "skip-live-albums",
		Name:    "Skip Live Albums",
		Regex:   `\b(live|concert)\b`,
		Builtin: true,
	},
}

// Defaults returns a fresh copy of the factory settings.
func Defaults() *Settings {
	timeout := int(DefaultTimeout / time.Millisecond)

	return &Settings{
		Patterns: append([]matcher.Rule(nil), builtinPatterns...),
		Filters:  append([]matcher.Rule(nil), builtinFilters...),
		Performance: Performance{
			MaxLinksPerScan:     matcher.DefaultMaxLinksPerScan,
			ChunkSize:           matcher.DefaultChunkSize,
			DebounceDelay:       500,
			MaxDuplicateEntries: 10000,
		},
		Handlers: map[string]HandlerConfig{
			KindQBittorrent:  {URL: "http://localhost:8080", Timeout: timeout},
			KindTransmission: {URL: "http://localhost:9091", Timeout: timeout},
			KindDeluge:       {URL: "http://localhost:8112", Timeout: timeout},
			KindDownload:     {DownloadDir: "~/Downloads", Timeout: timeout},
		},
		SelectedHandler: KindQBittorrent,
		Language:        "en",
	}
}

// ensureBuiltins adds built-in rules missing from a stored document.
func ensureBuiltins(rules, builtins []matcher.Rule) []matcher.Rule {
	have := make(map[string]bool, len(rules))
	for _, r := range rules {
		have[r.ID] = true
	}

	var missing []matcher.Rule
	for _, b := range builtins {
		if !have[b.ID] {
			missing = append(missing, b)
		}
	}
	if len(missing) == 0 {
		return rules
	}
	return append(missing, rules...)
}
