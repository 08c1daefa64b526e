package matcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	magnetRule  = Rule{ID: "magnet-links", Name: "Magnet Links", Regex: `magnet:\?xt=urn:btih:[a-fA-F0-9]{40}[^\s]*`, Enabled: true, Builtin: true}
	torrentRule = Rule{ID: "torrent-files", Name: "Torrent Files", Regex: `https?://[^\s]*\.torrent(?:\?[^\s]*)?`, Enabled: true, Builtin: true}
	liveFilter  = Rule{ID: "skip-live-albums", Name: "Skip Live Albums", Regex: `\b(live|concert)\b`, Enabled: true, Builtin: true}
)

func TestScanMagnetScenario(t *testing.T) {
	links := []Link{
		{Href: "magnet:?xt=urn:btih:AABBCCDDEEFF00112233445566778899AABBCCDD&dn=Test", Text: " Test "},
		{Href: "https://example.com/about", Text: "About"},
	}

	got, err := Scan(context.Background(), links, []Rule{magnetRule, torrentRule}, nil, Budget{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "magnet-links", got[0].PatternID)
	assert.Equal(t, "Test", got[0].ElementText)
	assert.Empty(t, got[0].Hash)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestScanBudget(t *testing.T) {
	links := make([]Link, 0, 250)
	for i := range 250 {
		links = append(links, Link{Href: fmt.Sprintf("https://example.com/%d.torrent", i)})
	}

	yields := 0
	got, err := Scan(context.Background(), links, []Rule{torrentRule}, nil,
		Budget{ChunkSize: 10, MaxLinksPerScan: 42},
		WithYield(func() { yields++ }),
	)
	require.NoError(t, err)
	assert.Len(t, got, 42)
	assert.Equal(t, "https://example.com/41.torrent", got[41].URL)
	// 42 links fit in 5 chunks, the loop stops before a sixth yield
	assert.Equal(t, 5, yields)
}

func TestScanYieldsBetweenChunks(t *testing.T) {
	links := make([]Link, 30)
	for i := range links {
		links[i] = Link{Href: fmt.Sprintf("https://example.com/%d", i)}
	}

	yields := 0
	_, err := Scan(context.Background(), links, []Rule{torrentRule}, nil,
		Budget{ChunkSize: 10, MaxLinksPerScan: 100},
		WithYield(func() { yields++ }),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, yields)
}

func TestScanFilterPrecedence(t *testing.T) {
	tests := []struct {
		name string
		link Link
		want int
	}{
		{
			name: "filter matches text",
			link: Link{Href: "https://example.com/band.torrent", Text: "Band - Live at Wembley"},
			want: 0,
		},
		{
			name: "filter matches href",
			link: Link{Href: "https://example.com/band-live-2001.torrent", Text: "Band"},
			want: 0,
		},
		{
			name: "filter word boundary",
			link: Link{Href: "https://example.com/band.torrent", Text: "Delivery"},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scan(context.Background(), []Link{tt.link}, []Rule{torrentRule}, []Rule{liveFilter}, Budget{})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestScanDisabledRules(t *testing.T) {
	disabledFilter := liveFilter
	disabledFilter.Enabled = false
	disabledPattern := magnetRule
	disabledPattern.Enabled = false

	links := []Link{
		{Href: "https://example.com/live.torrent", Text: "Live"},
		{Href: "magnet:?xt=urn:btih:AABBCCDDEEFF00112233445566778899AABBCCDD"},
	}

	got, err := Scan(context.Background(), links, []Rule{disabledPattern, torrentRule}, []Rule{disabledFilter}, Budget{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "torrent-files", got[0].PatternID)
}

func TestScanFirstMatchWins(t *testing.T) {
	anyHTTP := Rule{ID: "any-http", Regex: `^https?://`, Enabled: true}
	links := []Link{{Href: "https://example.com/a.torrent"}}

	got, err := Scan(context.Background(), links, []Rule{anyHTTP, torrentRule}, nil, Budget{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "any-http", got[0].PatternID)
}

func TestScanDeduplicatesURLs(t *testing.T) {
	links := []Link{
		{Href: "https://example.com/a.torrent", Text: "one"},
		{Href: " https://example.com/a.torrent ", Text: "two"},
		{Href: ""},
	}

	got, err := Scan(context.Background(), links, []Rule{torrentRule}, nil, Budget{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].ElementText)
}

func TestScanCaseInsensitive(t *testing.T) {
	got, err := Scan(context.Background(), []Link{{Href: "HTTPS://EXAMPLE.COM/FILE.TORRENT"}}, []Rule{torrentRule}, nil, Budget{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	links := make([]Link, 100)
	for i := range links {
		links[i] = Link{Href: fmt.Sprintf("https://example.com/%d.torrent", i)}
	}

	_, err := Scan(ctx, links, []Rule{torrentRule}, nil, Budget{ChunkSize: 10, MaxLinksPerScan: 1000}, WithYield(cancel))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileInvalidRule(t *testing.T) {
	bad := Rule{ID: "filter-1", Name: "Broken", Regex: `(unclosed`, Enabled: true}

	_, err := Compile([]Rule{torrentRule}, []Rule{bad})
	require.Error(t, err)

	var pce *PatternCompileError
	require.True(t, errors.As(err, &pce))
	assert.Equal(t, "filter-1", pce.RuleID)
	assert.Contains(t, err.Error(), `"Broken"`)

	// disabled rules are never compiled
	bad.Enabled = false
	_, err = Compile([]Rule{torrentRule}, []Rule{bad})
	assert.NoError(t, err)
}

func TestValidateRegex(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{name: "builtin magnet", source: magnetRule.Regex},
		{name: "nested quantifier", source: `(a+)+$`},
		{name: "unbalanced", source: `(abc`, wantErr: true},
		{name: "empty", source: "  ", wantErr: true},
		{name: "lookahead unsupported", source: `foo(?=bar)`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegex(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRegexTooSlow(t *testing.T) {
	orig := ProbeLimit
	ProbeLimit = -1
	t.Cleanup(func() { ProbeLimit = orig })

	err := ValidateRule(Rule{ID: "custom-1", Name: "Slow", Regex: `a*`})
	assert.ErrorIs(t, err, ErrTooSlow)
}
