package matcher

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/s0up4200/torrentsnag/candidate"
)

// ScanOption configures a scan.
type ScanOption func(*scanOptions)

type scanOptions struct {
	now   func() time.Time
	yield func()
}

// WithScanClock sets the clock used for candidate timestamps.
func WithScanClock(now func() time.Time) ScanOption {
	return func(o *scanOptions) {
		o.now = now
	}
}

// WithYield replaces the function called between chunks.
func WithYield(fn func()) ScanOption {
	return func(o *scanOptions) {
		o.yield = fn
	}
}

// Scan compiles patterns and filters and scans links with them.
func Scan(ctx context.Context, links []Link, patterns, filters []Rule, budget Budget, opts ...ScanOption) ([]candidate.Candidate, error) {
	c, err := Compile(patterns, filters)
	if err != nil {
		return nil, err
	}
	return c.Scan(ctx, links, budget, opts...)
}

// Scan processes links in chunks of budget.ChunkSize, yielding between chunks, and
// stops once budget.MaxLinksPerScan distinct URLs were found.
//
// Patterns are tried in order and the first one matching the href tags the
// candidate. A link whose trimmed text or href matches any filter is dropped.
// A cancelled ctx aborts the scan between chunks with ctx.Err().
func (c *Compiled) Scan(ctx context.Context, links []Link, budget Budget, opts ...ScanOption) ([]candidate.Candidate, error) {
	o := scanOptions{now: time.Now, yield: runtime.Gosched}
	for _, opt := range opts {
		opt(&o)
	}
	budget = budget.normalize()

	if len(c.patterns) == 0 {
		return nil, nil
	}

	var (
		found []candidate.Candidate
		seen  = make(map[string]struct{})
	)

	for start := 0; start < len(links) && len(found) < budget.MaxLinksPerScan; start += budget.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+budget.ChunkSize, len(links))
		for _, link := range links[start:end] {
			if len(found) >= budget.MaxLinksPerScan {
				break
			}

			href := strings.TrimSpace(link.Href)
			if href == "" {
				continue
			}
			if _, dup := seen[href]; dup {
				continue
			}

			text := strings.TrimSpace(link.Text)
			patternID, ok := c.Match(href, text)
			if !ok {
				continue
			}

			seen[href] = struct{}{}
			found = append(found, candidate.Candidate{
				URL:         href,
				PatternID:   patternID,
				ElementText: text,
				Timestamp:   o.now(),
			})
		}

		if end < len(links) {
			o.yield()
		}
	}

	return found, nil
}

// Match returns the id of the first pattern matching href, unless a filter
// matches text or href.
func (c *Compiled) Match(href, text string) (string, bool) {
	for _, p := range c.patterns {
		if !p.re.MatchString(href) {
			continue
		}
		if c.filtered(href, text) {
			return "", false
		}
		return p.id, true
	}
	return "", false
}

func (c *Compiled) filtered(href, text string) bool {
	for _, f := range c.filters {
		if (text != "" && f.re.MatchString(text)) || f.re.MatchString(href) {
			return true
		}
	}
	return false
}
