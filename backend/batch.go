package backend

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultItemDelay is the pause between two items of a batch.
const DefaultItemDelay = 100 * time.Millisecond

// ItemFunc delivers a single URL.
type ItemFunc func(ctx context.Context, url, label string) error

// BatchOptions configures RunBatch.
type BatchOptions struct {
	DefaultLabel string
	// Delay between items. Zero means DefaultItemDelay, negative disables it.
	Delay  time.Duration
	Logger zerolog.Logger
}

// LabelFor returns labels[i] when it is set and defaultLabel otherwise.
func LabelFor(labels []string, i int, defaultLabel string) string {
	if i < len(labels) {
		if l := strings.TrimSpace(labels[i]); l != "" {
			return l
		}
	}
	return strings.TrimSpace(defaultLabel)
}

// RunBatch calls fn for every URL in order, waiting between items. A failing item
// is recorded and the batch moves on.
func RunBatch(ctx context.Context, urls, labels []string, opts BatchOptions, fn ItemFunc) *Result {
	delay := opts.Delay
	if delay == 0 {
		delay = DefaultItemDelay
	}

	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	result := &Result{
		Total:   len(urls),
		Results: make([]ItemResult, 0, len(urls)),
	}

	for i, url := range urls {
		label := LabelFor(labels, i, opts.DefaultLabel)
		item := ItemResult{URL: url, Label: label}

		var err error
		if limiter != nil {
			err = limiter.Wait(ctx)
		}
		if err == nil {
			err = fn(ctx, url, label)
		}

		if err != nil {
			item.Error = err.Error()
			opts.Logger.Warn().Err(err).Str("url", url).Msg("Failed to add torrent")
		} else {
			item.Success = true
			result.Count++
		}
		result.Results = append(result.Results, item)
	}

	result.Success = result.Count > 0
	return result
}
