package qbittorrent

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout    time.Duration
	itemDelay  time.Duration
	userAgent  string
	api        API
	httpClient *retryablehttp.Client
}

// WithTimeout sets the timeout of Web API requests.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithItemDelay sets the pause between two torrents of a batch.
func WithItemDelay(delay time.Duration) Option {
	return func(o *clientOptions) {
		o.itemDelay = delay
	}
}

// WithUserAgent sets the user agent used when following download pages.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithHTTPClient sets the client used for the reachability probe and for
// following download pages.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithAPI replaces the go-qbittorrent client, mainly for tests.
func WithAPI(api API) Option {
	return func(o *clientOptions) {
		o.api = api
	}
}
