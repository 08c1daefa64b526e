package qbittorrent

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/blang/semver"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/backend"
)

const (
	// Name is the display name of the handler.
	Name = "qBittorrent"

	defaultTimeout = 30 * time.Second
)

// minWebAPIVersion is the first Web API generation served under /api/v2.
var minWebAPIVersion = semver.MustParse("2.0.0")

// Config holds the Web UI connection details.
type Config struct {
	URL          string
	Username     string
	Password     string
	DefaultLabel string
	BasicUser    string
	BasicPass    string
}

// Client sends torrents to qBittorrent through its Web API.
type Client struct {
	cfg       Config
	api       API
	http      *retryablehttp.Client
	resolver  *backend.Resolver
	itemDelay time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	loggedIn bool
}

var _ backend.Handler = (*Client)(nil)

// NewClient creates a qBittorrent client. It does not contact the server; the
// first AddTorrents call logs in.
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, &backend.ConfigurationError{Handler: Name, Reason: ErrMissingURL.Error()}
	}

	o := clientOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	api := o.api
	if api == nil {
		api = qbittorrent.NewClient(qbittorrent.Config{
			Host:      cfg.URL,
			Username:  cfg.Username,
			Password:  cfg.Password,
			BasicUser: cfg.BasicUser,
			BasicPass: cfg.BasicPass,
			Timeout:   timeoutSeconds(o.timeout),
		})
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = backend.NewHTTPClient(o.timeout, nil)
	}

	logger = logger.With().Str("handler", "qbittorrent").Logger()

	return &Client{
		cfg:       cfg,
		api:       api,
		http:      httpClient,
		resolver:  backend.NewResolver(httpClient, o.userAgent, logger),
		itemDelay: o.itemDelay,
		logger:    logger,
	}, nil
}

// timeoutSeconds rounds d up to whole seconds. The library reads 0 as its own
// default, so any positive d yields at least 1.
func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Name returns the display name.
func (c *Client) Name() string { return Name }

// Login authenticates once; later calls are no-ops until a login fails.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn {
		return nil
	}

	if err := c.api.LoginCtx(ctx); err != nil {
		return &backend.AuthenticationError{
			Handler:     Name,
			Reason:      "login rejected",
			Suggestions: authSuggestions,
			Err:         err,
		}
	}

	c.loggedIn = true
	c.logger.Debug().Str("url", c.cfg.URL).Msg("Logged in to qBittorrent")
	return nil
}

// AddTorrents adds every URL with its category. Download pages are followed and
// the torrent file is uploaded instead of the page URL.
func (c *Client) AddTorrents(ctx context.Context, urls, labels []string) (*backend.Result, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	return backend.RunBatch(ctx, urls, labels, backend.BatchOptions{
		DefaultLabel: c.cfg.DefaultLabel,
		Delay:        c.itemDelay,
		Logger:       c.logger,
	}, c.addOne), nil
}

func (c *Client) addOne(ctx context.Context, rawURL, label string) error {
	options := map[string]string{}
	if label != "" {
		options["category"] = label
	}

	if backend.IsHTMLRedirectURL(rawURL) {
		res, err := c.resolver.Resolve(ctx, rawURL)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Could not follow download page, submitting URL")
		case res.Data != nil:
			c.logger.Debug().Str("url", res.URL).Str("file", res.Filename).Msg("Uploading torrent from download page")
			if err := c.api.AddTorrentFromMemoryCtx(ctx, res.Data, options); err != nil {
				return &backend.DeliveryError{URL: rawURL, Reason: ErrRejected.Error(), Err: err}
			}
			return nil
		}
	}

	submit := rawURL
	if strings.Contains(submit, "%") {
		if decoded, err := url.PathUnescape(submit); err == nil {
			submit = decoded
		}
	}

	if err := c.api.AddTorrentFromUrlCtx(ctx, submit, options); err != nil {
		return &backend.DeliveryError{URL: rawURL, Reason: ErrRejected.Error(), Err: err}
	}

	c.logger.Debug().Str("url", rawURL).Str("category", label).Msg("Added torrent")
	return nil
}

// TestConnection checks that the Web UI answers, that the credentials work and
// reports the application version.
func (c *Client) TestConnection(ctx context.Context) *backend.TestResult {
	if err := c.probe(ctx); err != nil {
		return &backend.TestResult{
			Message:     fmt.Sprintf("Cannot connect to qBittorrent at %s: %v", c.cfg.URL, err),
			Suggestions: connectSuggestions,
		}
	}

	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()

	if err := c.Login(ctx); err != nil {
		return &backend.TestResult{
			Message:     "Authentication test failed: " + err.Error(),
			Suggestions: authSuggestions,
		}
	}

	version, err := c.api.GetAppVersionCtx(ctx)
	if err != nil {
		return &backend.TestResult{
			Message:     "Connected but the API rejected the version request: " + err.Error(),
			Suggestions: authSuggestions,
		}
	}

	msg := fmt.Sprintf("Connected to qBittorrent %s", version)
	if apiVersion, err := c.api.GetWebAPIVersionCtx(ctx); err == nil {
		if v, err := semver.ParseTolerant(apiVersion); err == nil && v.LT(minWebAPIVersion) {
			msg += fmt.Sprintf(" (Web API %s is older than %s, adding torrents may fail)", apiVersion, minWebAPIVersion)
		}
	}

	return &backend.TestResult{Success: true, Message: msg, Version: version}
}

// probe checks reachability without credentials. Any HTTP answer counts.
func (c *Client) probe(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/api/v2/app/version", nil)
	if err != nil {
		return err
	}
	if c.cfg.BasicUser != "" {
		req.SetBasicAuth(c.cfg.BasicUser, c.cfg.BasicPass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
