// Package deluge sends torrents to the Deluge Web UI over its JSON-RPC API.
package deluge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"github.com/s0up4200/torrentsnag/backend"
)

const (
	// Name is the display name of the handler.
	Name = "Deluge"

	rpcPath        = "/json"
	defaultTimeout = 30 * time.Second
	maxBodySize    = 4 << 20
)

// Config holds the Web UI connection details. Deluge only uses a password.
type Config struct {
	URL          string
	Password     string
	DefaultLabel string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout    time.Duration
	itemDelay  time.Duration
	httpClient *retryablehttp.Client
}

// WithTimeout sets the timeout of RPC requests.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithItemDelay sets the pause between two torrents of a batch.
func WithItemDelay(delay time.Duration) Option {
	return func(o *options) {
		o.itemDelay = delay
	}
}

// WithHTTPClient sets the HTTP client. It needs a cookie jar to keep the session.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

type addItem struct {
	Path    string     `json:"path"`
	Options addOptions `json:"options"`
}

type addOptions struct {
	Label string `json:"label,omitempty"`
}

// Client talks to deluge-web. The session lives in a cookie set by auth.login.
type Client struct {
	cfg       Config
	rpcURL    string
	http      *retryablehttp.Client
	itemDelay time.Duration
	logger    zerolog.Logger
	nextID    atomic.Int64

	mu       sync.Mutex
	loggedIn bool
}

var _ backend.Handler = (*Client)(nil)

// NewClient creates a Deluge client with its own cookie jar.
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, &backend.ConfigurationError{Handler: Name, Reason: ErrMissingURL.Error()}
	}

	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		o.httpClient = backend.NewHTTPClient(o.timeout, jar)
	}

	return &Client{
		cfg:       cfg,
		rpcURL:    cfg.URL + rpcPath,
		http:      o.httpClient,
		itemDelay: o.itemDelay,
		logger:    logger.With().Str("handler", "deluge").Logger(),
	}, nil
}

// Name returns the display name.
func (c *Client) Name() string { return Name }

// Login calls auth.login once per client. A failed login is retried on the
// next call.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn {
		return nil
	}
	if err := c.login(ctx); err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

func (c *Client) login(ctx context.Context) error {
	status, body, err := c.call(ctx, "auth.login", c.cfg.Password)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &backend.AuthenticationError{
			Handler:     Name,
			Reason:      fmt.Sprintf("HTTP %d", status),
			StatusCode:  status,
			Suggestions: authSuggestions,
		}
	}
	if !gjson.GetBytes(body, "result").Bool() {
		return &backend.AuthenticationError{Handler: Name, Suggestions: authSuggestions, Err: ErrInvalidPassword}
	}

	c.logger.Debug().Str("url", c.cfg.URL).Msg("Logged in to Deluge")
	return nil
}

// AddTorrents logs in if needed and calls web.add_torrents for every URL.
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

func (c *Client) addOne(ctx context.Context, url, label string) error {
	item := addItem{Path: url, Options: addOptions{Label: label}}

	status, body, err := c.call(ctx, "web.add_torrents", []addItem{item})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &backend.DeliveryError{URL: url, Reason: fmt.Sprintf("HTTP %d", status)}
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return &backend.DeliveryError{URL: url, Reason: rpcErr.Get("message").String()}
	}
	return nil
}

// TestConnection logs in again and lists the daemon methods.
func (c *Client) TestConnection(ctx context.Context) *backend.TestResult {
	if err := c.login(ctx); err != nil {
		res := backend.FromError(err)
		if backend.IsNetwork(err) {
			res.Message = fmt.Sprintf("Cannot connect to Deluge at %s", c.cfg.URL)
		}
		return res
	}

	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()

	status, body, err := c.call(ctx, "daemon.get_method_list")
	if err != nil {
		return backend.FromError(err)
	}
	if status != http.StatusOK {
		return &backend.TestResult{
			Message:     fmt.Sprintf("Unexpected response from Deluge (HTTP %d)", status),
			Suggestions: connectSuggestions,
		}
	}
	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return &backend.TestResult{
			Message:     "Logged in but the daemon call failed: " + rpcErr.Get("message").String(),
			Suggestions: connectSuggestions,
		}
	}

	methods := gjson.GetBytes(body, "result.#").Int()
	return &backend.TestResult{
		Success: true,
		Message: fmt.Sprintf("Connected to Deluge (%d daemon methods available)", methods),
	}
}

func (c *Client) call(ctx context.Context, method string, params ...any) (int, []byte, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, nil, &backend.NetworkError{Handler: Name, URL: c.cfg.URL, Suggestions: connectSuggestions, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
