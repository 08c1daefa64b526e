// Package transmission sends torrents to Transmission over its JSON-RPC API.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/s0up4200/torrentsnag/backend"
)

const (
	// Name is the display name of the handler.
	Name = "Transmission"

	// SessionHeader carries the CSRF token Transmission hands out with 409 responses.
	SessionHeader = "X-Transmission-Session-Id"

	rpcPath        = "/transmission/rpc"
	defaultTimeout = 30 * time.Second
	maxBodySize    = 4 << 20
)

// Config holds the RPC connection details.
type Config struct {
	URL          string
	Username     string
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

// WithHTTPClient sets the HTTP client used for RPC calls.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type addArguments struct {
	Filename string   `json:"filename"`
	Labels   []string `json:"labels,omitempty"`
}

// Client talks to the Transmission RPC endpoint. The session id is obtained
// reactively: the first request answered with 409 stores it and is repeated
// once.
type Client struct {
	cfg       Config
	rpcURL    string
	http      *retryablehttp.Client
	itemDelay time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	sessionID string
}

var _ backend.Handler = (*Client)(nil)

// NewClient creates a Transmission client.
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
		o.httpClient = backend.NewHTTPClient(o.timeout, nil)
	}

	return &Client{
		cfg:       cfg,
		rpcURL:    cfg.URL + rpcPath,
		http:      o.httpClient,
		itemDelay: o.itemDelay,
		logger:    logger.With().Str("handler", "transmission").Logger(),
	}, nil
}

// Name returns the display name.
func (c *Client) Name() string { return Name }

// Login checks the credentials with a session-get call. AddTorrents does not
// need it; the session id is picked up by the first add.
func (c *Client) Login(ctx context.Context) error {
	status, _, err := c.call(ctx, rpcRequest{Method: "session-get"})
	if err != nil {
		return err
	}
	return c.checkStatus(status)
}

// AddTorrents submits every URL with torrent-add.
func (c *Client) AddTorrents(ctx context.Context, urls, labels []string) (*backend.Result, error) {
	return backend.RunBatch(ctx, urls, labels, backend.BatchOptions{
		DefaultLabel: c.cfg.DefaultLabel,
		Delay:        c.itemDelay,
		Logger:       c.logger,
	}, c.addOne), nil
}

func (c *Client) addOne(ctx context.Context, url, label string) error {
	args := addArguments{Filename: url}
	if label != "" {
		args.Labels = []string{label}
	}

	status, body, err := c.call(ctx, rpcRequest{Method: "torrent-add", Arguments: args})
	if err != nil {
		return err
	}
	if err := c.checkStatus(status); err != nil {
		return err
	}

	res := gjson.GetBytes(body, "result").String()
	if res != "success" {
		return &backend.DeliveryError{URL: url, Reason: res}
	}

	if dup := gjson.GetBytes(body, "arguments.torrent-duplicate.name"); dup.Exists() {
		c.logger.Info().Str("name", dup.String()).Msg("Torrent already present in Transmission")
	}
	return nil
}

// TestConnection issues session-get and reports the daemon version.
func (c *Client) TestConnection(ctx context.Context) *backend.TestResult {
	status, body, err := c.call(ctx, rpcRequest{Method: "session-get"})
	if err != nil {
		return backend.FromError(err)
	}

	switch status {
	case http.StatusOK:
		version := gjson.GetBytes(body, "arguments.version").String()
		return &backend.TestResult{
			Success: true,
			Message: strings.TrimSpace("Connected to Transmission " + version),
			Version: version,
		}
	case http.StatusConflict:
		return &backend.TestResult{Success: true, Message: "Transmission is reachable but did not accept the session id"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &backend.TestResult{
			Message:     fmt.Sprintf("Authentication failed (HTTP %d)", status),
			Suggestions: authSuggestions,
		}
	default:
		return &backend.TestResult{
			Message:     fmt.Sprintf("Unexpected response from Transmission (HTTP %d)", status),
			Suggestions: connectSuggestions,
		}
	}
}

func (c *Client) checkStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return &backend.AuthenticationError{
			Handler:     Name,
			Reason:      "invalid credentials",
			StatusCode:  status,
			Suggestions: authSuggestions,
		}
	case status == http.StatusConflict:
		return &backend.AuthenticationError{Handler: Name, StatusCode: status, Err: ErrSessionRejected}
	case status < 200 || status > 299:
		return fmt.Errorf("HTTP %d", status)
	}
	return nil
}

// call posts req, refreshing the session id and repeating the request once on 409.
func (c *Client) call(ctx context.Context, req rpcRequest) (int, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s request: %w", req.Method, err)
	}

	for attempt := 0; ; attempt++ {
		status, header, body, err := c.post(ctx, payload)
		if err != nil {
			return 0, nil, err
		}

		if status == http.StatusConflict && attempt == 0 {
			if id := header.Get(SessionHeader); id != "" {
				c.setSession(id)
				c.logger.Debug().Msg("Refreshed Transmission session id")
				continue
			}
		}
		return status, body, nil
	}
}

func (c *Client) post(ctx context.Context, payload []byte) (int, http.Header, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	if id := c.session(); id != "" {
		req.Header.Set(SessionHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, nil, nil, &backend.NetworkError{Handler: Name, URL: c.cfg.URL, Suggestions: connectSuggestions, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}
