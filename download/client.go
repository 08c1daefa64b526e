// Package download saves torrents to a local directory instead of handing them
// to a torrent client. Magnet links become small .magnet text files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/fingerprint"
)

const (
	// Name is the display name of the handler.
	Name = "Generic Download"

	// DefaultDir is used when no directory is configured.
	DefaultDir = "~/Downloads"

	defaultTimeout = 60 * time.Second
	maxFileSize    = 32 << 20
	maxNameTries   = 100
)

var (
	dnParam     = regexp.MustCompile(`[&?]dn=([^&]*)`)
	unsafeName  = regexp.MustCompile(`[^a-zA-Z0-9\-_. ]`)
	unsafeLabel = regexp.MustCompile(`[/\\?%*:|"<>]`)
)

// Config holds the target directory.
type Config struct {
	Dir          string
	DefaultLabel string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout    time.Duration
	itemDelay  time.Duration
	userAgent  string
	httpClient *retryablehttp.Client
	now        func() time.Time
}

// WithTimeout sets the timeout of file downloads.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithItemDelay sets the pause between two downloads.
func WithItemDelay(delay time.Duration) Option {
	return func(o *options) {
		o.itemDelay = delay
	}
}

// WithUserAgent sets the User-Agent of downloads.
func WithUserAgent(userAgent string) Option {
	return func(o *options) {
		o.userAgent = userAgent
	}
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClock overrides the time source used for fallback magnet names.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Client writes torrents into a directory.
type Client struct {
	dir          string
	defaultLabel string
	http         *retryablehttp.Client
	resolver     *backend.Resolver
	userAgent    string
	itemDelay    time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

var _ backend.Handler = (*Client)(nil)

// NewClient creates a download client. A leading ~ in the directory is
// expanded.
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = DefaultDir
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, &backend.ConfigurationError{Handler: Name, Reason: fmt.Sprintf("invalid download directory: %v", err)}
	}

	o := options{timeout: defaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = backend.NewHTTPClient(o.timeout, nil)
	}

	logger = logger.With().Str("handler", "download").Logger()

	return &Client{
		dir:          dir,
		defaultLabel: cfg.DefaultLabel,
		http:         o.httpClient,
		resolver:     backend.NewResolver(o.httpClient, o.userAgent, logger),
		userAgent:    o.userAgent,
		itemDelay:    o.itemDelay,
		now:          o.now,
		logger:       logger,
	}, nil
}

// Name returns the display name.
func (c *Client) Name() string { return Name }

// Dir returns the expanded target directory.
func (c *Client) Dir() string { return c.dir }

// Login always succeeds.
func (c *Client) Login(context.Context) error { return nil }

// TestConnection always succeeds.
func (c *Client) TestConnection(context.Context) *backend.TestResult {
	return &backend.TestResult{Success: true, Message: "Files are saved to " + c.dir}
}

// AddTorrents saves every URL into the directory.
func (c *Client) AddTorrents(ctx context.Context, urls, labels []string) (*backend.Result, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, &backend.ConfigurationError{Handler: Name, Reason: fmt.Sprintf("cannot create %s: %v", c.dir, err)}
	}

	return backend.RunBatch(ctx, urls, labels, backend.BatchOptions{
		DefaultLabel: c.defaultLabel,
		Delay:        c.itemDelay,
		Logger:       c.logger,
	}, c.addOne), nil
}

func (c *Client) addOne(ctx context.Context, rawURL, label string) error {
	if fingerprint.IsMagnet(rawURL) {
		name := withLabel(label, MagnetFilename(rawURL, c.now()))
		path, err := c.write(name, []byte(rawURL))
		if err != nil {
			return &backend.DeliveryError{URL: rawURL, Reason: "failed to save magnet file", Err: err}
		}
		c.logger.Debug().Str("file", path).Msg("Saved magnet file")
		return nil
	}

	data, filename, err := c.fetch(ctx, rawURL)
	if err != nil {
		return &backend.DeliveryError{URL: rawURL, Reason: "download failed", Err: err}
	}

	path, err := c.write(withLabel(label, filename), data)
	if err != nil {
		return &backend.DeliveryError{URL: rawURL, Reason: "failed to save torrent file", Err: err}
	}
	c.logger.Debug().Str("file", path).Int("bytes", len(data)).Msg("Saved torrent file")
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if backend.IsHTMLRedirectURL(rawURL) {
		res, err := c.resolver.Resolve(ctx, rawURL)
		if err != nil {
			return nil, "", err
		}
		if res.Data != nil {
			return res.Data, res.Filename, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, "", err
	}
	return data, backend.ExtractFilename(resp.Header.Get("Content-Disposition"), rawURL), nil
}

// write creates name in the directory without replacing existing files; a
// taken name gets a " (n)" suffix.
func (c *Client) write(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameTries; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(c.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s", name)
}

// MagnetFilename names the .magnet file of a magnet link: the sanitized display
// name, else the info hash, else a timestamp.
func MagnetFilename(magnet string, now time.Time) string {
	if m := dnParam.FindStringSubmatch(magnet); m != nil {
		name := m[1]
		if decoded, err := url.PathUnescape(name); err == nil {
			name = decoded
		}
		return unsafeName.ReplaceAllString(name, "_") + ".magnet"
	}
	if hash := fingerprint.MagnetHash(magnet); hash != "" {
		return hash + ".magnet"
	}
	return fmt.Sprintf("torrent-%d.magnet", now.UnixMilli())
}

func withLabel(label, name string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return name
	}
	return unsafeLabel.ReplaceAllString(label, "-") + "_" + name
}
