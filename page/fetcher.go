package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/torrentsnag/matcher"
)

const (
	// DefaultUserAgent is sent with every page request.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 2
	maxBodySize      = 16 << 20
	fetchConcurrency = 4
)

// Document is a fetched page reduced to its hyperlinks.
type Document struct {
	URL   string         `json:"url"`
	Title string         `json:"title"`
	Links []matcher.Link `json:"links"`
}

// Option configures a Fetcher.
type Option func(*options)

type options struct {
	timeout    time.Duration
	retries    int
	userAgent  string
	httpClient *http.Client
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewClient returns a retrying HTTP client that logs through logger.
func NewClient(logger zerolog.Logger, opts ...Option) *retryablehttp.Client {
	o := buildOptions(opts)
	return newRetryClient(logger, o)
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newRetryClient(logger zerolog.Logger, o options) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.Logger = leveledLogger{logger: logger}
	rc.RetryMax = o.retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	if o.httpClient != nil {
		rc.HTTPClient = o.httpClient
	}
	rc.HTTPClient.Timeout = o.timeout
	return rc
}

// Fetcher downloads pages and extracts their links.
type Fetcher struct {
	client    *retryablehttp.Client
	userAgent string
	logger    zerolog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(logger zerolog.Logger, opts ...Option) *Fetcher {
	o := buildOptions(opts)
	logger = logger.With().Str("component", "page").Logger()
	return &Fetcher{
		client:    newRetryClient(logger, o),
		userAgent: o.userAgent,
		logger:    logger,
	}
}

// Client returns the retrying client used by the fetcher.
func (f *Fetcher) Client() *retryablehttp.Client {
	return f.client
}

// UserAgent returns the User-Agent sent by the fetcher.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch downloads pageURL and returns its links resolved against the page.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid page URL %q", pageURL)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", pageURL, err)
	}

	// redirects change the base for relative links
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	doc, err := Parse(base, body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("url", doc.URL).
		Int("links", len(doc.Links)).
		Msg("Fetched page")

	return doc, nil
}

// Result is the outcome of one page in FetchAll.
type Result struct {
	URL      string
	Document *Document
	Err      error
}

// FetchAll fetches pages concurrently. Results are returned in input order and a
// failed page does not stop the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	var mu sync.Mutex
	for i, u := range urls {
		g.Go(func() error {
			doc, err := f.Fetch(ctx, u)
			if err != nil {
				f.logger.Warn().Err(err).Str("url", u).Msg("Failed to fetch page")
			}

			mu.Lock()
			results[i] = Result{URL: u, Document: doc, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Parse reads an HTML document and returns its anchors resolved against base.
// A <base href> element takes precedence over base.
func Parse(base *url.URL, r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	out := &Document{
		URL:   base.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			text = s.AttrOr("title", "")
		}

		out.Links = append(out.Links, matcher.Link{Href: resolve(base, href), Text: text})
	})

	return out, nil
}

func resolve(base *url.URL, href string) string {
	if len(href) >= 7 && strings.EqualFold(href[:7], "magnet:") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
