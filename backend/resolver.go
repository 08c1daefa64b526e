package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const maxTorrentSize = 32 << 20

var loginPage = regexp.MustCompile(`(?i)(login|signin|sign-in|authentication)`)

// Resolved is the result of following an HTML download page. When Data is nil
// the caller submits URL as is.
type Resolved struct {
	URL      string
	Data     []byte
	Filename string
}

// Resolver follows pages that front a torrent file and returns the file itself.
type Resolver struct {
	client    *retryablehttp.Client
	userAgent string
	logger    zerolog.Logger
}

// NewResolver creates a Resolver using client for every request.
func NewResolver(client *retryablehttp.Client, userAgent string, logger zerolog.Logger) *Resolver {
	return &Resolver{client: client, userAgent: userAgent, logger: logger}
}

// Resolve fetches rawURL. A torrent body is returned as Data. An HTML body is
// searched for the first .torrent link which is downloaded instead. Anything
// else resolves to rawURL unchanged. A login page yields an AuthenticationError.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolved, error) {
	resp, body, err := r.get(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}

	switch contentKind(resp.Header.Get("Content-Type")) {
	case kindTorrent:
		return &Resolved{
			URL:      rawURL,
			Data:     body,
			Filename: ExtractFilename(resp.Header.Get("Content-Disposition"), rawURL),
		}, nil
	case kindHTML:
		return r.followPage(ctx, rawURL, body)
	default:
		return &Resolved{URL: rawURL}, nil
	}
}

func (r *Resolver) followPage(ctx context.Context, pageURL string, body []byte) (*Resolved, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse download page: %w", err)
	}

	var href string
	doc.Find("a[href], link[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(h), ".torrent") {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})

	if href == "" {
		if doc.Find("form").Length() > 0 && loginPage.Match(body) {
			return nil, &AuthenticationError{
				Reason: "download page requires authentication",
				Suggestions: []string{
					"Log in to the site in your browser first",
					"Use a direct .torrent or magnet link instead",
				},
			}
		}
		r.logger.Debug().Str("url", pageURL).Msg("No torrent link on download page")
		return &Resolved{URL: pageURL}, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid torrent link %q: %w", href, err)
	}
	torrentURL := base.ResolveReference(ref).String()

	resp, data, err := r.get(ctx, torrentURL, pageURL)
	if err != nil {
		return nil, err
	}
	if contentKind(resp.Header.Get("Content-Type")) == kindHTML {
		return nil, fmt.Errorf("torrent link %s returned an HTML page", torrentURL)
	}

	return &Resolved{
		URL:      torrentURL,
		Data:     data,
		Filename: ExtractFilename(resp.Header.Get("Content-Disposition"), torrentURL),
	}, nil
}

func (r *Resolver) get(ctx context.Context, rawURL, referer string) (*http.Response, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if referer == "" {
		if u, err := url.Parse(rawURL); err == nil {
			referer = u.Scheme + "://" + u.Host + "/"
		}
	}
	req.Header.Set("Referer", referer)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTorrentSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return resp, body, nil
}

type kind int

const (
	kindOther kind = iota
	kindTorrent
	kindHTML
)

func contentKind(contentType string) kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "application/x-bittorrent", "application/octet-stream":
		return kindTorrent
	case "text/html", "application/xhtml+xml":
		return kindHTML
	default:
		return kindOther
	}
}
