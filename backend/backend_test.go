package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatchIndependence(t *testing.T) {
	urls := []string{"magnet:?xt=urn:btih:1", "magnet:?xt=urn:btih:2", "magnet:?xt=urn:btih:3"}

	var calls []string
	result := RunBatch(context.Background(), urls, nil, BatchOptions{Delay: -1}, func(_ context.Context, url, _ string) error {
		calls = append(calls, url)
		if url == urls[1] {
			return errors.New("rejected")
		}
		return nil
	})

	assert.Equal(t, urls, calls)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Results, 3)
	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.Equal(t, "rejected", result.Results[1].Error)
	assert.True(t, result.Results[2].Success)
	assert.Len(t, result.Failed(), 1)
}

func TestRunBatchAllFail(t *testing.T) {
	result := RunBatch(context.Background(), []string{"a", "b"}, nil, BatchOptions{Delay: -1}, func(context.Context, string, string) error {
		return errors.New("nope")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 2, result.Total)
}

func TestRunBatchLabels(t *testing.T) {
	var got []string
	RunBatch(context.Background(), []string{"a", "b", "c"}, []string{"music", "  "}, BatchOptions{DefaultLabel: "default", Delay: -1},
		func(_ context.Context, _, label string) error {
			got = append(got, label)
			return nil
		})

	assert.Equal(t, []string{"music", "default", "default"}, got)
}

func TestRunBatchDelay(t *testing.T) {
	start := time.Now()
	RunBatch(context.Background(), []string{"a", "b", "c"}, nil, BatchOptions{Delay: 30 * time.Millisecond},
		func(context.Context, string, string) error { return nil })

	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	result := RunBatch(ctx, []string{"a", "b"}, nil, BatchOptions{Delay: time.Hour}, func(context.Context, string, string) error {
		cancel()
		return nil
	})

	assert.Equal(t, 1, result.Count)
	assert.False(t, result.Results[1].Success)
	assert.NotEmpty(t, result.Results[1].Error)
}

func TestExtractFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		want        string
	}{
		{"quoted", `attachment; filename="Album (2020).torrent"`, "https://x/dl", "Album (2020).torrent"},
		{"bare", `attachment; filename=plain.torrent`, "https://x/dl", "plain.torrent"},
		{"malformed header", `attachment; filename=bad;;`, "https://x/dl", "bad"},
		{"from url", "", "https://x/files/My%20File.torrent?x=1", "My File.torrent"},
		{"no extension", "", "https://x/download/12", DefaultFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFilename(tt.disposition, tt.url))
		})
	}
}

func TestIsHTMLRedirectURL(t *testing.T) {
	assert.True(t, IsHTMLRedirectURL("https://site/download/123.html"))
	assert.True(t, IsHTMLRedirectURL("https://site/get.php?id=1"))
	assert.False(t, IsHTMLRedirectURL("https://site/file.torrent"))
	assert.False(t, IsHTMLRedirectURL("magnet:?xt=urn:btih:abc"))
}

func TestErrorTaxonomy(t *testing.T) {
	network := &NetworkError{Handler: "Deluge", URL: "http://localhost:8112", Err: errors.New("connection refused")}
	wrapped := errors.Join(errors.New("dispatch"), network)

	assert.True(t, IsNetwork(wrapped))
	assert.False(t, IsAuthentication(wrapped))
	assert.Equal(t, NetworkSuggestions, SuggestionsFor(wrapped))

	auth := &AuthenticationError{Handler: "qBittorrent", Reason: "invalid credentials", Suggestions: []string{"Verify your credentials"}}
	assert.True(t, IsAuthentication(auth))
	assert.Equal(t, []string{"Verify your credentials"}, FromError(auth).Suggestions)
	assert.False(t, FromError(auth).Success)

	assert.True(t, IsConfiguration(&ConfigurationError{Reason: "no handler configured"}))
	assert.Equal(t, "configuration error: no handler configured", (&ConfigurationError{Reason: "no handler configured"}).Error())
}

func newTestResolver(server *httptest.Server) *Resolver {
	client := retryablehttp.NewClient()
	client.HTTPClient = server.Client()
	client.RetryMax = 0
	client.Logger = nil
	return NewResolver(client, "torrentsnag-test", zerolog.Nop())
}

func TestResolverDirectTorrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "torrentsnag-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "application/x-bittorrent")
		w.Header().Set("Content-Disposition", `attachment; filename="release.torrent"`)
		w.Write([]byte("d8:announce0:e"))
	}))
	defer server.Close()

	res, err := newTestResolver(server).Resolve(context.Background(), server.URL+"/download/5.html")
	require.NoError(t, err)
	assert.Equal(t, []byte("d8:announce0:e"), res.Data)
	assert.Equal(t, "release.torrent", res.Filename)
}

func TestResolverFollowsPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/details/5.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><a href="/about">About</a><a href="../files/5.torrent?k=1">Get</a></html>`))
	})
	mux.HandleFunc("/files/5.torrent", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Referer"), "/details/5.html")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("torrent-bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := newTestResolver(server).Resolve(context.Background(), server.URL+"/details/5.html")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/files/5.torrent?k=1", res.URL)
	assert.Equal(t, []byte("torrent-bytes"), res.Data)
	assert.Equal(t, "5.torrent", res.Filename)
}

func TestResolverLoginPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<form action="/login"><input name="user"></form>`))
	}))
	defer server.Close()

	_, err := newTestResolver(server).Resolve(context.Background(), server.URL+"/download.php?id=1")
	require.Error(t, err)
	assert.True(t, IsAuthentication(err))
}

func TestResolverFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/plain" {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("nothing"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<p>no links here</p>`))
	}))
	defer server.Close()

	r := newTestResolver(server)

	res, err := r.Resolve(context.Background(), server.URL+"/plain")
	require.NoError(t, err)
	assert.Nil(t, res.Data)
	assert.Equal(t, server.URL+"/plain", res.URL)

	res, err = r.Resolve(context.Background(), server.URL+"/page.html")
	require.NoError(t, err)
	assert.Nil(t, res.Data)
}
