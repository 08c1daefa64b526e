package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head><title> Releases </title></head>
<body>
  <a href="magnet:?xt=urn:btih:AABBCCDDEEFF00112233445566778899AABBCCDD&amp;dn=Test">  Test
     release </a>
  <a href="/files/album.torrent">Album</a>
  <a href="details.php?id=7" title="Details"></a>
  <a href="#top">Top</a>
  <a href="javascript:void(0)">Nope</a>
  <a>no href</a>
</body></html>`

func TestParse(t *testing.T) {
	base, _ := url.Parse("https://tracker.example/browse/index.html")

	doc, err := Parse(base, strings.NewReader(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Releases", doc.Title)
	require.Len(t, doc.Links, 3)
	assert.Equal(t, "magnet:?xt=urn:btih:AABBCCDDEEFF00112233445566778899AABBCCDD&dn=Test", doc.Links[0].Href)
	assert.Equal(t, "Test release", doc.Links[0].Text)
	assert.Equal(t, "https://tracker.example/files/album.torrent", doc.Links[1].Href)
	assert.Equal(t, "https://tracker.example/browse/details.php?id=7", doc.Links[2].Href)
	assert.Equal(t, "Details", doc.Links[2].Text)
}

func TestParseBaseElement(t *testing.T) {
	base, _ := url.Parse("https://a.example/page")
	doc, err := Parse(base, strings.NewReader(`<base href="https://cdn.example/t/"><a href="x.torrent">x</a>`))
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "https://cdn.example/t/x.torrent", doc.Links[0].Href)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "torrentsnag-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in latin-1
		w.Write([]byte("<a href=\"/c.torrent\">Caf\xe9</a>"))
	}))
	defer server.Close()

	f := NewFetcher(zerolog.Nop(), WithUserAgent("torrentsnag-test"), WithRetries(0), WithHTTPClient(server.Client()))

	doc, err := f.Fetch(context.Background(), server.URL+"/list")
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)
	assert.Equal(t, server.URL+"/c.torrent", doc.Links[0].Href)
	assert.Equal(t, "Café", doc.Links[0].Text)
}

func TestFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewFetcher(zerolog.Nop(), WithRetries(0), WithHTTPClient(server.Client()))
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchInvalidURL(t *testing.T) {
	f := NewFetcher(zerolog.Nop())
	_, err := f.Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFetchAllKeepsOrder(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`<a href="` + r.URL.Path + `.torrent">t</a>`))
	}))
	defer server.Close()

	f := NewFetcher(zerolog.Nop(), WithRetries(0), WithHTTPClient(server.Client()))
	results := f.FetchAll(context.Background(), []string{server.URL + "/one", server.URL + "/bad", server.URL + "/two"})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, server.URL+"/two.torrent", results[2].Document.Links[0].Href)
	assert.Equal(t, int32(3), hits.Load())
}
