package transmission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torrentsnag/backend"
)

type rpcCall struct {
	Method    string `json:"method"`
	Arguments struct {
		Filename string   `json:"filename"`
		Labels   []string `json:"labels"`
	} `json:"arguments"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.URL = server.URL + "/"
	client, err := NewClient(cfg, zerolog.Nop(), WithItemDelay(-1))
	require.NoError(t, err)
	return client, server
}

func TestSessionIDRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, rpcPath, r.URL.Path)

		if r.Header.Get(SessionHeader) != "abc123" {
			w.Header().Set(SessionHeader, "abc123")
			w.WriteHeader(http.StatusConflict)
			return
		}

		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "torrent-add", call.Method)
		assert.Equal(t, "magnet:?xt=urn:btih:abc", call.Arguments.Filename)
		w.Write([]byte(`{"result":"success","arguments":{"torrent-added":{"id":1}}}`))
	}, Config{})

	result, err := client.AddTorrents(context.Background(), []string{"magnet:?xt=urn:btih:abc"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())

	// the session id is reused
	_, err = client.AddTorrents(context.Background(), []string{"magnet:?xt=urn:btih:abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryOnlyOnce(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(SessionHeader, "rotating")
		w.WriteHeader(http.StatusConflict)
	}, Config{})

	result, err := client.AddTorrents(context.Background(), []string{"magnet:?xt=urn:btih:abc"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, result.Results[0].Error, ErrSessionRejected.Error())
}

func TestAddTorrentsLabelsAndAuth(t *testing.T) {
	var got []rpcCall
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		got = append(got, call)

		if call.Arguments.Filename == "https://x/bad.torrent" {
			w.Write([]byte(`{"result":"invalid or corrupt torrent file"}`))
			return
		}
		w.Write([]byte(`{"result":"success"}`))
	}, Config{Username: "admin", Password: "secret", DefaultLabel: "tv"})

	result, err := client.AddTorrents(context.Background(),
		[]string{"magnet:?xt=urn:btih:a", "https://x/bad.torrent", "magnet:?xt=urn:btih:c"},
		[]string{"movies"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, "invalid or corrupt torrent file", result.Results[1].Error)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"movies"}, got[0].Arguments.Labels)
	assert.Equal(t, []string{"tv"}, got[2].Arguments.Labels)
}

func TestUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, Config{Username: "admin", Password: "wrong"})

	result, err := client.AddTorrents(context.Background(), []string{"magnet:?xt=urn:btih:a"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Results[0].Error, "invalid credentials")

	err = client.Login(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsAuthentication(err))
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantSuccess bool
		wantVersion string
	}{
		{
			name: "ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","arguments":{"version":"4.0.5 (a6fe2a64aa)"}}`))
			},
			wantSuccess: true,
			wantVersion: "4.0.5 (a6fe2a64aa)",
		},
		{
			name: "conflict",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			},
			wantSuccess: true,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler, Config{})
			res := client.TestConnection(context.Background())
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantVersion, res.Version)
		})
	}
}

func TestTestConnectionUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Config{URL: url}, zerolog.Nop())
	require.NoError(t, err)

	res := client.TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, connectSuggestions, res.Suggestions)
}
