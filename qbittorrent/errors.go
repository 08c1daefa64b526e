package qbittorrent

import "errors"

// Common errors returned by the qBittorrent client.
var (
	// ErrMissingURL is returned when no Web UI URL is configured.
	ErrMissingURL = errors.New("qBittorrent URL is required")

	// ErrRejected is returned when qBittorrent refuses a torrent.
	ErrRejected = errors.New("qBittorrent rejected the torrent")
)

// connectSuggestions are returned when the Web UI cannot be reached.
var connectSuggestions = []string{
	"Make sure qBittorrent is running and the Web UI is enabled",
	"Check the URL (default: http://localhost:8080)",
	"Enable 'Web User Interface (Remote control)' in Tools > Options > Web UI",
	"If qBittorrent runs behind a reverse proxy, allow this client in its CORS and host header settings",
	"Enable 'Bypass authentication for clients on localhost' when running on the same machine",
}

// authSuggestions are returned when the Web UI rejects the credentials.
var authSuggestions = []string{
	"Verify the Web UI username and password",
	"The default username is admin, newer versions print a temporary password on first start",
	"Reset the Web UI password in qBittorrent settings if you are unsure",
}
