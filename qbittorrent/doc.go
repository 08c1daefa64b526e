// Package qbittorrent sends torrents to qBittorrent through its Web API.
//
// This package wraps the autobrr/go-qbittorrent library and implements
// backend.Handler. Magnet links and torrent URLs are submitted directly, while
// URLs that look like download pages are followed first so the torrent file
// can be uploaded instead.
//
// # Features
//
//   - Lazy authentication on the first batch
//   - Per item categories with a configurable default
//   - Download page resolution with a URL fallback
//   - Connection tests with remediation hints
//
// # Usage
//
//	client, err := qbittorrent.NewClient(qbittorrent.Config{
//	    URL:      "http://localhost:8080",
//	    Username: "admin",
//	    Password: "secret",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.AddTorrents(ctx, urls, labels)
package qbittorrent
