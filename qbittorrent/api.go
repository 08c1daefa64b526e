package qbittorrent

import (
	"context"

	"github.com/autobrr/go-qbittorrent"
)

// API is the subset of the go-qbittorrent client used by Client.
type API interface {
	LoginCtx(ctx context.Context) error
	GetAppVersionCtx(ctx context.Context) (string, error)
	GetWebAPIVersionCtx(ctx context.Context) (string, error)
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
}

var _ API = (*qbittorrent.Client)(nil)
