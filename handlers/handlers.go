// Package handlers maps a handler kind from the settings to its backend
// implementation.
package handlers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/deluge"
	"github.com/s0up4200/torrentsnag/download"
	"github.com/s0up4200/torrentsnag/qbittorrent"
	"github.com/s0up4200/torrentsnag/settings"
	"github.com/s0up4200/torrentsnag/transmission"
)

// Descriptor describes a handler kind for configuration screens.
type Descriptor struct {
	Type         string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiresAuth bool     `json:"requiresAuth"`
	Fields       []string `json:"fields"`
}

var descriptors = []Descriptor{
	{
		Type:         settings.KindQBittorrent,
		Name:         qbittorrent.Name,
		Description:  "Send torrents to qBittorrent Web UI",
		RequiresAuth: true,
		Fields:       []string{"url", "username", "password", "defaultLabel"},
	},
	{
		Type:         settings.KindTransmission,
		Name:         transmission.Name,
		Description:  "Send torrents to Transmission daemon",
		RequiresAuth: true,
		Fields:       []string{"url", "username", "password", "defaultLabel"},
	},
	{
		Type:         settings.KindDeluge,
		Name:         deluge.Name,
		Description:  "Send torrents to Deluge Web UI",
		RequiresAuth: true,
		Fields:       []string{"url", "password", "defaultLabel"},
	},
	{
		Type:         settings.KindDownload,
		Name:         download.Name,
		Description:  "Download torrent files to a local folder",
		RequiresAuth: false,
		Fields:       []string{"downloadDir", "defaultLabel"},
	},
}

// Available returns the descriptors of every handler kind.
func Available() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Options are passed to every handler the factory builds.
type Options struct {
	UserAgent string
}

// New builds the handler for kind from cfg.
func New(kind string, cfg settings.HandlerConfig, logger zerolog.Logger, opts Options) (backend.Handler, error) {
	timeout := cfg.TimeoutDuration()

	switch kind {
	case settings.KindQBittorrent:
		c, err := qbittorrent.NewClient(qbittorrent.Config{
			URL:          cfg.URL,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DefaultLabel: cfg.DefaultLabel,
			BasicUser:    cfg.BasicUser,
			BasicPass:    cfg.BasicPass,
		}, logger, qbittorrent.WithTimeout(timeout), qbittorrent.WithUserAgent(opts.UserAgent))
		if err != nil {
			return nil, err
		}
		return c, nil

	case settings.KindTransmission:
		c, err := transmission.NewClient(transmission.Config{
			URL:          cfg.URL,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DefaultLabel: cfg.DefaultLabel,
		}, logger, transmission.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		return c, nil

	case settings.KindDeluge:
		c, err := deluge.NewClient(deluge.Config{
			URL:          cfg.URL,
			Password:     cfg.Password,
			DefaultLabel: cfg.DefaultLabel,
		}, logger, deluge.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		return c, nil

	case settings.KindDownload:
		c, err := download.NewClient(download.Config{
			Dir:          cfg.DownloadDir,
			DefaultLabel: cfg.DefaultLabel,
		}, logger, download.WithTimeout(timeout), download.WithUserAgent(opts.UserAgent))
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, &backend.ConfigurationError{Reason: fmt.Sprintf("unknown handler type: %s", kind)}
	}
}
