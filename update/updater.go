// Package update replaces the running binary with the latest GitHub release.
package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/rs/zerolog"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "s0up4200/torrentsnag"

// ErrDevBuild is returned for binaries built without a release version.
var ErrDevBuild = errors.New("development builds cannot be updated")

// Release is a published version.
type Release struct {
	Version   string
	AssetURL  string
	AssetName string
}

// Source finds the latest release and installs it.
type Source interface {
	DetectLatest(ctx context.Context, repository string) (*Release, bool, error)
	UpdateTo(ctx context.Context, rel *Release) error
}

type Config struct {
	Repository string
	Version    string
}

// Updater checks for and applies updates.
type Updater struct {
	config Config
	source Source
	logger zerolog.Logger
}

// NewUpdater creates an Updater backed by GitHub releases. A nil source uses
// go-selfupdate.
func NewUpdater(config Config, source Source, logger zerolog.Logger) *Updater {
	if config.Repository == "" {
		config.Repository = DefaultRepository
	}
	if source == nil {
		source = githubSource{}
	}
	return &Updater{config: config, source: source, logger: logger}
}

// Check returns the latest release and whether it is newer than the running
// version.
func (u *Updater) Check(ctx context.Context) (*Release, bool, error) {
	current, err := u.current()
	if err != nil {
		return nil, false, err
	}

	latest, found, err := u.source.DetectLatest(ctx, u.config.Repository)
	if err != nil {
		return nil, false, fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return nil, false, fmt.Errorf("latest version for %s could not be found from github repository", u.config.Repository)
	}

	v, err := semver.ParseTolerant(latest.Version)
	if err != nil {
		return nil, false, fmt.Errorf("could not parse release version %q: %w", latest.Version, err)
	}
	return latest, v.GT(current), nil
}

// Run installs the latest release when it is newer. It reports whether the
// binary was replaced.
func (u *Updater) Run(ctx context.Context) (bool, error) {
	latest, newer, err := u.Check(ctx)
	if err != nil {
		return false, err
	}
	if !newer {
		u.logger.Info().Str("version", u.config.Version).Msg("Current binary is the latest version")
		return false, nil
	}

	if err := u.source.UpdateTo(ctx, latest); err != nil {
		return false, fmt.Errorf("error occurred while updating binary: %w", err)
	}

	u.logger.Info().Str("version", latest.Version).Msg("Successfully updated")
	return true, nil
}

func (u *Updater) current() (semver.Version, error) {
	if u.config.Version == "" || u.config.Version == "dev" {
		return semver.Version{}, ErrDevBuild
	}
	v, err := semver.ParseTolerant(u.config.Version)
	if err != nil {
		return semver.Version{}, fmt.Errorf("could not parse version: %w", err)
	}
	return v, nil
}

type githubSource struct{}

func (githubSource) DetectLatest(ctx context.Context, repository string) (*Release, bool, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repository))
	if err != nil || !found {
		return nil, found, err
	}
	return &Release{
		Version:   latest.Version(),
		AssetURL:  latest.AssetURL,
		AssetName: latest.AssetName,
	}, true, nil
}

func (githubSource) UpdateTo(ctx context.Context, rel *Release) error {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	return selfupdate.UpdateTo(ctx, rel.AssetURL, rel.AssetName, exe)
}
