package update

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	latest    *Release
	found     bool
	err       error
	installed *Release
}

func (f *fakeSource) DetectLatest(context.Context, string) (*Release, bool, error) {
	return f.latest, f.found, f.err
}

func (f *fakeSource) UpdateTo(_ context.Context, rel *Release) error {
	f.installed = rel
	return nil
}

func TestUpdaterRun(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		source      *fakeSource
		wantUpdated bool
		wantErr     error
	}{
		{
			name:        "newer release",
			version:     "v1.2.0",
			source:      &fakeSource{latest: &Release{Version: "1.3.0"}, found: true},
			wantUpdated: true,
		},
		{
			name:    "already latest",
			version: "1.3.0",
			source:  &fakeSource{latest: &Release{Version: "v1.3.0"}, found: true},
		},
		{
			name:    "dev build",
			version: "dev",
			source:  &fakeSource{},
			wantErr: ErrDevBuild,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpdater(Config{Version: tt.version}, tt.source, zerolog.Nop())
			updated, err := u.Run(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUpdated, updated)
			if tt.wantUpdated {
				assert.Equal(t, tt.source.latest, tt.source.installed)
			} else {
				assert.Nil(t, tt.source.installed)
			}
		})
	}
}

func TestUpdaterCheckErrors(t *testing.T) {
	u := NewUpdater(Config{Version: "1.0.0"}, &fakeSource{err: errors.New("rate limited")}, zerolog.Nop())
	_, _, err := u.Check(context.Background())
	assert.ErrorContains(t, err, "rate limited")

	u = NewUpdater(Config{Version: "1.0.0"}, &fakeSource{}, zerolog.Nop())
	_, _, err = u.Check(context.Background())
	assert.ErrorContains(t, err, DefaultRepository)

	u = NewUpdater(Config{Version: "not-a-version"}, &fakeSource{}, zerolog.Nop())
	_, _, err = u.Check(context.Background())
	assert.ErrorContains(t, err, "could not parse version")
}
