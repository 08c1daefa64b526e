package backend

import "context"

// Handler is a torrent client integration. Implementations process the URLs of
// a batch one after the other and report every item separately.
type Handler interface {
	// Name is the display name, for example "qBittorrent".
	Name() string
	// Login authenticates against the backend.
	Login(ctx context.Context) error
	// AddTorrents sends urls to the backend. labels[i] applies to urls[i]; a missing
	// or empty label falls back to the configured default. The error is non-nil only
	// when nothing could be attempted, per item failures are part of the Result.
	AddTorrents(ctx context.Context, urls, labels []string) (*Result, error)
	// TestConnection checks reachability and credentials.
	TestConnection(ctx context.Context) *TestResult
}

// Result is the outcome of AddTorrents. Results has one entry per input URL, in
// input order.
type Result struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Total   int          `json:"total"`
	Results []ItemResult `json:"results"`
}

// ItemResult is the outcome of a single URL.
type ItemResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Label   string `json:"label,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed returns the items that were not delivered.
func (r *Result) Failed() []ItemResult {
	var out []ItemResult
	for _, item := range r.Results {
		if !item.Success {
			out = append(out, item)
		}
	}
	return out
}

// TestResult describes a connection test.
type TestResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Version     string   `json:"version,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// FromError converts err into a failed TestResult, carrying the suggestions of
// AuthenticationError and NetworkError.
func FromError(err error) *TestResult {
	return &TestResult{
		Success:     false,
		Message:     err.Error(),
		Suggestions: SuggestionsFor(err),
	}
}
