package deluge

import "errors"

var (
	// ErrMissingURL is returned when no Web UI URL is configured.
	ErrMissingURL = errors.New("Deluge URL is required")

	// ErrInvalidPassword is returned when auth.login does not answer true.
	ErrInvalidPassword = errors.New("invalid password")
)

var connectSuggestions = []string{
	"Make sure deluge-web is running",
	"Check the URL (default: http://localhost:8112)",
	"Connect the Web UI to a daemon in its Connection Manager",
}

var authSuggestions = []string{
	"Verify the Web UI password",
	"The default Web UI password is deluge",
}
