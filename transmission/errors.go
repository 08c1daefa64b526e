package transmission

import "errors"

var (
	// ErrMissingURL is returned when no RPC URL is configured.
	ErrMissingURL = errors.New("Transmission URL is required")

	// ErrSessionRejected is returned when a request still gets 409 after the
	// session id was refreshed.
	ErrSessionRejected = errors.New("session id rejected")
)

var connectSuggestions = []string{
	"Make sure Transmission is running with remote access enabled",
	"Check the URL (default: http://localhost:9091)",
	"Add this host to rpc-whitelist or disable rpc-whitelist-enabled",
}

var authSuggestions = []string{
	"Verify the RPC username and password",
	"Check rpc-authentication-required in settings.json",
}
