package backend

import (
	"errors"
	"fmt"
)

// NetworkSuggestions are shown when a backend cannot be reached at all.
var NetworkSuggestions = []string{
	"Check if the service is running and accessible",
	"Verify the URL and port are correct",
	"Check for firewall or network restrictions",
}

// Error types for dispatch
type (
	// ConfigurationError means no usable handler configuration exists. It is fatal
	// to a dispatch and never retried.
	ConfigurationError struct {
		Handler string
		Reason  string
	}

	// AuthenticationError means the backend rejected the credentials or session.
	AuthenticationError struct {
		Handler     string
		Reason      string
		StatusCode  int
		Suggestions []string
		Err         error
	}

	// NetworkError means the backend could not be reached.
	NetworkError struct {
		Handler     string
		URL         string
		Suggestions []string
		Err         error
	}

	// DeliveryError is the failure of a single item of a batch. It ends up as the
	// item's Error and never aborts the batch.
	DeliveryError struct {
		URL    string
		Reason string
		Err    error
	}
)

func (e *ConfigurationError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Handler, e.Reason)
	}
	return "configuration error: " + e.Reason
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("%s authentication failed", e.Handler)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cannot connect to %s at %s: %v", e.Handler, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Error() string {
	if e.Err != nil && e.Reason != "" {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// SuggestionsFor returns the remediation hints attached to err.
func SuggestionsFor(err error) []string {
	var auth *AuthenticationError
	if errors.As(err, &auth) {
		return auth.Suggestions
	}
	var network *NetworkError
	if errors.As(err, &network) {
		if len(network.Suggestions) > 0 {
			return network.Suggestions
		}
		return NetworkSuggestions
	}
	return nil
}
