package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrBuiltinRule is returned when deleting a built-in pattern or filter.
	ErrBuiltinRule = errors.New("built-in rules cannot be removed")

	// ErrRuleNotFound is returned for an unknown rule id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrMissingName is returned when adding a rule without a name.
	ErrMissingName = errors.New("rule name is required")

	// ErrUnknownHandler is returned for a handler kind that does not exist.
	ErrUnknownHandler = errors.New("unknown handler type")

	// ErrMissingSettings is returned by Import when the document has no settings.
	ErrMissingSettings = errors.New("invalid settings file: missing settings data")

	// ErrWrongApplication is returned by Import for another application's export.
	ErrWrongApplication = errors.New("settings file is not for " + ExtensionName)
)

// ValidationError names the rule whose regex was rejected.
type ValidationError struct {
	RuleID string
	Name   string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid regex pattern in %q: %v", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
