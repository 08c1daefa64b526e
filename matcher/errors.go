package matcher

import (
	"errors"
	"fmt"
)

// ErrTooSlow is wrapped by PatternCompileError when a regex fails the
// adversarial timing probe.
var ErrTooSlow = errors.New("pattern is too slow against adversarial input")

// PatternCompileError indicates a rule whose regex cannot be used.
type PatternCompileError struct {
	RuleID string
	Name   string
	Regex  string
	Err    error
}

func (e *PatternCompileError) Error() string {
	name := e.Name
	if name == "" {
		name = e.RuleID
	}
	return fmt.Sprintf("invalid regex pattern in %q: %v", name, e.Err)
}

func (e *PatternCompileError) Unwrap() error {
	return e.Err
}
