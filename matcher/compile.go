package matcher

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ProbeLimit is the longest a regex may take against the adversarial probe.
var ProbeLimit = 100 * time.Millisecond

var probeInput = strings.Repeat("a", 1000)

type compiledRule struct {
	id string
	re *regexp.Regexp
}

// Compiled holds the enabled rules of one scan, compiled once.
type Compiled struct {
	patterns []compiledRule
	filters  []compiledRule
}

// Compile compiles the enabled patterns and filters. Matching is case-insensitive.
// Disabled rules are skipped without being compiled.
func Compile(patterns, filters []Rule) (*Compiled, error) {
	c := &Compiled{}

	for _, r := range patterns {
		if !r.Enabled {
			continue
		}
		re, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		c.patterns = append(c.patterns, compiledRule{id: r.ID, re: re})
	}

	for _, r := range filters {
		if !r.Enabled {
			continue
		}
		re, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		c.filters = append(c.filters, compiledRule{id: r.ID, re: re})
	}

	return c, nil
}

// Patterns returns the number of active patterns.
func (c *Compiled) Patterns() int { return len(c.patterns) }

// Filters returns the number of active filters.
func (c *Compiled) Filters() int { return len(c.filters) }

func compileRule(r Rule) (*regexp.Regexp, error) {
	re, err := compileSource(r.Regex)
	if err != nil {
		return nil, &PatternCompileError{RuleID: r.ID, Name: r.Name, Regex: r.Regex, Err: err}
	}
	return re, nil
}

func compileSource(source string) (*regexp.Regexp, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("empty pattern")
	}
	return regexp.Compile("(?i)" + source)
}

// ValidateRegex compiles source and times it against a 1000 character probe.
func ValidateRegex(source string) error {
	re, err := compileSource(source)
	if err != nil {
		return err
	}

	start := time.Now()
	re.MatchString(probeInput)
	if elapsed := time.Since(start); elapsed > ProbeLimit {
		return ErrTooSlow
	}
	return nil
}

// ValidateRule is ValidateRegex reporting failures as a PatternCompileError.
func ValidateRule(r Rule) error {
	if err := ValidateRegex(r.Regex); err != nil {
		return &PatternCompileError{RuleID: r.ID, Name: r.Name, Regex: r.Regex, Err: err}
	}
	return nil
}
