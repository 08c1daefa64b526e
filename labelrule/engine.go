package labelrule

import (
	"strings"

	"github.com/rs/zerolog"
)

type compiledRule struct {
	rule    Rule
	program *Program
}

// Engine picks labels for links from an ordered rule list.
type Engine struct {
	rules  []compiledRule
	logger zerolog.Logger
}

// New compiles rules with compiler. Rules without a label are skipped.
func New(rules []Rule, compiler *Compiler, logger zerolog.Logger) (*Engine, error) {
	if compiler == nil {
		compiler = NewCompiler()
	}

	e := &Engine{logger: logger}
	for _, r := range rules {
		if strings.TrimSpace(r.Label) == "" {
			continue
		}
		p, err := compiler.Compile(r.Expression)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiledRule{rule: r, program: p})
	}
	return e, nil
}

// Validate compiles every rule and returns the first error.
func Validate(rules []Rule) error {
	c := NewCompiler(WithCache(0))
	for _, r := range rules {
		if _, err := c.Compile(r.Expression); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of active rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Label returns the label of the first rule matching in, or "". Rules that fail
// at runtime are logged and skipped.
func (e *Engine) Label(in Input) string {
	if e == nil {
		return ""
	}

	for _, r := range e.rules {
		ok, err := r.program.Evaluate(in)
		if err != nil {
			evalErr := &EvaluationError{Rule: ruleName(r.rule), URL: in.URL, Reason: "expression failed", Err: err}
			e.logger.Warn().Err(evalErr).Msg("Label rule failed")
			continue
		}
		if ok {
			return strings.TrimSpace(r.rule.Label)
		}
	}
	return ""
}

// Labels returns one label per input, "" when no rule matched.
func (e *Engine) Labels(inputs []Input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = e.Label(in)
	}
	return out
}

func ruleName(r Rule) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Expression
}
