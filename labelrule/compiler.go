package labelrule

import (
	"maps"
	"net/url"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/s0up4200/torrentsnag/fingerprint"
)

// DefaultCacheSize is the number of compiled expressions kept by a Compiler.
const DefaultCacheSize = 128

// Program is a compiled rule expression.
type Program struct {
	expression string
	program    *vm.Program
}

// Expression returns the source expression.
func (p *Program) Expression() string { return p.expression }

// Evaluate runs the program against in.
func (p *Program) Evaluate(in Input) (bool, error) {
	out, err := expr.Run(p.program, Env(in))
	if err != nil {
		return false, err
	}
	// AsBool at compile time guarantees the type
	return out.(bool), nil
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache sets the size of the compiled expression cache. Zero disables it.
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = newLRUCache(size)
		} else {
			c.cache = nil
		}
	}
}

// Compiler turns expressions into Programs.
type Compiler struct {
	env   map[string]any
	cache *lruCache
}

// NewCompiler creates a Compiler with a DefaultCacheSize cache.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		env:   Env(Input{}),
		cache: newLRUCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles expression. The result must be a boolean.
func (c *Compiler) Compile(expression string) (*Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	if c.cache != nil {
		if p, ok := c.cache.Get(expression); ok {
			return p, nil
		}
	}

	program, err := expr.Compile(expression, expr.Env(c.env), expr.AsBool())
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	p := &Program{expression: expression, program: program}
	if c.cache != nil {
		c.cache.Put(expression, p)
	}
	return p, nil
}

// Cached returns the number of cached programs.
func (c *Compiler) Cached() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Env builds the evaluation environment for in: the link variables plus the
// string helpers.
func Env(in Input) map[string]any {
	env := make(map[string]any, 16)
	maps.Copy(env, helpers)

	host := ""
	if !fingerprint.IsMagnet(in.URL) {
		if u, err := url.Parse(in.URL); err == nil {
			host = strings.ToLower(u.Hostname())
		}
	}

	env["url"] = in.URL
	env["text"] = strings.TrimSpace(in.Text)
	env["pattern"] = in.PatternID
	env["host"] = host
	env["domain"] = registrableDomain(host)
	env["isMagnet"] = fingerprint.IsMagnet(in.URL)
	env["name"] = fingerprint.DisplayName(in.URL)
	return env
}

func registrableDomain(host string) string {
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host
	}
	return domain
}

// helpers are case-insensitive. contains, startsWith, endsWith and matches are
// expr operators, so the helpers carry an i prefix instead.
var helpers = map[string]any{
	"icontains": func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	},
	"istartsWith": func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	},
	"iendsWith": func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	},
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"imatches": func(str, pattern string) bool {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(str)
	},
}
