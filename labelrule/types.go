package labelrule

// Rule assigns Label to links for which Expression evaluates to true.
type Rule struct {
	Name       string `json:"name,omitempty"`
	Expression string `json:"expression"`
	Label      string `json:"label"`
}

// Input is the link a rule is evaluated against.
type Input struct {
	URL       string
	Text      string
	PatternID string
}
