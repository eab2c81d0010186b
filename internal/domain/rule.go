package domain

// RuleConfig defines a custom venue rule evaluated by the real-time
// monitor alongside the built-in checks. Expression is a CEL boolean over
// the live event; a true result counts as one triggered monitor rule.
type RuleConfig struct {
	ID          string `json:"id"`
	VenueID     string `json:"venueId"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression, must evaluate to bool
	Expression string `json:"expression"`

	// Flag is the human-readable marker attached to assessments when the
	// rule triggers. Defaults to the rule name.
	Flag string `json:"flag,omitempty"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}
