// Package policy decides which CONNECT destinations the gateway may reach.
package policy

import (
	"fmt"
	"regexp"
)

// MatchAll is the pattern used when the operator configures none.
const MatchAll = ".*"

// Validator checks CONNECT targets against one compiled allow-pattern.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	pattern *regexp.Regexp
}

// NewValidator compiles expr into a Validator. An empty expr allows every
// destination.
func NewValidator(expr string) (*Validator, error) {
	if expr == "" {
		expr = MatchAll
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid destination pattern %q: %w", expr, err)
	}
	return &Validator{pattern: re}, nil
}

// Matches reports whether target is an allowed destination. The pattern is
// matched anywhere in the raw target string; anchor it with ^ and $ to
// require a full match.
func (v *Validator) Matches(target string) bool {
	return v.pattern.MatchString(target)
}

// String returns the source pattern.
func (v *Validator) String() string {
	return v.pattern.String()
}
