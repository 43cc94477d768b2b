package access

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Requirement is the outcome of a policy decision for a path.
type Requirement int

const (
	// RequireAuthenticated admits only requests carrying a live session.
	RequireAuthenticated Requirement = iota
	// AllowAnonymous admits every request.
	AllowAnonymous
)

func (r Requirement) String() string {
	switch r {
	case AllowAnonymous:
		return "anonymous"
	case RequireAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// Rule binds one ant-style path pattern to a requirement.
type Rule struct {
	Pattern     string
	Requirement Requirement
}

type compiledRule struct {
	pattern     string
	matcher     glob.Glob
	requirement Requirement
}

// Policy is an ordered, compiled rule table. The zero value is not usable;
// build one with NewPolicy or DefaultPolicy.
type Policy struct {
	rules []compiledRule
}

// NewPolicy compiles the rules in order. Evaluation is first match wins, so
// put narrow patterns before broad ones. A pattern that fails to compile
// aborts construction.
func NewPolicy(rules []Rule) (*Policy, error) {
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		m, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", r.Pattern, err)
		}
		p.rules = append(p.rules, compiledRule{
			pattern:     r.Pattern,
			matcher:     m,
			requirement: r.Requirement,
		})
	}
	return p, nil
}

// MustPolicy is NewPolicy for static rule tables; it panics on a bad
// pattern.
func MustPolicy(rules []Rule) *Policy {
	p, err := NewPolicy(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// Decide returns the requirement for a request path. The path is normalized
// to a leading slash and evaluated against the rules in order; with no
// match the default is RequireAuthenticated.
func (p *Policy) Decide(path string) Requirement {
	if path == "" || !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for _, r := range p.rules {
		if r.matcher.Match(path) {
			return r.requirement
		}
	}
	return RequireAuthenticated
}

// DefaultPolicy is the stock rule table: the landing, home, login, signup
// and demo form surfaces are public, everything else needs a session.
func DefaultPolicy() *Policy {
	return MustPolicy([]Rule{
		{Pattern: "/", Requirement: AllowAnonymous},
		{Pattern: "/home", Requirement: AllowAnonymous},
		{Pattern: "/login", Requirement: AllowAnonymous},
		{Pattern: "/logout", Requirement: AllowAnonymous},
		{Pattern: "/members/**", Requirement: AllowAnonymous},
		{Pattern: "/basic/**", Requirement: AllowAnonymous},
		{Pattern: "/validation/**", Requirement: AllowAnonymous},
		{Pattern: "/css/**", Requirement: AllowAnonymous},
		{Pattern: "/*.ico", Requirement: AllowAnonymous},
	})
}
