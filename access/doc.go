// Package access maps request paths to authentication requirements.
//
// A Policy is an ordered list of path rules. Rules use ant-style patterns
// ('*' within one path segment, '**' across segments) and the first match
// wins, so specific rules go before broad ones. Paths that match no rule
// require an authenticated principal.
package access
