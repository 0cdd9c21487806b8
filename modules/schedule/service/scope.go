package service

import "fmt"

// MutationScope controls how far a mutation propagates across a series.
// Modeled as a closed type so invalid scopes are rejected at the boundary
// instead of leaking free-form strings into the service.
type MutationScope int

const (
	// ScopeThis touches exactly the named occurrence.
	ScopeThis MutationScope = iota
	// ScopeFollowing touches the named occurrence and every occurrence in
	// the same series on or after its date. Past occurrences are never
	// altered retroactively.
	ScopeFollowing
)

// ParseScope maps the query-string value. Empty defaults to "this".
func ParseScope(s string) (MutationScope, error) {
	switch s {
	case "", "this":
		return ScopeThis, nil
	case "following":
		return ScopeFollowing, nil
	}
	return ScopeThis, fmt.Errorf("invalid scope %q: must be \"this\" or \"following\"", s)
}

func (s MutationScope) String() string {
	if s == ScopeFollowing {
		return "following"
	}
	return "this"
}
