package auth

import (
	"slices"
	"strings"
)

// tokenScopes collects granted scopes from either an Okta-style "scp"
// array or an OAuth2 space-delimited "scope" string.
type tokenScopes struct {
	Scp   []string `json:"scp"`
	Scope string   `json:"scope"`
}

func (s tokenScopes) has(scope string) bool {
	if slices.Contains(s.Scp, scope) {
		return true
	}
	return slices.Contains(strings.Fields(s.Scope), scope)
}
