package fleetacl

import "strings"

// NormalizeID canonicalizes an identifier component (account, role, group,
// device, user, acl): trimmed and lower-cased. All composite keys pass
// through here before touching a store.
func NormalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsBlankID reports whether an identifier is empty after normalization.
func IsBlankID(s string) bool {
	return strings.TrimSpace(s) == ""
}
