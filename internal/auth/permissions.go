package auth

import "strings"

// HasPermission checks a key's permission list against a required
// permission, supporting a bare wildcard ("*"), a resource wildcard
// ("wallet:*"), or an exact match ("wallet:deposit"). Grounded on the
// teacher's fixed role-set idiom in the now-removed auth/roles.go,
// generalized from an enum of roles to wildcard string matching.
func HasPermission(granted []string, required string) bool {
	for _, perm := range granted {
		if perm == "*" || perm == required {
			return true
		}
		if strings.HasSuffix(perm, ":*") {
			prefix := strings.TrimSuffix(perm, "*")
			if strings.HasPrefix(required, prefix) {
				return true
			}
		}
	}
	return false
}
