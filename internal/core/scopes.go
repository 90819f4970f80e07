package core

import "strings"

// Scopes attached to verified identities. Tool handlers consult these for
// coarse authorization; the group-to-scope policy lives in ScopesFor and
// nowhere else.
const (
	ScopeReadData  = "read:data"
	ScopeWriteData = "write:data"
	ScopeAdminAll  = "admin:all"
)

const adminGroup = "system:admin"

// ScopesFor maps an identity to its access scopes. Every authenticated
// identity can read; cluster system groups gain write access; the admin
// group gains everything. Total and deterministic, no I/O.
func ScopesFor(id Identity) []string {
	scopes := []string{ScopeReadData}
	if id.HasGroup(adminGroup) {
		return append(scopes, ScopeWriteData, ScopeAdminAll)
	}
	for _, g := range id.Groups {
		if strings.HasPrefix(g, "system:") {
			return append(scopes, ScopeWriteData)
		}
	}
	return scopes
}
