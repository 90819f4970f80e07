package core

import "slices"

// Identity represents the verified caller of a request.
// It is produced by an Authenticator after checking a bearer credential
// against the upstream cluster, or synthesized when verification is disabled.
type Identity struct {
	// Username is the login name (e.g. "alice").
	Username string `json:"username"`

	// SubjectID is the stable unique identifier of the subject (e.g. the
	// user object UID). It survives username changes.
	SubjectID string `json:"subject_id"`

	// Groups are the group memberships, used for scope mapping and
	// datasource access rules.
	Groups []string `json:"groups"`

	// Method records which mechanism produced this identity.
	Method AuthMethod `json:"auth_method"`
}

// AuthMethod tags the mechanism that produced an Identity.
type AuthMethod string

const (
	// MethodNone marks the placeholder identity used when verification is disabled.
	MethodNone AuthMethod = "none"
	// MethodBearer marks identities verified against the cluster userinfo endpoint.
	MethodBearer AuthMethod = "bearer"
	// MethodTokenReview marks identities verified through the TokenReview API.
	MethodTokenReview AuthMethod = "tokenreview"
	// MethodOIDC marks identities verified from a service account JWT via OIDC discovery.
	MethodOIDC AuthMethod = "oidc"
	// MethodStatic marks identities from the fixed token map. Dev and tests only.
	MethodStatic AuthMethod = "static"
)

// DevIdentity is the fixed placeholder handed to every request when
// verification is disabled. Deliberately recognizable as not a real principal.
func DevIdentity() Identity {
	return Identity{
		Username:  "dev-user",
		SubjectID: "dev-user-id",
		Groups:    []string{"developers"},
		Method:    MethodNone,
	}
}

// Clone returns a copy whose Groups slice is not aliased, so cached
// identities cannot be mutated by callers.
func (i Identity) Clone() Identity {
	out := i
	out.Groups = slices.Clone(i.Groups)
	return out
}

// HasGroup reports whether the identity is a member of the given group.
func (i Identity) HasGroup(group string) bool {
	return slices.Contains(i.Groups, group)
}
