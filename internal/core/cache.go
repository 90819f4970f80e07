package core

import "time"

// IdentityCache remembers successful verifications for a bounded time so
// repeated requests with the same credential do not hit the upstream on every
// call. Implementations key entries by a one-way hash of the credential; the
// raw value is never retained.
type IdentityCache interface {
	// Store records a verified identity for the credential, replacing any
	// previous entry. The entry expires ttl after the call.
	Store(credential string, id Identity, ttl time.Duration)

	// Lookup returns the identity for an unexpired entry. Expired entries
	// count as absent; a stale identity is never returned.
	Lookup(credential string) (Identity, bool)

	// EvictExpired removes expired entries eagerly and returns how many
	// were reclaimed.
	EvictExpired() int

	// Purge drops all entries.
	Purge()

	// Len returns the number of entries currently held, expired or not.
	Len() int
}
