package audit

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/app-sre/proms-mcp/internal/core"
)

// fingerprintLen is the number of characters kept from the encoded hash.
// Long enough to correlate entries, short enough to be obviously not a secret.
const fingerprintLen = 16

var _ core.Fingerprinter = CredentialFingerprint

// CredentialFingerprint derives the audit fingerprint of a bearer credential:
// SHA-256, base64, truncated. The raw value cannot be recovered from it, so
// this is the only form of a credential allowed in logs and audit entries.
func CredentialFingerprint(credential string) string {
	if credential == "" {
		return "(none)"
	}
	hash := sha256.Sum256([]byte(credential))
	encoded := base64.StdEncoding.EncodeToString(hash[:])
	return encoded[:fingerprintLen]
}
