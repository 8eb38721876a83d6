// internal/common/auth/apikey.go
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// APIKeyAuthenticator checks a shared-secret header against configured keys.
// With no keys configured every request is accepted.
type APIKeyAuthenticator struct {
	header string
	hashes [][sha256.Size]byte
}

func NewAPIKeyAuthenticator(header string, keys []string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{header: header}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.hashes = append(a.hashes, sha256.Sum256([]byte(k)))
		}
	}
	return a
}

func (a *APIKeyAuthenticator) Header() string { return a.header }

func (a *APIKeyAuthenticator) Enabled() bool { return len(a.hashes) > 0 }

// Verify compares digests in constant time and checks every key.
func (a *APIKeyAuthenticator) Verify(presented string) bool {
	if !a.Enabled() {
		return true
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false
	}
	sum := sha256.Sum256([]byte(presented))
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], h[:])
	}
	return match == 1
}
