package phi

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 16

// HashIdentifier maps a raw user identifier to a stable pseudonymous handle.
// The mapping is unsalted so the same identifier joins the same history
// across processes.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:HashLength]
}
