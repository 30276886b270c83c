// Package key derives stable deduplication keys for customer identities.
package key

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// ResolveKey returns the registry key for a raw order or directory record.
// Authenticated customers key on their user id; guests key on a content hash
// of their normalized email and name, so two guests sharing an email but not
// a name stay distinct. Pure function: same inputs always yield the same key.
func ResolveKey(userID int64, email, firstName, lastName string) string {
	if userID > 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	return "guest:" + GuestHash(email, firstName, lastName)
}

// GuestHash hashes the normalized identity tuple. md5 is fine here: the key
// needs determinism and collision resistance at customer-count scale, not
// cryptographic strength.
func GuestHash(email, firstName, lastName string) string {
	sum := md5.Sum([]byte(normalize(email) + "|" + normalize(firstName) + "|" + normalize(lastName)))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
