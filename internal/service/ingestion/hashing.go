package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// saltedAuthorHash derives author_hash:
// salted_sha256(lowercase(author)), or "" when no salt is configured or the
// author is already anonymized by Reddit.
func saltedAuthorHash(author, salt string) string {
	if salt == "" || author == "" || author == "[deleted]" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + strings.ToLower(author)))
	return hex.EncodeToString(sum[:])
}
