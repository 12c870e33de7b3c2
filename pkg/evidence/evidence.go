// Package evidence computes and validates content-addressed references to
// supporting documents (degree scans, audit reports, policy documents). The
// ledger stores only the hash; document storage is an external concern.
package evidence

import (
	"encoding/hex"
	"regexp"

	"golang.org/x/crypto/blake2b"

	dErrors "credentia/pkg/domain-errors"
)

// Ref is a hex-encoded BLAKE2b-256 digest of an evidence document.
type Ref string

var refPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Hash computes the content-addressed reference for a document.
func Hash(document []byte) Ref {
	sum := blake2b.Sum256(document)
	return Ref(hex.EncodeToString(sum[:]))
}

// ParseRef validates a reference supplied by a caller. An empty string is
// allowed at call sites that treat evidence as optional; callers requiring
// evidence check for emptiness themselves.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return "", nil
	}
	if !refPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "evidence reference must be a 64-char lowercase hex digest")
	}
	return Ref(s), nil
}

// Matches reports whether the document hashes to this reference.
func (r Ref) Matches(document []byte) bool {
	return r != "" && Hash(document) == r
}

func (r Ref) String() string { return string(r) }

func (r Ref) IsZero() bool { return r == "" }
