package domain

import (
	"strings"

	dErrors "credentia/pkg/domain-errors"
)

// Principal is an opaque caller identity supplied by the external
// authentication layer. The ledger never interprets its contents beyond
// equality checks; it may be a DID, a wallet address, or a service account
// name.
type Principal string

// ParsePrincipal constructs a Principal from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or whitespace.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	return Principal(s), nil
}

func (p Principal) IsZero() bool { return p == "" }

func (p Principal) String() string { return string(p) }
