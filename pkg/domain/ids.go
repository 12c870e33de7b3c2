package domain

import (
	"github.com/google/uuid"

	dErrors "credentia/pkg/domain-errors"
)

// Typed entity identifiers. Distinct types keep credential, policy, and audit
// ids from being mixed up at compile time.
type (
	CredentialID uuid.UUID
	PolicyID     uuid.UUID
	AuditID      uuid.UUID
)

func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }
func NewPolicyID() PolicyID         { return PolicyID(uuid.New()) }
func NewAuditID() AuditID           { return AuditID(uuid.New()) }

func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id PolicyID) String() string     { return uuid.UUID(id).String() }
func (id AuditID) String() string      { return uuid.UUID(id).String() }

func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps ids as canonical UUID strings in JSON and storage.

func (id CredentialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id AuditID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *CredentialID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CredentialID(u)
	return nil
}

func (id *PolicyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = PolicyID(u)
	return nil
}

func (id *AuditID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = AuditID(u)
	return nil
}

// ParseCredentialID constructs a CredentialID from external input.
//
// Usage: call from handlers/adapters when parsing requests.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseCredentialID(s string) (CredentialID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CredentialID{}, err
	}
	return CredentialID(u), nil
}

// ParsePolicyID constructs a PolicyID from external input.
func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PolicyID{}, err
	}
	return PolicyID(u), nil
}

// ParseAuditID constructs an AuditID from external input.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AuditID{}, err
	}
	return AuditID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
