package authz

import (
	"time"

	id "credentia/pkg/domain"
)

// Role is a write capability on the ledger. Issuers create and modify
// credentials; auditors create and modify compliance audits and policy
// statuses. The two sets are independent: holding one role grants nothing
// from the other.
type Role string

const (
	RoleIssuer  Role = "issuer"
	RoleAuditor Role = "auditor"
)

// Grant records that a principal holds a role. Grants are keyed by
// (principal, role); re-granting is a no-op.
type Grant struct {
	Principal id.Principal
	Role      Role
	GrantedBy id.Principal
	GrantedAt time.Time
}
