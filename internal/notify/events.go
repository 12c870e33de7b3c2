package notify

import (
	"time"

	id "credentia/pkg/domain"
)

// EventType identifies the ledger mutation a notification describes.
type EventType string

const (
	EventInstitutionRegistered   EventType = "institution_registered"
	EventInstitutionDeactivated  EventType = "institution_deactivated"
	EventInstitutionReactivated  EventType = "institution_reactivated"
	EventIssuerAuthorized        EventType = "issuer_authorized"
	EventIssuerRevoked           EventType = "issuer_revoked"
	EventAuditorAuthorized       EventType = "auditor_authorized"
	EventAuditorRevoked          EventType = "auditor_revoked"
	EventCredentialIssued        EventType = "credential_issued"
	EventCredentialRevoked       EventType = "credential_revoked"
	EventComplianceStatusUpdated EventType = "compliance_status_updated"
	EventPolicyCreated           EventType = "policy_created"
	EventPolicyUpdated           EventType = "policy_updated"
	EventAuditRecorded           EventType = "audit_recorded"
	EventBolognaComplianceSet    EventType = "bologna_compliance_set"
	EventECTSCreditsUpdated      EventType = "ects_credits_updated"
)

// Event is emitted after a ledger mutation commits. Keep it transport-agnostic
// so sinks (log, Kafka) can fan out. The ledger makes no delivery guarantee
// beyond "emitted after the state mutation commits"; a failed emission never
// rolls back state.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	Actor       id.Principal
	Institution string
	// Subject identifies the affected entity: a credential, policy, or audit
	// id, or a principal for authorization events.
	Subject string
	// Attrs carries event-specific context, e.g. before/after credits on an
	// ECTS update or the framework and status on a compliance change.
	Attrs map[string]string
}
