package domain

import dErrors "credentia/pkg/domain-errors"

// ComplianceStatus is the outcome of a compliance evaluation against a
// framework, shared by policies and audits. "No audit on record" is modelled
// as the absence of a status, never as an enum value.
type ComplianceStatus string

const (
	StatusCompliant              ComplianceStatus = "compliant"
	StatusNonCompliant           ComplianceStatus = "non_compliant"
	StatusUnderReview            ComplianceStatus = "under_review"
	StatusPendingReview          ComplianceStatus = "pending_review"
	StatusConditionallyCompliant ComplianceStatus = "conditionally_compliant"
)

var validComplianceStatuses = map[ComplianceStatus]bool{
	StatusCompliant:              true,
	StatusNonCompliant:           true,
	StatusUnderReview:            true,
	StatusPendingReview:          true,
	StatusConditionallyCompliant: true,
}

// ParseComplianceStatus constructs a ComplianceStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseComplianceStatus(s string) (ComplianceStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "compliance status cannot be empty")
	}
	st := ComplianceStatus(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported compliance status %q", s)
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ComplianceStatus) IsValid() bool {
	return validComplianceStatuses[s]
}

func (s ComplianceStatus) String() string { return string(s) }
