package domain

import dErrors "credentia/pkg/domain-errors"

// PolicyType classifies an institutional policy.
type PolicyType string

const (
	PolicyTypeAcademic         PolicyType = "academic"
	PolicyTypeAdministrative   PolicyType = "administrative"
	PolicyTypeStudentAffairs   PolicyType = "student_affairs"
	PolicyTypeFaculty          PolicyType = "faculty"
	PolicyTypeFinancial        PolicyType = "financial"
	PolicyTypeGovernance       PolicyType = "governance"
	PolicyTypeQualityAssurance PolicyType = "quality_assurance"
)

var validPolicyTypes = map[PolicyType]bool{
	PolicyTypeAcademic:         true,
	PolicyTypeAdministrative:   true,
	PolicyTypeStudentAffairs:   true,
	PolicyTypeFaculty:          true,
	PolicyTypeFinancial:        true,
	PolicyTypeGovernance:       true,
	PolicyTypeQualityAssurance: true,
}

// ParsePolicyType constructs a PolicyType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParsePolicyType(s string) (PolicyType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "policy type cannot be empty")
	}
	t := PolicyType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported policy type %q", s)
	}
	return t, nil
}

// IsValid checks if the policy type is one of the supported enum values.
func (t PolicyType) IsValid() bool {
	return validPolicyTypes[t]
}

func (t PolicyType) String() string { return string(t) }
