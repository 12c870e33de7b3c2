package domain

import dErrors "credentia/pkg/domain-errors"

// CredentialType classifies an academic credential.
type CredentialType string

const (
	CredentialTypeDegree           CredentialType = "degree"
	CredentialTypeCertificate      CredentialType = "certificate"
	CredentialTypeDiploma          CredentialType = "diploma"
	CredentialTypeBadge            CredentialType = "badge"
	CredentialTypeTranscript       CredentialType = "transcript"
	CredentialTypeCourseCompletion CredentialType = "course_completion"
)

var validCredentialTypes = map[CredentialType]bool{
	CredentialTypeDegree:           true,
	CredentialTypeCertificate:      true,
	CredentialTypeDiploma:          true,
	CredentialTypeBadge:            true,
	CredentialTypeTranscript:       true,
	CredentialTypeCourseCompletion: true,
}

// ParseCredentialType constructs a CredentialType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseCredentialType(s string) (CredentialType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential type cannot be empty")
	}
	t := CredentialType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported credential type %q", s)
	}
	return t, nil
}

// IsValid checks if the credential type is one of the supported enum values.
func (t CredentialType) IsValid() bool {
	return validCredentialTypes[t]
}

func (t CredentialType) String() string { return string(t) }
