package bologna

import (
	"fmt"
	"strings"
	"time"

	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
)

// Data is the Bologna Process (ECTS/EQF) record attached 1:1 to a credential
// that opts in. It cannot exist without a corresponding active credential.
//
// Invariants:
//   - ECTSCredits > 0
//   - 1 <= EQFLevel <= 8
type Data struct {
	CredentialID            id.CredentialID
	ECTSCredits             int
	EQFLevel                int
	DiplomaSupplementIssued bool
	LearningOutcomes        []string
	QAAgency                string
	JointDegree             bool
	MobilityPartners        []string
	// AutomaticRecognitionEligible is a point-in-time assertion made by the
	// issuer on every successful write. CheckCompliance re-derives the
	// current answer independently; the two deliberately coexist.
	AutomaticRecognitionEligible bool
	UpdatedAt                    time.Time
}

// SetRequest carries the caller-supplied Bologna fields.
type SetRequest struct {
	ECTSCredits             int
	EQFLevel                int
	DiplomaSupplementIssued bool
	LearningOutcomes        []string
	QAAgency                string
	JointDegree             bool
	MobilityPartners        []string
}

// Validate enforces the ECTS and EQF invariants at every write.
func (r SetRequest) Validate() error {
	if r.ECTSCredits <= 0 {
		return dErrors.New(dErrors.CodeInvalidEctsCredits, "ECTS credits must be positive")
	}
	if r.EQFLevel < 1 || r.EQFLevel > 8 {
		return dErrors.New(dErrors.CodeInvalidEqfLevel, "EQF level must be between 1 and 8")
	}
	return nil
}

// ComplianceReport is the result of re-deriving automatic-recognition
// eligibility from current data, independent of the stored flag.
type ComplianceReport struct {
	Compliant bool   `json:"compliant"`
	Report    string `json:"report"`
}

// EvaluateCompliance checks the documented eligibility criteria and lists
// every failing condition when non-compliant.
func EvaluateCompliance(d *Data) ComplianceReport {
	var failures []string
	if d.ECTSCredits <= 0 {
		failures = append(failures, "ECTS credits must be positive")
	}
	if d.EQFLevel < 1 || d.EQFLevel > 8 {
		failures = append(failures, "EQF level must be between 1 and 8")
	}
	if d.QAAgency == "" {
		failures = append(failures, "quality assurance agency is not recorded")
	}
	if len(d.LearningOutcomes) == 0 {
		failures = append(failures, "learning outcomes are not recorded")
	}

	if len(failures) == 0 {
		return ComplianceReport{Compliant: true, Report: "credential meets automatic recognition criteria"}
	}
	return ComplianceReport{
		Compliant: false,
		Report:    fmt.Sprintf("credential fails automatic recognition criteria: %s", strings.Join(failures, "; ")),
	}
}
