package domain

import dErrors "credentia/pkg/domain-errors"

// Framework is a governance framework an institution elects to be evaluated
// against.
// Invariant: the value must be one of the supported frameworks; the set is
// closed and aggregation code iterates Frameworks(), never a discovered set.
//
// Usage: construct via ParseFramework at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Framework string

const (
	FrameworkBolognaProcess Framework = "bologna_process"
	FrameworkAACSB          Framework = "aacsb"
	FrameworkWASC           Framework = "wasc"
	FrameworkHLC            Framework = "hlc"
	FrameworkABET           Framework = "abet"
	FrameworkENQA           Framework = "enqa"
)

// frameworkOrder is the single source of truth for the closed framework set.
// Order is stable so summaries and reports are deterministic.
var frameworkOrder = []Framework{
	FrameworkBolognaProcess,
	FrameworkAACSB,
	FrameworkWASC,
	FrameworkHLC,
	FrameworkABET,
	FrameworkENQA,
}

var validFrameworks = func() map[Framework]bool {
	m := make(map[Framework]bool, len(frameworkOrder))
	for _, f := range frameworkOrder {
		m[f] = true
	}
	return m
}()

// Frameworks returns the closed set of supported frameworks in stable order.
func Frameworks() []Framework {
	out := make([]Framework, len(frameworkOrder))
	copy(out, frameworkOrder)
	return out
}

// ParseFramework constructs a Framework from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseFramework(s string) (Framework, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "framework cannot be empty")
	}
	f := Framework(s)
	if !f.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported framework %q", s)
	}
	return f, nil
}

// ParseFrameworks parses a list of framework strings, rejecting duplicates.
func ParseFrameworks(values []string) ([]Framework, error) {
	seen := make(map[Framework]bool, len(values))
	out := make([]Framework, 0, len(values))
	for _, v := range values {
		f, err := ParseFramework(v)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate framework %q", v)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// IsValid checks if the framework is one of the supported enum values.
func (f Framework) IsValid() bool {
	return validFrameworks[f]
}

func (f Framework) String() string { return string(f) }
