package models

// ReadinessLevel is the coarse readiness grade extracted from the final report
type ReadinessLevel string

const (
	ReadinessHigh    ReadinessLevel = "High"
	ReadinessMedium  ReadinessLevel = "Medium"
	ReadinessLow     ReadinessLevel = "Low"
	ReadinessUnknown ReadinessLevel = "Unknown"
)

// NormalizeReadiness collapses anything outside the three valid grades to
// Unknown. Matching is case-sensitive: the report template emits exact
// capitalized values, and anything else means the model drifted.
func NormalizeReadiness(s string) ReadinessLevel {
	switch ReadinessLevel(s) {
	case ReadinessHigh, ReadinessMedium, ReadinessLow:
		return ReadinessLevel(s)
	}
	return ReadinessUnknown
}

// Solution is one recommended solution block from the report.
// Order matters: index 0 is the primary recommendation, index 1 secondary.
type Solution struct {
	Priority  string `json:"priority"`
	Category  string `json:"category"`
	Group     string `json:"group"`
	Fit       string `json:"fit"`
	Rationale string `json:"rationale"`
}

// ParsedReport holds the structured fields extracted from the assistant's
// final free-text report. Derived once per completed assessment, never stored.
type ParsedReport struct {
	Organization   string         `json:"organization"`
	Domain         string         `json:"domain"`
	ReadinessLevel ReadinessLevel `json:"readiness_level"`
	Solutions      []Solution     `json:"solutions"`
	NextSteps      []string       `json:"next_steps"`
}
