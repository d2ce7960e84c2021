package models

import "time"

// AssessmentData is the POST /api/submit-assessment body. The client sends
// either pre-extracted fields or the raw report text for server-side parsing.
type AssessmentData struct {
	Organization   string     `json:"organization"`
	Domain         string     `json:"domain"`
	ReadinessLevel string     `json:"readiness_level"`
	Solutions      []Solution `json:"solutions,omitempty"`
	NextSteps      []string   `json:"next_steps,omitempty"`
	ReportText     string     `json:"report_text,omitempty"`
	Transcript     []Message  `json:"transcript,omitempty"`
	CompletedAt    time.Time  `json:"completed_at,omitempty"`
}

// AssessmentSubmission is the exact shape the outbound spreadsheet webhook
// expects. Built once per session, immutable after construction.
type AssessmentSubmission struct {
	SubmissionID              string `json:"submission_id"`
	Organization              string `json:"organization"`
	Domain                    string `json:"domain"`
	ReadinessLevel            string `json:"readiness_level"`
	PrimarySolutionCategory   string `json:"primary_solution_category"`
	SecondarySolutionCategory string `json:"secondary_solution_category"`
	NextSteps                 string `json:"next_steps"`
	Transcript                string `json:"transcript"`
	Timestamp                 string `json:"timestamp"`
}

// SignedPayload wraps a submission with an HMAC signature so the receiver
// can verify authenticity and reject stale deliveries.
type SignedPayload struct {
	Payload   AssessmentSubmission `json:"payload"`
	Signature string               `json:"signature"`
	Timestamp int64                `json:"timestamp"`
}
