// Package submit maps a parsed report into the spreadsheet webhook payload
// and delivers it, optionally signed with a shared secret.
package submit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/readypath/assess-gateway/internal/models"
)

// Format builds the webhook payload from a parsed report and an
// already-sanitized transcript. Primary and secondary categories come from
// the first two solutions; fewer than two solutions leaves them empty rather
// than failing.
func Format(report *models.ParsedReport, transcript string, now time.Time) models.AssessmentSubmission {
	sub := models.AssessmentSubmission{
		SubmissionID:   uuid.NewString(),
		Organization:   report.Organization,
		Domain:         report.Domain,
		ReadinessLevel: string(report.ReadinessLevel),
		NextSteps:      strings.Join(report.NextSteps, "; "),
		Transcript:     transcript,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}

	if len(report.Solutions) > 0 {
		sub.PrimarySolutionCategory = report.Solutions[0].Category
	}
	if len(report.Solutions) > 1 {
		sub.SecondarySolutionCategory = report.Solutions[1].Category
	}

	return sub
}

// Sign wraps a submission with an HMAC-SHA256 signature over
// "<timestamp>.<payload>". The receiver recomputes the digest and rejects
// deliveries whose timestamp drifts more than five minutes.
func Sign(sub models.AssessmentSubmission, secret string, now time.Time) (models.SignedPayload, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return models.SignedPayload{}, fmt.Errorf("failed to marshal submission: %w", err)
	}

	ts := now.UnixMilli()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)

	return models.SignedPayload{
		Payload:   sub,
		Signature: hex.EncodeToString(mac.Sum(nil)),
		Timestamp: ts,
	}, nil
}
