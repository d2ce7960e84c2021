package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/readypath/assess-gateway/internal/models"
	"github.com/readypath/assess-gateway/internal/report"
	"github.com/readypath/assess-gateway/internal/sanitize"
	"github.com/readypath/assess-gateway/internal/submit"
)

// maxFieldLength bounds the organization and domain fields of a submission
const maxFieldLength = 500

type submitResponse struct {
	Success bool   `json:"success"`
	Note    string `json:"note,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// handleSubmitAssessment formats a completed assessment and forwards it to
// the spreadsheet webhook. Delivery is best-effort: the user keeps their
// completed report even when the webhook or the parser fails, so those
// paths answer success with a warning instead of an error.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	requestID := middleware.GetReqID(r.Context())

	if res := s.limiters.Submit.Check(r.Context(), key); !res.Allowed {
		respondRateLimited(w, res)
		return
	}

	var data models.AssessmentData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(data.Organization) > maxFieldLength || len(data.Domain) > maxFieldLength {
		respondError(w, http.StatusBadRequest, "Organization and domain must be at most 500 characters")
		return
	}

	parsed, warning := resolveReport(data)
	if parsed == nil {
		respondError(w, http.StatusBadRequest, "Submission contains no assessment fields or report text")
		return
	}

	transcript := sanitize.Transcript(data.Transcript)
	submission := submit.Format(parsed, transcript, time.Now())

	if err := s.webhook.Deliver(r.Context(), submission); err != nil {
		if errors.Is(err, submit.ErrNotConfigured) {
			respondJSON(w, http.StatusOK, submitResponse{
				Success: true,
				Note:    "Webhook not configured; submission was not forwarded.",
				Warning: warning,
			})
			return
		}

		slog.Error("webhook delivery failed",
			"error", err,
			"submission_id", submission.SubmissionID,
			"request_id", requestID,
		)
		respondJSON(w, http.StatusOK, submitResponse{
			Success: true,
			Warning: "Your report is ready, but it could not be delivered for recording.",
		})
		return
	}

	slog.Info("assessment submitted",
		"submission_id", submission.SubmissionID,
		"organization", submission.Organization,
		"readiness", submission.ReadinessLevel,
	)
	respondJSON(w, http.StatusOK, submitResponse{Success: true, Warning: warning})
}

// resolveReport builds the parsed report from pre-extracted fields when the
// client sent them, falling back to server-side parsing of the raw report
// text. A parse failure is demoted to a warning as long as any structured
// field arrived; nil means nothing usable was submitted.
func resolveReport(data models.AssessmentData) (*models.ParsedReport, string) {
	hasFields := data.Organization != "" || data.Domain != "" || data.ReadinessLevel != ""

	if !hasFields && data.ReportText != "" {
		parsed, err := report.Parse(data.ReportText)
		if err == nil {
			return parsed, ""
		}
		slog.Warn("report text unrecognized, submitting defaults", "error", err)
		if len(data.Transcript) == 0 {
			return nil, ""
		}
		return &models.ParsedReport{
			Organization:   "Unknown Organization",
			Domain:         "Unknown Domain",
			ReadinessLevel: models.ReadinessUnknown,
		}, "The report format was not recognized; structured fields were not extracted."
	}

	if !hasFields {
		return nil, ""
	}

	parsed := &models.ParsedReport{
		Organization:   data.Organization,
		Domain:         data.Domain,
		ReadinessLevel: models.NormalizeReadiness(data.ReadinessLevel),
		Solutions:      data.Solutions,
		NextSteps:      data.NextSteps,
	}
	if parsed.Organization == "" {
		parsed.Organization = "Unknown Organization"
	}
	if parsed.Domain == "" {
		parsed.Domain = "Unknown Domain"
	}
	return parsed, ""
}

// cspViolation is the fixed CSP violation report shape browsers POST
type cspViolation struct {
	Report struct {
		DocumentURI        string `json:"document-uri"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		BlockedURI         string `json:"blocked-uri"`
		SourceFile         string `json:"source-file"`
		LineNumber         int    `json:"line-number"`
	} `json:"csp-report"`
}

// handleCSPReport logs browser CSP violations. Responses carry no body.
func (s *Server) handleCSPReport(w http.ResponseWriter, r *http.Request) {
	if res := s.limiters.Violation.Check(r.Context(), clientKey(r)); !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	var v cspViolation
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || v.Report.ViolatedDirective == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	slog.Warn("csp violation reported",
		"document_uri", v.Report.DocumentURI,
		"directive", v.Report.ViolatedDirective,
		"blocked_uri", v.Report.BlockedURI,
		"source", v.Report.SourceFile,
		"line", v.Report.LineNumber,
	)

	w.WriteHeader(http.StatusNoContent)
}
