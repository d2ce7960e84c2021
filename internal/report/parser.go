// Package report extracts the structured assessment report from the
// assistant's final free-text turn. The format is a contract with the
// prompt template, not a general markdown grammar: permissive label-variant
// regexes are enough because a single controlled prompt generates the text,
// but completely unrecognizable input is a hard failure rather than a
// silently empty result.
package report

import (
	"errors"
	"regexp"
	"strings"

	"github.com/readypath/assess-gateway/internal/models"
)

// CompletionMarker is the sentinel the prompt instructs the model to emit
// once the final report is ready.
const CompletionMarker = "ASSESSMENT_COMPLETE"

// ErrUnrecognized is returned when the input contains none of the report
// markers. Callers treat it as a non-fatal warning: the transcript is still
// valid even when structured extraction fails.
var ErrUnrecognized = errors.New("report text does not match the expected format")

const (
	defaultOrganization = "Unknown Organization"
	defaultDomain       = "Unknown Domain"
)

// Label variants, most specific first: **X:** then **X**: then bare X:.
var (
	organizationPatterns = labelPatterns("Organization")
	domainPatterns       = labelPatterns("Domain")
	readinessPatterns    = labelPatterns("Readiness Level")

	solutionHeading  = regexp.MustCompile(`(?m)^#{3,4}\s+([^-\n]+?)\s+-\s+(.+)$`)
	anyHeading       = regexp.MustCompile(`(?m)^#{1,6}\s`)
	groupPattern     = regexp.MustCompile(`\*\*Group:\*\*\s*([^\n]*)`)
	fitPattern       = regexp.MustCompile(`\*\*Fit:\*\*\s*([^\n]*)`)
	rationalePattern = regexp.MustCompile(`(?s)\*\*Rationale:\*\*\s*(.*)`)
	nextStepsLabel   = regexp.MustCompile(`\*\*Recommended Next Steps:?\*\*`)

	nextStepsPattern = regexp.MustCompile(
		`(?s)\*\*Recommended Next Steps:?\*\*:?\s*\n(.*?)(?:\n#{2,4} |\z)`)
	numberedLinePattern = regexp.MustCompile(`(?m)^\s*\d+\.\s+(.+)$`)
)

func labelPatterns(label string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(label)
	return []*regexp.Regexp{
		regexp.MustCompile(`\*\*` + quoted + `:\*\*\s*([^\n]+)`),
		regexp.MustCompile(`\*\*` + quoted + `\*\*:\s*([^\n]+)`),
		regexp.MustCompile(`(?m)^` + quoted + `:\s*([^\n]+)`),
	}
}

// IsComplete reports whether the assistant's turn carries the completion
// sentinel. Until it does, the session is still in progress and no parsing
// is attempted.
func IsComplete(text string) bool {
	return strings.Contains(text, CompletionMarker)
}

// StripMarker removes the first occurrence of the sentinel together with
// surrounding whitespace. Text without the marker comes back unchanged, so
// repeated calls are stable.
func StripMarker(text string) string {
	idx := strings.Index(text, CompletionMarker)
	if idx < 0 {
		return text
	}

	before := strings.TrimRight(text[:idx], " \t\n")
	after := strings.TrimLeft(text[idx+len(CompletionMarker):], " \t\n")

	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + "\n" + after
	}
}

// Parse extracts the structured report from the cleaned text. Partial
// recognition is accepted and missing fields fall back to defaults; only
// input with no recognizable marker at all (no organization, domain,
// readiness or solution block) fails with ErrUnrecognized.
func Parse(text string) (*models.ParsedReport, error) {
	text = StripMarker(text)

	org, orgFound := firstMatch(organizationPatterns, text)
	domain, domainFound := firstMatch(domainPatterns, text)
	readiness, readinessFound := firstMatch(readinessPatterns, text)
	solutions := parseSolutions(text)

	if !orgFound && !domainFound && !readinessFound && len(solutions) == 0 {
		return nil, ErrUnrecognized
	}

	if !orgFound {
		org = defaultOrganization
	}
	if !domainFound {
		domain = defaultDomain
	}

	return &models.ParsedReport{
		Organization:   org,
		Domain:         domain,
		ReadinessLevel: models.NormalizeReadiness(readiness),
		Solutions:      solutions,
		NextSteps:      parseNextSteps(text),
	}, nil
}

// firstMatch tries each label variant in precedence order and returns the
// trimmed remainder of the matched line.
func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			value := strings.TrimSpace(m[1])
			if value != "" {
				return value, true
			}
		}
	}
	return "", false
}

// parseSolutions slices the text at each "#### <priority> - <category>"
// heading and extracts the labeled fields from each block. Go regexps have
// no lookahead, so block boundaries are located by index rather than by a
// single consuming pattern.
func parseSolutions(text string) []models.Solution {
	headings := solutionHeading.FindAllStringSubmatchIndex(text, -1)
	solutions := make([]models.Solution, 0, len(headings))

	for i, h := range headings {
		body := text[h[1]:]
		if i+1 < len(headings) {
			body = text[h[1]:headings[i+1][0]]
		}

		// A block ends at the next heading of any level, not just the next
		// solution heading, so trailing sections never bleed into a rationale.
		if loc := anyHeading.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}

		group, ok := blockField(groupPattern, body)
		if !ok {
			// A heading without the labeled fields is not a solution block.
			continue
		}
		fit, _ := blockField(fitPattern, body)
		rationale, _ := blockField(rationalePattern, body)

		// The rationale runs to the end of the block unless the next-steps
		// label starts inside it.
		if loc := nextStepsLabel.FindStringIndex(rationale); loc != nil {
			rationale = rationale[:loc[0]]
		}

		solutions = append(solutions, models.Solution{
			Priority:  strings.TrimSpace(text[h[2]:h[3]]),
			Category:  strings.TrimSpace(text[h[4]:h[5]]),
			Group:     group,
			Fit:       fit,
			Rationale: strings.TrimSpace(rationale),
		})
	}
	return solutions
}

func blockField(p *regexp.Regexp, body string) (string, bool) {
	m := p.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func parseNextSteps(text string) []string {
	block := nextStepsPattern.FindStringSubmatch(text)
	if block == nil {
		return nil
	}

	lines := numberedLinePattern.FindAllStringSubmatch(block[1], -1)
	steps := make([]string, 0, len(lines))
	for _, l := range lines {
		steps = append(steps, strings.TrimSpace(l[1]))
	}
	return steps
}
