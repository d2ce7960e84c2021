// Package sanitize redacts PII from transcripts before they leave the
// process boundary and bounds their serialized size.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/readypath/assess-gateway/internal/models"
)

const (
	// MaxMessageChars bounds each transcript message after sanitization
	MaxMessageChars = 500
	// MaxTranscriptChars bounds the whole serialized transcript
	MaxTranscriptChars = 50000

	truncationMarker = "...[truncated]"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// PII replaces emails, phone numbers and SSNs with placeholder tokens.
// Pure and idempotent: placeholders contain no digits or @ signs, so a
// second pass leaves already-redacted text unchanged.
func PII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL_REDACTED]")
	text = ssnPattern.ReplaceAllString(text, "[SSN_REDACTED]")
	text = phonePattern.ReplaceAllString(text, "[PHONE_REDACTED]")
	return text
}

// Truncate cuts text to at most maxLen bytes and appends a marker, but only
// when a cut actually happened: truncating an already-short string returns it
// unchanged. The cut backs up to a rune boundary so the result is valid UTF-8.
func Truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}

// Transcript serializes a conversation for submission: each message is
// PII-redacted and truncated individually, then the whole payload is
// truncated again. Two independent size gates.
func Transcript(messages []models.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(Truncate(PII(m.Content), MaxMessageChars))
	}
	return Truncate(b.String(), MaxTranscriptChars)
}
