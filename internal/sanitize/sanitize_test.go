package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/readypath/assess-gateway/internal/models"
)

func TestPIIEmail(t *testing.T) {
	got := PII("Contact me at a@b.com")
	if strings.Contains(got, "a@b.com") {
		t.Fatalf("email survived redaction: %q", got)
	}
	if !strings.Contains(got, "[EMAIL_REDACTED]") {
		t.Fatalf("missing email placeholder: %q", got)
	}
}

func TestPIIPhoneVariants(t *testing.T) {
	variants := []string{
		"Call me at 555-123-4567",
		"Call me at (555) 123-4567",
		"Call me at +1 555 123 4567",
		"Call me at 555.123.4567",
	}
	for _, in := range variants {
		got := PII(in)
		if !strings.Contains(got, "[PHONE_REDACTED]") {
			t.Errorf("phone not redacted in %q: %q", in, got)
		}
		if strings.Contains(got, "4567") {
			t.Errorf("digits survived redaction in %q: %q", in, got)
		}
	}
}

func TestPIISSN(t *testing.T) {
	got := PII("My SSN is 123-45-6789")
	if strings.Contains(got, "123-45-6789") {
		t.Fatalf("ssn survived redaction: %q", got)
	}
	if !strings.Contains(got, "[SSN_REDACTED]") {
		t.Fatalf("missing ssn placeholder: %q", got)
	}
}

func TestPIIIdempotent(t *testing.T) {
	once := PII("reach me: jane.doe@example.org or 555-123-4567 or 123-45-6789")
	twice := PII(once)
	if once != twice {
		t.Fatalf("sanitize not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
}

func TestPIILeavesPlainTextAlone(t *testing.T) {
	in := "We have 12 branch offices and no shared data platform."
	if got := PII(in); got != in {
		t.Fatalf("plain text altered: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if got := Truncate(short, 10); got != short {
		t.Fatalf("short string altered: %q", got)
	}
	if got := Truncate(short, 5); got != short {
		t.Fatalf("string at limit altered: %q", got)
	}

	got := Truncate("hello world", 5)
	if got != "hello...[truncated]" {
		t.Fatalf("unexpected truncation: %q", got)
	}

	// Idempotent once below the limit
	if again := Truncate(Truncate(short, 10), 10); again != short {
		t.Fatalf("repeated truncate altered short string: %q", again)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// "héllo" with the limit landing inside the two-byte é
	got := Truncate("héllo", 2)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid utf-8: %q", got)
	}
	if got != "h...[truncated]" {
		t.Fatalf("cut did not back up to the rune boundary: %q", got)
	}

	long := strings.Repeat("é", 300)
	out := Truncate(long, 501)
	if !utf8.ValidString(out) {
		t.Fatalf("truncation produced invalid utf-8: %q", out[:20])
	}
}

func TestTranscript(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "my email is a@b.com"},
		{Role: models.RoleAssistant, Content: "Thanks, noted."},
		{Role: models.RoleUser, Content: strings.Repeat("x", 600)},
	}

	got := Transcript(messages)

	if strings.Contains(got, "a@b.com") {
		t.Fatal("transcript leaked an email address")
	}
	if !strings.Contains(got, "user: ") || !strings.Contains(got, "assistant: ") {
		t.Fatalf("transcript missing role labels: %q", got)
	}
	if !strings.Contains(got, "...[truncated]") {
		t.Fatal("long message not truncated")
	}
	if strings.Contains(got, strings.Repeat("x", 501)) {
		t.Fatal("per-message truncation not applied")
	}
}

func TestTranscriptWholePayloadGate(t *testing.T) {
	long := strings.Repeat("word ", 99) // ~495 chars per message, under the per-message gate
	var messages []models.Message
	for i := 0; i < 120; i++ {
		messages = append(messages, models.Message{Role: models.RoleUser, Content: long})
	}

	got := Transcript(messages)
	if len(got) > MaxTranscriptChars+len("...[truncated]") {
		t.Fatalf("transcript exceeds overall budget: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Fatal("overall truncation marker missing")
	}
}
