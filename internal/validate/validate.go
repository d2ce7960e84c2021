// Package validate enforces the gateway's input contract: per-message size
// and spam gates, conversation bounds, and a side-effect-free prompt
// injection probe. Policy (log vs block) belongs to the caller.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxMessageLength bounds a single user message
	MaxMessageLength = 2000
	// MaxConversationLength bounds the number of messages per conversation
	MaxConversationLength = 50
	// spamCheckFloor exempts short messages from the entropy check so a
	// two-character reply like "ok" is never flagged
	spamCheckFloor = 100
	// minDistinctRunes is the distinct-character threshold below which a
	// long message counts as spam
	minDistinctRunes = 5
)

var (
	ErrTooLong         = errors.New("message exceeds maximum length")
	ErrSpam            = errors.New("message appears to be spam")
	ErrTooManyMessages = errors.New("conversation exceeds maximum length")
)

// Message rejects content that is too long or looks like low-entropy spam.
// The returned error text is safe to show to the user verbatim.
func Message(content string) error {
	if len(content) > MaxMessageLength {
		return fmt.Errorf("%w (%d characters, maximum %d)", ErrTooLong, len(content), MaxMessageLength)
	}

	if len(content) > spamCheckFloor && distinctRunes(content) < minDistinctRunes {
		return ErrSpam
	}

	return nil
}

// Conversation rejects conversations with too many messages
func Conversation(count int) error {
	if count > MaxConversationLength {
		return fmt.Errorf("%w (%d messages, maximum %d)", ErrTooManyMessages, count, MaxConversationLength)
	}
	return nil
}

// distinctRunes counts unique case-folded, non-whitespace runes
func distinctRunes(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		seen[r] = struct{}{}
	}
	return len(seen)
}

// PatternMatch is one positive injection-probe hit
type PatternMatch struct {
	ID      string
	Matched string
}

type injectionPattern struct {
	id string
	re *regexp.Regexp
}

var injectionPatterns = []injectionPattern{
	{"instruction_override", regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\b.{0,20}\b(previous|all|prior)\b.{0,20}\binstructions?\b`)},
	{"role_assumption", regexp.MustCompile(`(?i)\bsystem\s*:\s*`)},
	{"script_tag", regexp.MustCompile(`(?i)<script\b`)},
	{"template_syntax", regexp.MustCompile(`\{\{.*?\}\}`)},
	{"interpolation_syntax", regexp.MustCompile(`\$\{.*?\}`)},
}

// DetectInjection probes content for known prompt-injection markers. It is a
// pure function returning every matched pattern with the offending text, so
// callers can choose between logging and hard-blocking without touching the
// detection logic. An empty slice means no pattern matched.
func DetectInjection(content string) []PatternMatch {
	var matches []PatternMatch
	for _, p := range injectionPatterns {
		if m := p.re.FindString(content); m != "" {
			matches = append(matches, PatternMatch{ID: p.id, Matched: m})
		}
	}
	return matches
}
