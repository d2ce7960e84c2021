package models

import (
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the three known values
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is the canonical internal message shape.
// Roles are never rewritten after normalization; content may only be rejected.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MessagePart is one typed fragment of a multi-part message body.
// Only "text" parts carry content the gateway forwards.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// IncomingMessage is the shape the browser client sends. Clients may supply
// either a flat content string or a parts array; the union never propagates
// past Normalize.
type IncomingMessage struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []MessagePart `json:"parts,omitempty"`
}

// Normalize collapses an IncomingMessage into the canonical Message shape.
// Text fragments of a parts array are concatenated in order; non-text
// fragments are dropped. A flat content string wins over an empty parts list.
func (m IncomingMessage) Normalize() (Message, error) {
	if !m.Role.Valid() {
		return Message{}, fmt.Errorf("invalid message role: %q", m.Role)
	}

	content := m.Content
	if len(m.Parts) > 0 {
		var b strings.Builder
		for _, p := range m.Parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		content = b.String()
	}

	return Message{Role: m.Role, Content: content}, nil
}

// ChatRequest is the POST /api/chat body
type ChatRequest struct {
	Messages []IncomingMessage `json:"messages"`
}
