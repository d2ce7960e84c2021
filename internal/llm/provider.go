// Package llm abstracts the upstream streaming chat service
package llm

import (
	"context"
	"fmt"

	"github.com/readypath/assess-gateway/internal/models"
)

// Chunk is one unit of a streamed model response. Exactly one terminal
// chunk is delivered: either Done or Err.
type Chunk struct {
	Content string
	Err     error
	Done    bool
}

// Provider streams a model response for an ordered message list. The
// returned channel is closed after the terminal chunk; cancelling ctx stops
// upstream consumption.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []models.Message) (<-chan Chunk, error)
}

// MockProvider answers without an external API. Used for offline
// development when no credential is configured.
type MockProvider struct{}

// Name implements Provider
func (MockProvider) Name() string { return "mock" }

// Stream implements Provider
func (MockProvider) Stream(ctx context.Context, messages []models.Message) (<-chan Chunk, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}

	out := make(chan Chunk, 2)
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
			return
		case out <- Chunk{Content: fmt.Sprintf("(mock) received: %q", last)}:
		}
		out <- Chunk{Done: true}
	}()
	return out, nil
}
