package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/readypath/assess-gateway/internal/models"
)

// OpenAIProvider streams chat completions from the OpenAI API.
// The assessment system prompt is prepended to every request; the prompt
// text itself is an opaque configured asset.
type OpenAIProvider struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

// NewOpenAIProvider creates a provider for the given credential and model
func NewOpenAIProvider(apiKey, model, systemPrompt string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIProvider{
		client:       openai.NewClient(apiKey),
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return p.model }

// Stream implements Provider. Tokens are forwarded as they arrive; closing
// ctx (client disconnect) stops consuming the upstream stream.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []models.Message) (<-chan Chunk, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if p.systemPrompt != "" {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.systemPrompt,
		})
	}
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: converted,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				deliver(ctx, out, Chunk{Done: true})
				return
			}
			if err != nil {
				deliver(ctx, out, Chunk{Err: fmt.Errorf("stream error: %w", err)})
				return
			}

			if len(resp.Choices) > 0 {
				if content := resp.Choices[0].Delta.Content; content != "" {
					if !deliver(ctx, out, Chunk{Content: content}) {
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// deliver sends a chunk unless the consumer is gone
func deliver(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- c:
		return true
	}
}
