package provider

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"radzz.ai/chat-orchestrator/internal/store"
)

type groundedBackend struct {
	client *genai.Client
}

func newGroundedBackend(ctx context.Context, apiKey string) (*groundedBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &groundedBackend{client: client}, nil
}

func (b *groundedBackend) startThinkingChat(ctx context.Context, mode Mode) (*thinkingChat, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction(mode), genai.RoleUser),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(ThinkingBudget(mode)),
		},
	}
	chat, err := b.client.Chats.Create(ctx, ModelFor(mode), config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s chat: %w", mode, err)
	}
	return &thinkingChat{chat: chat}, nil
}

func (b *groundedBackend) search(ctx context.Context, text string) (SearchResult, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	resp, err := b.client.Models.GenerateContent(ctx, SearchModel, genai.Text(text), config)
	if err != nil {
		return SearchResult{}, fmt.Errorf("gemini grounded search failed: %w", err)
	}

	var metadata *genai.GroundingMetadata
	if len(resp.Candidates) > 0 {
		metadata = resp.Candidates[0].GroundingMetadata
	}
	return SearchResult{Text: resp.Text(), Sources: sourcesFrom(metadata)}, nil
}

// sourcesFrom keeps only web chunks that carry both a URI and a title.
func sourcesFrom(metadata *genai.GroundingMetadata) []store.GroundingSource {
	if metadata == nil {
		return nil
	}
	var sources []store.GroundingSource
	for _, chunk := range metadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		sources = append(sources, store.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

type thinkingChat struct {
	chat *genai.Chat
}

func (c *thinkingChat) stream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				yield("", fmt.Errorf("gemini thinking stream failed: %w", err))
				return
			}
			if fragment := resp.Text(); fragment != "" {
				if !yield(fragment, nil) {
					return
				}
			}
		}
	}
}
