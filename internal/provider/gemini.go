package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini streams chat replies through the generative-ai-go chat session API
// and delegates grounded search and extended reasoning to the genai SDK,
// which is the only one of the two that exposes those features.
type Gemini struct {
	client   *genai.Client
	grounded *groundedBackend
	log      *zap.Logger
}

func NewGemini(ctx context.Context, apiKey string, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	grounded, err := newGroundedBackend(ctx, apiKey)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Gemini{client: client, grounded: grounded, log: log}, nil
}

func (g *Gemini) Close() {
	if err := g.client.Close(); err != nil {
		g.log.Warn("genai_client_close_failed", zap.Error(err))
	}
}

// Configure starts a fresh chat for mode. The returned handle keeps its own
// conversation history; nothing is shared between handles.
func (g *Gemini) Configure(ctx context.Context, mode Mode) (Handle, error) {
	h := &geminiHandle{mode: mode, grounded: g.grounded, log: g.log}

	if ThinkingBudget(mode) > 0 {
		chat, err := g.grounded.startThinkingChat(ctx, mode)
		if err != nil {
			return nil, err
		}
		h.stream = chat
		g.log.Debug("provider_configured", zap.String("mode", string(mode)), zap.String("sdk", "genai"))
		return h, nil
	}

	model := g.client.GenerativeModel(ModelFor(mode))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction(mode))},
	}
	h.stream = &legacyChat{session: model.StartChat()}
	g.log.Debug("provider_configured", zap.String("mode", string(mode)), zap.String("model", ModelFor(mode)))
	return h, nil
}

type streamer interface {
	stream(ctx context.Context, text string) iter.Seq2[string, error]
}

type geminiHandle struct {
	mode     Mode
	stream   streamer
	grounded *groundedBackend
	log      *zap.Logger
}

func (h *geminiHandle) Mode() Mode { return h.mode }

func (h *geminiHandle) StreamMessage(ctx context.Context, text string) iter.Seq2[string, error] {
	return once(h.stream.stream(ctx, text))
}

func (h *geminiHandle) SearchMessage(ctx context.Context, text string) (SearchResult, error) {
	res, err := h.grounded.search(ctx, text)
	if err != nil {
		h.log.Warn("grounded_search_failed", zap.Error(err))
		return SearchResult{}, err
	}
	return res, nil
}

type legacyChat struct {
	session *genai.ChatSession
}

func (c *legacyChat) stream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it := c.session.SendMessageStream(ctx, genai.Text(text))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("gemini chat SendMessageStream failed: %w", err))
				return
			}
			for _, fragment := range responseText(resp) {
				if !yield(fragment, nil) {
					return
				}
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok && txt != "" {
			out = append(out, string(txt))
		}
	}
	return out
}
