// Package providertest provides a scripted provider for tests.
package providertest

import (
	"context"
	"iter"
	"sync"

	"radzz.ai/chat-orchestrator/internal/provider"
)

// Fake replays scripted fragments and search results.
type Fake struct {
	mu sync.Mutex

	Fragments    []string
	StreamErr    error // yielded after Fragments
	Search       provider.SearchResult
	SearchErr    error
	ConfigureErr error

	// OnFragment runs before fragment i is handed to the consumer.
	OnFragment func(i int)

	configured []provider.Mode
	streamed   []string
	searched   []string
}

func (f *Fake) Configure(_ context.Context, mode provider.Mode) (provider.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureErr != nil {
		return nil, f.ConfigureErr
	}
	f.configured = append(f.configured, mode)
	return &handle{fake: f, mode: mode}, nil
}

func (f *Fake) Configured() []provider.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Mode(nil), f.configured...)
}

func (f *Fake) Streamed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.streamed...)
}

func (f *Fake) Searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searched...)
}

type handle struct {
	fake *Fake
	mode provider.Mode
}

func (h *handle) Mode() provider.Mode { return h.mode }

func (h *handle) StreamMessage(ctx context.Context, text string) iter.Seq2[string, error] {
	f := h.fake
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.streamed = append(f.streamed, text)
		fragments := append([]string(nil), f.Fragments...)
		streamErr := f.StreamErr
		onFragment := f.OnFragment
		f.mu.Unlock()

		for i, fragment := range fragments {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if onFragment != nil {
				onFragment(i)
			}
			if !yield(fragment, nil) {
				return
			}
		}
		if streamErr != nil {
			yield("", streamErr)
		}
	}
}

func (h *handle) SearchMessage(_ context.Context, text string) (provider.SearchResult, error) {
	f := h.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, text)
	if f.SearchErr != nil {
		return provider.SearchResult{}, f.SearchErr
	}
	return f.Search, nil
}
