// Package provider defines the AI response provider consumed by the chat core
// and its Gemini implementation.
package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"radzz.ai/chat-orchestrator/internal/store"
)

type Mode string

const (
	ModeRadzz           Mode = "radzz"
	ModeLightning       Mode = "lightning"
	ModeDeepThinking    Mode = "deep_thinking"
	ModeRealTimeData    Mode = "real_time_data"
	ModeVideoGeneration Mode = "video_generation"
	ModeStudyBuddy      Mode = "study_buddy"
)

var ErrUnknownMode = errors.New("unknown conversation mode")

// Modes lists every mode in the order the picker shows them.
var Modes = []Mode{ModeRadzz, ModeLightning, ModeStudyBuddy, ModeDeepThinking, ModeRealTimeData, ModeVideoGeneration}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type SearchResult struct {
	Text    string
	Sources []store.GroundingSource
}

// Provider hands out a Handle bound to one conversation mode. A new Handle
// is requested whenever the mode changes.
type Provider interface {
	Configure(ctx context.Context, mode Mode) (Handle, error)
}

type Handle interface {
	Mode() Mode
	// StreamMessage returns a finite, single-use sequence of text fragments.
	// A transport failure is yielded as a non-nil error and ends the sequence.
	StreamMessage(ctx context.Context, text string) iter.Seq2[string, error]
	SearchMessage(ctx context.Context, text string) (SearchResult, error)
}

const (
	flashModel = "gemini-2.5-flash"
	proModel   = "gemini-2.5-pro"

	// SearchModel answers grounded search requests regardless of mode.
	SearchModel = proModel

	deepThinkingBudget int32 = 8192
)

// ModelFor picks the underlying model for a mode.
func ModelFor(mode Mode) string {
	if mode == ModeLightning {
		return flashModel
	}
	return proModel
}

// ThinkingBudget is the extended-reasoning token budget, zero when disabled.
func ThinkingBudget(mode Mode) int32 {
	if mode == ModeDeepThinking {
		return deepThinkingBudget
	}
	return 0
}

func SystemInstruction(mode Mode) string {
	switch mode {
	case ModeLightning:
		return "You are Lightning, a super-fast and efficient AI. Your responses must be concise, direct, and to the point. " +
			"Prioritize speed and brevity above all else."
	case ModeDeepThinking:
		return "You are a deep thinking AI analyst. Your purpose is to provide thorough, well-reasoned, and structured answers. " +
			"Break down complex topics, consider multiple perspectives, and cite evidence where possible. Your tone is academic and meticulous."
	case ModeStudyBuddy:
		return "You are Study Buddy, a friendly and patient AI tutor. Your goal is to help students learn and understand concepts. " +
			"Explain things clearly, use analogies, and ask questions to check for understanding. Be encouraging and supportive."
	default:
		return "You are RADZZ AI, a professional and helpful AI assistant. Your responses must be accurate, clear, and well-formatted. " +
			"Maintain a formal yet approachable tone."
	}
}

// once wraps a fragment sequence so that ranging over it a second time
// yields ErrStreamConsumed instead of re-sending the request.
func once(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	used := false
	return func(yield func(string, error) bool) {
		if used {
			yield("", ErrStreamConsumed)
			return
		}
		used = true
		seq(yield)
	}
}

var ErrStreamConsumed = errors.New("fragment stream already consumed")
