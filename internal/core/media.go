package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"radzz.ai/chat-orchestrator/internal/store"
)

// MediaGenerator produces a URL for generated media.
type MediaGenerator interface {
	Generate(ctx context.Context, kind store.MediaType, prompt string) (string, error)
}

const sampleVideoURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"

// SimulatedMedia waits Delay and returns stock media; there is no real
// generation backend yet.
type SimulatedMedia struct {
	Delay time.Duration
}

func (s SimulatedMedia) Generate(ctx context.Context, kind store.MediaType, _ string) (string, error) {
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	switch kind {
	case store.MediaImage:
		return fmt.Sprintf("https://picsum.photos/seed/%s/512/512", uuid.NewString()), nil
	case store.MediaVideo:
		return sampleVideoURL, nil
	default:
		return "", fmt.Errorf("unsupported media type %q", kind)
	}
}

var mediaFilters = map[string]bool{
	"none":       true,
	"grayscale":  true,
	"sepia":      true,
	"invert":     true,
	"brightness": true,
	"contrast":   true,
}

const defaultOverlayColor = "#FFFFFF"

// normalizeEdits validates a filter and drops an empty overlay.
func normalizeEdits(edits store.MediaEdits) (store.MediaEdits, error) {
	if edits.Filter == "" {
		edits.Filter = "none"
	}
	if !mediaFilters[edits.Filter] {
		return store.MediaEdits{}, fmt.Errorf("%w: %q", ErrInvalidFilter, edits.Filter)
	}
	if edits.OverlayText != nil {
		if edits.OverlayText.Text == "" {
			edits.OverlayText = nil
		} else {
			overlay := *edits.OverlayText
			if overlay.Color == "" {
				overlay.Color = defaultOverlayColor
			}
			edits.OverlayText = &overlay
		}
	}
	return edits, nil
}
