package core

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConnection           = errors.New("provider connection failed")
	ErrFetch                = errors.New("real-time data fetch failed")
	ErrMediaGeneration      = errors.New("media generation failed")
	ErrTrialsExhausted      = errors.New("premium trials exhausted")
	ErrStudyTrialsExhausted = errors.New("study trials exhausted")
	ErrUnauthenticated      = errors.New("no authenticated profile")
	ErrSendInProgress       = errors.New("a message is already being answered")
	ErrEmptyMessage         = errors.New("message has no text or attachment")
	ErrAttachmentTooLarge   = errors.New("attachment too large")
	ErrInvalidAttachment    = errors.New("attachment is not a base64 data URL")
	ErrInvalidFilter        = errors.New("invalid media filter")
	ErrNoMedia              = errors.New("message has no media")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrUnknownOrder         = errors.New("unknown checkout order")
	ErrInvalidProfile       = errors.New("invalid profile")
)

// Banner returns the user-facing text for err, or "" when there is none.
func Banner(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return "Connection error. Please check your network and try again."
	case errors.Is(err, ErrFetch):
		return "Failed to fetch real-time data. Please try again."
	case errors.Is(err, ErrMediaGeneration):
		return "Failed to generate media. Please try again."
	case errors.Is(err, ErrTrialsExhausted):
		return "All premium trials used. Please upgrade for unlimited access."
	case errors.Is(err, ErrStudyTrialsExhausted):
		return "Study Buddy trials exhausted."
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.Is(err, ErrSendInProgress):
		return "Please wait for the current response to finish."
	case errors.Is(err, ErrAttachmentTooLarge):
		return "That file is too large to attach."
	default:
		return ""
	}
}
