package store

import "time"

type User struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	IsPremium        bool   `json:"isPremium"`
	PremiumTrials    int    `json:"premiumTrials"`
	StudyBuddyTrials int    `json:"studyBuddyTrials"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// Clone returns a deep copy of the session.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type ContentState string

const (
	// ContentText holds user text or a model response that is still streaming.
	ContentText ContentState = "text"
	// ContentPending is a busy placeholder; Text optionally carries a status line.
	ContentPending ContentState = "pending"
	// ContentFinal is a resolved model response.
	ContentFinal ContentState = "final"
)

type Content struct {
	State ContentState `json:"state"`
	Text  string       `json:"text"`
}

func Text(s string) Content           { return Content{State: ContentText, Text: s} }
func Pending(status string) Content { return Content{State: ContentPending, Text: status} }
func Final(s string) Content        { return Content{State: ContentFinal, Text: s} }

func (c Content) IsPending() bool { return c.State == ContentPending }

type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type
	Size int64  `json:"size"`
	URL  string `json:"url"` // base64 data URL
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type OverlayText struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type MediaEdits struct {
	Filter      string       `json:"filter"`
	OverlayText *OverlayText `json:"overlayText,omitempty"`
}

type Media struct {
	Type          MediaType   `json:"type"`
	URL           string      `json:"url"`
	IsPlaceholder bool        `json:"isPlaceholder,omitempty"`
	Edits         *MediaEdits `json:"edits,omitempty"`
}

type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type Message struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Content    Content           `json:"content"`
	Attachment *Attachment       `json:"attachment,omitempty"`
	Media      *Media            `json:"media,omitempty"`
	Sources    []GroundingSource `json:"sources,omitempty"`
}

// Clone returns a deep copy so callers can't reach into store-owned pointers.
func (m Message) Clone() Message {
	out := m
	if m.Attachment != nil {
		a := *m.Attachment
		out.Attachment = &a
	}
	if m.Media != nil {
		media := *m.Media
		if m.Media.Edits != nil {
			edits := *m.Media.Edits
			if edits.OverlayText != nil {
				overlay := *edits.OverlayText
				edits.OverlayText = &overlay
			}
			media.Edits = &edits
		}
		out.Media = &media
	}
	if m.Sources != nil {
		out.Sources = append([]GroundingSource(nil), m.Sources...)
	}
	return out
}
