package core

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"radzz.ai/chat-orchestrator/internal/store"
)

// AttachmentIngester reads an uploaded file into memory and encodes it as a
// data URL, refusing anything over MaxBytes.
type AttachmentIngester struct {
	MaxBytes int64
}

func (a AttachmentIngester) Ingest(name, mimeType string, r io.Reader) (*store.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, a.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", name, err)
	}
	if int64(len(data)) > a.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds the %s limit", ErrAttachmentTooLarge, name, humanize.IBytes(uint64(a.MaxBytes)))
	}

	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &store.Attachment{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		URL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Verify checks an attachment that arrived already encoded. The payload is
// decoded and measured against MaxBytes; the claimed size and MIME type are
// replaced with what the data URL actually carries.
func (a AttachmentIngester) Verify(att store.Attachment) (*store.Attachment, error) {
	mimeType, payload, ok := splitDataURL(att.URL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAttachment, att.Name)
	}
	tooLarge := fmt.Errorf("%w: %s exceeds the %s limit", ErrAttachmentTooLarge, att.Name, humanize.IBytes(uint64(a.MaxBytes)))
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > a.MaxBytes+2 {
		return nil, tooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAttachment, att.Name, err)
	}
	if int64(len(data)) > a.MaxBytes {
		return nil, tooLarge
	}
	return &store.Attachment{
		Name: att.Name,
		Type: mimeType,
		Size: int64(len(data)),
		URL:  att.URL,
	}, nil
}

// MaxEncodedBytes bounds the base64 form of an attachment within the cap.
func (a AttachmentIngester) MaxEncodedBytes() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(a.MaxBytes)))
}

func splitDataURL(url string) (mimeType, payload string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType, payload, true
}

// FormatSize renders an attachment size the way the chat view labels it.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
