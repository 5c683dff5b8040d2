package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/core"
	"radzz.ai/chat-orchestrator/internal/store"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSessionsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("LOG_LEVEL", "ERROR")

	out, err := runCLI(t, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved sessions found.")

	kv, err := store.Open("sqlite", dbPath, "")
	require.NoError(t, err)
	err = store.NewAdapter(kv, zap.NewNop()).SaveSessions([]store.ChatSession{{
		ID:        "s-1",
		Title:     "explain recursion",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Messages:  []store.Message{{ID: core.WelcomeMessageID, Role: store.RoleModel, Content: store.Final("hi")}},
	}})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	out, err = runCLI(t, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "explain recursion")
	assert.Contains(t, out, "2 hours ago")
}

func TestSendRejectsUnknownMode(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LOG_LEVEL", "ERROR")

	_, err := runCLI(t, "send", "--mode", "warp_speed", "hello")
	assert.ErrorContains(t, err, "unknown conversation mode")
}

func TestServeRequiresSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JWT_SECRET", "")

	_, err := runCLI(t, "serve")
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestDescribe(t *testing.T) {
	err := describe(core.ErrTrialsExhausted)
	assert.ErrorIs(t, err, core.ErrTrialsExhausted)
	assert.Contains(t, err.Error(), "Please upgrade")
}

func TestAttachFile(t *testing.T) {
	svc := core.NewChatService(nil, nil, nil, core.AttachmentIngester{MaxBytes: 2048}, nil, core.TrialDefaults{}, zap.NewNop())
	dir := t.TempDir()

	small := filepath.Join(dir, "notes")
	require.NoError(t, os.WriteFile(small, bytes.Repeat([]byte("a"), 1536), 0o600))
	var out bytes.Buffer
	att, err := attachFile(svc, small, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1536), att.Size)
	assert.Equal(t, "attached notes (text/plain; charset=utf-8, 1.5 KiB)\n", out.String())

	big := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 4096), 0o600))
	_, err = attachFile(svc, big, &out)
	assert.ErrorIs(t, err, core.ErrAttachmentTooLarge)

	_, err = attachFile(svc, filepath.Join(dir, "missing"), &out)
	assert.Error(t, err)
}

func TestSendRequiresInput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")

	_, err := runCLI(t, "send")
	assert.ErrorContains(t, err, "a message or --attach is required")
}
