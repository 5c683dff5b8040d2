package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/config"
	"radzz.ai/chat-orchestrator/internal/core"
	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

// app is the wired chat backend shared by the serve and send commands.
type app struct {
	kv      store.KV
	writer  *store.SessionWriter
	gemini  *provider.Gemini
	service *core.ChatService
}

func openKV(cfg config.Config) (store.KV, error) {
	kv, err := store.Open(cfg.StoreBackend, cfg.DatabaseURL, cfg.PebbleDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	return kv, nil
}

func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer, log *zap.Logger) (*app, error) {
	kv, err := openKV(cfg)
	if err != nil {
		return nil, err
	}

	gemini, err := provider.NewGemini(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		kv.Close()
		return nil, err
	}

	adapter := store.NewAdapter(kv, log)
	sessions := core.NewSessionStore(adapter.LoadSessions())
	writer := store.NewSessionWriter(adapter, sessions.Snapshot, log)
	sessions.SetOnChange(writer.Notify)

	profiles := core.NewProfileStore(adapter, log)
	metrics := core.NewMetrics(reg)
	gate := core.NewEntitlementGate(profiles, metrics, log)
	orch := core.NewOrchestrator(sessions, gate, gemini, core.SimulatedMedia{Delay: cfg.MediaDelay}, metrics, log)
	checkout := core.NewPendingCheckout(cfg.CheckoutKey, cfg.CheckoutCurrency, log)
	service := core.NewChatService(sessions, profiles, orch,
		core.AttachmentIngester{MaxBytes: cfg.MaxAttachmentBytes}, checkout,
		core.TrialDefaults{Premium: cfg.PremiumTrials, Study: cfg.StudyTrials}, log)

	return &app{kv: kv, writer: writer, gemini: gemini, service: service}, nil
}

// Close flushes pending session writes before releasing the store.
func (a *app) Close() {
	a.writer.Close()
	a.gemini.Close()
	if err := a.kv.Close(); err != nil {
		log.Warn("store_close_failed", zap.Error(err))
	}
}
