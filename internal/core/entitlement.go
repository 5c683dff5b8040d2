package core

import (
	"strings"

	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

// ImageTrigger turns any send into an image generation request.
const ImageTrigger = "generate an image"

func isImageRequest(text string) bool {
	return strings.Contains(strings.ToLower(text), ImageTrigger)
}

var premiumModes = map[provider.Mode]bool{
	provider.ModeDeepThinking:    true,
	provider.ModeRealTimeData:    true,
	provider.ModeVideoGeneration: true,
}

type Gate string

const (
	GateNone    Gate = ""
	GatePremium Gate = "premium"
	GateStudy   Gate = "study"
)

// Decision is the gate's verdict for one send. A denial is an ordinary
// outcome, not an error: Reason explains it and Upgrade says whether the
// upgrade flow should be offered.
type Decision struct {
	Admitted bool
	Gate     Gate
	Reason   error
	Upgrade  bool
}

// GateFor classifies a send. Premium takes precedence, so a study-mode image
// request only ever touches the premium counter.
func GateFor(mode provider.Mode, text string) Gate {
	switch {
	case premiumModes[mode] || isImageRequest(text):
		return GatePremium
	case mode == provider.ModeStudyBuddy:
		return GateStudy
	default:
		return GateNone
	}
}

type EntitlementGate struct {
	profiles *ProfileStore
	metrics  *Metrics
	log      *zap.Logger
}

func NewEntitlementGate(profiles *ProfileStore, metrics *Metrics, log *zap.Logger) *EntitlementGate {
	return &EntitlementGate{profiles: profiles, metrics: metrics, log: log}
}

// CheckAndReserve admits or denies a send and, on admission, consumes one
// trial before returning. A denial leaves every counter untouched, and an
// admitted trial is never refunded.
func (g *EntitlementGate) CheckAndReserve(mode provider.Mode, text string) Decision {
	gate := GateFor(mode, text)
	decision := Decision{Gate: gate}

	found := g.profiles.Update(func(u *store.User) bool {
		if u.IsPremium || gate == GateNone {
			decision.Admitted = true
			return false
		}
		switch gate {
		case GatePremium:
			if u.PremiumTrials <= 0 {
				decision.Reason = ErrTrialsExhausted
				decision.Upgrade = true
				return false
			}
			u.PremiumTrials--
		case GateStudy:
			if u.StudyBuddyTrials <= 0 {
				decision.Reason = ErrStudyTrialsExhausted
				return false
			}
			u.StudyBuddyTrials--
		}
		decision.Admitted = true
		return true
	})
	if !found {
		decision = Decision{Gate: gate, Reason: ErrUnauthenticated}
	}

	if decision.Admitted {
		g.log.Debug("send_admitted", zap.String("mode", string(mode)), zap.String("gate", string(gate)))
	} else {
		g.metrics.deny(decision.Reason)
		g.log.Info("send_denied", zap.String("mode", string(mode)), zap.String("gate", string(gate)), zap.Error(decision.Reason))
	}
	return decision
}
