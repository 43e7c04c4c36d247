// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assist provides the reply collaborator for the parley TUI.
//
// The orchestrator hands a Responder the message history of the chat a
// send targeted and gets back assistant reply text. Latency is
// unbounded by contract: the caller bounds it with the context, not
// the responder. The canned responder here is the default; the Ollama
// responder in ollama.go is the real backend.
package assist

import (
	"context"
	"time"

	"github.com/jeranaias/parley-tui/internal/model"
)

// DefaultCannedReply mirrors the placeholder reply of the original
// client so a fresh install demonstrates the full send round-trip.
const DefaultCannedReply = "I'm a simulated AI response. Integrate with your preferred AI API for real responses!"

// DefaultCannedDelay is how long the canned responder pretends to think.
const DefaultCannedDelay = 1 * time.Second

// =============================================================================
// RESPONDER CONTRACT
// =============================================================================

// Responder produces one assistant reply for an accepted user message.
// history is the chat's prior messages oldest-first, ending with the
// user message that triggered the reply. Implementations must honor
// context cancellation.
type Responder interface {
	Reply(ctx context.Context, history []model.Message) (string, error)
}

// =============================================================================
// CANNED RESPONDER
// =============================================================================

// CannedResponder returns a fixed reply after a fixed delay.
type CannedResponder struct {
	Text  string
	Delay time.Duration
}

var _ Responder = (*CannedResponder)(nil)

// NewCannedResponder creates a canned responder with the defaults.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{Text: DefaultCannedReply, Delay: DefaultCannedDelay}
}

// Reply waits out the delay and returns the canned text.
func (r *CannedResponder) Reply(ctx context.Context, history []model.Message) (string, error) {
	delay := r.Delay
	if delay < 0 {
		delay = 0
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	text := r.Text
	if text == "" {
		text = DefaultCannedReply
	}
	return text, nil
}
