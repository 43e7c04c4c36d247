// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama responder.
type ClientError struct {
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrNotRunning indicates the Ollama server is unreachable.
var ErrNotRunning = &ClientError{Message: "Ollama is not running"}

// =============================================================================
// OLLAMA RESPONDER
// =============================================================================

// OllamaConfig holds configuration for the Ollama responder.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows
	BaseURL string

	// Model is the model to chat with (default: "llama3.2")
	Model string

	// Timeout bounds one reply round-trip (default: 120s). The real
	// latency bound is whichever is tighter: this timeout or the
	// caller's context.
	Timeout time.Duration
}

// DefaultOllamaConfig returns the default responder configuration.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://127.0.0.1:11434",
		Model:   "llama3.2",
		Timeout: 120 * time.Second,
	}
}

// OllamaResponder produces assistant replies by calling a local Ollama
// server's non-streaming chat endpoint.
type OllamaResponder struct {
	config     OllamaConfig
	httpClient *http.Client
}

var _ Responder = (*OllamaResponder)(nil)

// NewOllamaResponder creates an Ollama responder, filling in defaults
// for zero-value config fields.
func NewOllamaResponder(config OllamaConfig) *OllamaResponder {
	def := DefaultOllamaConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	return &OllamaResponder{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// chatMessage is one turn in the Ollama wire format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Reply sends the full history to /api/chat and returns the reply text.
func (r *OllamaResponder) Reply(ctx context.Context, history []model.Message) (string, error) {
	wire := make([]chatMessage, 0, len(history))
	for _, msg := range history {
		wire = append(wire, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:    r.config.Model,
		Messages: wire,
		Stream:   false,
	})
	if err != nil {
		return "", &ClientError{Message: "failed to encode chat request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Message: "failed to build chat request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &ClientError{Message: ErrNotRunning.Message, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ClientError{Message: "failed to read chat response", Cause: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &ClientError{Message: "invalid chat response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = resp.Status
		}
		return "", &ClientError{Message: "chat request failed: " + msg}
	}
	if parsed.Error != "" {
		return "", &ClientError{Message: parsed.Error}
	}
	return parsed.Message.Content, nil
}
