// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the application log file for parley.
//
// The TUI owns stdout, so all diagnostics go to a log file under
// ~/.parley/logs/. The logger is a structured slog text logger; the
// level and destination come from the config.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// =============================================================================
// GLOBAL LOGGER
// =============================================================================

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	closer io.Closer
)

// L returns the application logger. Before Init it discards everything.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// ParseLevel maps a config level string to a slog level. Unknown
// strings fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init opens the log file and installs the global logger. With
// enabled=false the logger discards everything and Init is a no-op
// success. Call Close on shutdown to flush and release the file.
func Init(path, level string, enabled bool) error {
	if !enabled {
		set(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: ParseLevel(level)})
	set(slog.New(handler), f)
	return nil
}

// InitWriter installs a logger writing to w. Used by tests and by the
// CLI's --verbose mode, which logs to stderr instead of the file.
func InitWriter(w io.Writer, level string) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	set(slog.New(handler), nil)
}

// Close releases the log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return err
}

func set(l *slog.Logger, c io.Closer) {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	logger = l
	closer = c
	slog.SetDefault(l)
}
