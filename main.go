// parley - A terminal chat client with local accounts and persistent
// conversations.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/parley-tui/internal/assist"
	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/cli"
	"github.com/jeranaias/parley-tui/internal/config"
	"github.com/jeranaias/parley-tui/internal/logging"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/store"
	"github.com/jeranaias/parley-tui/internal/ui/chat"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.Version = Version

	// Global flags come before the subcommand.
	configPath := ""
	verbose := false
parseFlags:
	for len(args) > 0 {
		switch args[0] {
		case "--config":
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				return 2
			}
			configPath = args[1]
			args = args[2:]
		case "--verbose", "-v":
			verbose = true
			args = args[1:]
		case "--no-tui":
			// Alias for the line-oriented chat command.
			args[0] = "chat"
		default:
			break parseFlags
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if verbose {
		logging.InitWriter(os.Stderr, "debug")
	} else {
		logPath, perr := cfg.LogPath()
		if perr == nil {
			if lerr := logging.Init(logPath, cfg.Log.Level, cfg.Log.Enabled); lerr != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", lerr)
			}
		}
	}
	defer logging.Close()

	ctx := context.Background()

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	gateway, err := store.OpenSQLite(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer gateway.Close()
	if cfg.Storage.BusyTimeoutMS > 0 {
		if err := gateway.SetBusyTimeout(time.Duration(cfg.Storage.BusyTimeoutMS) * time.Millisecond); err != nil {
			logging.L().Warn("busy timeout not applied", "err", err)
		}
	}

	authDir, err := cfg.AuthDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	authenticator, err := auth.NewLocalAuthenticator(authDir, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer authenticator.Close()

	orchestrator := session.New(session.Config{
		Gateway:        gateway,
		Responder:      buildResponder(cfg),
		SendsPerMinute: cfg.Chat.SendsPerMinute,
	})

	guard := auth.NewGuard(authenticator)
	guard.OnIdentity = func(id auth.Identity) {
		orchestrator.Bind(id)
		if err := orchestrator.LoadChats(ctx); err != nil {
			logging.L().Error("chat roster load failed", "err", err)
		}
	}
	guard.OnSignedOut = func() {
		orchestrator.Clear()
	}
	if err := guard.Start(ctx); err != nil && !errors.Is(err, auth.ErrNoSession) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer guard.Stop()

	app := &cli.App{
		Config:       cfg,
		Auth:         authenticator,
		Guard:        guard,
		Orchestrator: orchestrator,
	}

	if len(args) > 0 {
		code := app.Run(ctx, args)
		orchestrator.Wait()
		return code
	}

	return runTUI(cfg, orchestrator, guard)
}

// loadConfig loads from the explicit path when given, otherwise the
// standard locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// buildResponder constructs the reply backend selected in the config.
func buildResponder(cfg *config.Config) assist.Responder {
	switch cfg.Responder.Mode {
	case "ollama":
		return assist.NewOllamaResponder(assist.OllamaConfig{
			BaseURL: cfg.Responder.OllamaURL,
			Model:   cfg.Responder.OllamaModel,
			Timeout: time.Duration(cfg.Responder.TimeoutSecs) * time.Second,
		})
	default:
		r := assist.NewCannedResponder()
		r.Delay = time.Duration(cfg.Responder.CannedDelayMS) * time.Millisecond
		return r
	}
}

// runTUI launches the full-screen interface. Requires a signed-in
// identity; account management happens through the CLI commands.
func runTUI(cfg *config.Config, orchestrator *session.Orchestrator, guard *auth.Guard) int {
	if orchestrator.Identity() == nil {
		fmt.Fprintln(os.Stderr, "Not signed in. Run `parley login` or `parley register` first.")
		return 1
	}

	var idle *session.IdleTimeout
	if cfg.Chat.IdleTimeoutSecs > 0 {
		idle = session.NewIdleTimeout(session.IdleConfig{
			Timeout:       time.Duration(cfg.Chat.IdleTimeoutSecs) * time.Second,
			WarningBefore: time.Duration(cfg.Chat.IdleWarningSecs) * time.Second,
		})
	}

	err := chat.Run(chat.Config{
		Orchestrator:   orchestrator,
		Guard:          guard,
		Idle:           idle,
		Theme:          styles.NewThemeForMode(cfg.UI.Theme),
		Markdown:       cfg.UI.MarkdownRendering,
		ShowTimestamps: cfg.UI.ShowTimestamps,
		Compact:        cfg.UI.CompactMode,
	})
	orchestrator.Wait()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
