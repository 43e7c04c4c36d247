// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the parley command line surface.
//
// The default invocation launches the TUI; the subcommands here cover
// account management, configuration, and a line-oriented chat REPL for
// terminals where a full-screen TUI is unwanted (ssh, scripts, screen
// readers).
//
// Commands:
//   parley               Launch the TUI (handled by main)
//   parley chat          Line-oriented chat REPL
//   parley register      Create a local account
//   parley login         Sign in
//   parley logout        Sign out
//   parley whoami        Show the active identity
//   parley totp          Enroll a TOTP second factor
//   parley config        Get/set configuration values
//   parley version       Show version information
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/auth"
	"github.com/jeranaias/parley-tui/internal/config"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// APP
// =============================================================================

// App bundles the collaborators the CLI commands operate on.
type App struct {
	Config       *config.Config
	Auth         *auth.LocalAuthenticator
	Guard        *auth.Guard
	Orchestrator *session.Orchestrator
}

// Run dispatches a subcommand. Returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	var err error
	switch args[0] {
	case "chat":
		err = a.runChat(ctx)
	case "register":
		err = a.runRegister(ctx)
	case "login":
		err = a.runLogin(ctx)
	case "logout":
		err = a.runLogout(ctx)
	case "whoami":
		err = a.runWhoami(ctx)
	case "totp":
		err = a.runTOTP(ctx)
	case "config":
		err = a.runConfig(args[1:])
	case "version":
		fmt.Println("parley " + Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("unknown command: "+args[0]))
		printUsage()
		return 2
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(headerStyle.Render("parley") + " - a terminal chat client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  parley                Launch the TUI")
	fmt.Println("  parley chat           Line-oriented chat REPL")
	fmt.Println("  parley register       Create a local account")
	fmt.Println("  parley login          Sign in")
	fmt.Println("  parley logout         Sign out")
	fmt.Println("  parley whoami         Show the active identity")
	fmt.Println("  parley totp           Enroll a TOTP second factor")
	fmt.Println("  parley config list    Show all configuration values")
	fmt.Println("  parley config get KEY")
	fmt.Println("  parley config set KEY VALUE")
	fmt.Println("  parley version        Show version information")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH         Use an explicit config file")
	fmt.Println("  --verbose             Log to stderr at debug level")
}
