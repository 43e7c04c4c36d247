// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Account commands: register, login, logout, whoami.
//
// Passwords are read with terminal echo disabled. A successful login
// persists the session token, so the next `parley` invocation starts
// signed in.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/parley-tui/internal/auth"
)

// readLine prompts on stdout and reads one trimmed line from stdin.
func readLine(prompt string) (string, error) {
	fmt.Print(promptStyle.Render(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword prompts and reads a password without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Print(promptStyle.Render(prompt))
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		// Piped stdin (tests, scripts): fall back to a plain read.
		return readLine("")
	}

	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// runRegister creates a local account and signs it in.
func (a *App) runRegister(ctx context.Context) error {
	email, err := readLine("Email: ")
	if err != nil {
		return err
	}
	displayName, err := readLine("Display name (optional): ")
	if err != nil {
		return err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	identity, err := a.Auth.Register(ctx, email, displayName, password)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Account created: ") + identity.Email)

	if a.Config != nil && a.Config.Auth.TOTPRequired {
		url, terr := a.Auth.EnrollTOTP(ctx, identity.Email)
		if terr != nil {
			return fmt.Errorf("two-factor enrollment failed: %w", terr)
		}
		fmt.Println(infoStyle.Render("This account requires a TOTP second factor."))
		fmt.Println(infoStyle.Render("Add this to your authenticator app:"))
		fmt.Println(url)
	}
	return nil
}

// runTOTP enrolls a TOTP second factor for the signed-in account and
// prints the otpauth:// provisioning URL. The code is required from
// the next login on.
func (a *App) runTOTP(ctx context.Context) error {
	identity, err := a.Auth.CurrentSession(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		return errors.New("not signed in; run `parley login` first")
	}
	if err != nil {
		return err
	}

	url, err := a.Auth.EnrollTOTP(ctx, identity.Email)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("TOTP enrolled for ") + identity.Email)
	fmt.Println(infoStyle.Render("Add this to your authenticator app:"))
	fmt.Println(url)
	return nil
}

// runLogin signs in, prompting for a TOTP code when the account has
// one enrolled.
func (a *App) runLogin(ctx context.Context) error {
	email, err := readLine("Email: ")
	if err != nil {
		return err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	identity, err := a.Auth.Login(ctx, email, password, "")
	if errors.Is(err, auth.ErrTOTPRequired) {
		code, cerr := readLine("TOTP code: ")
		if cerr != nil {
			return cerr
		}
		identity, err = a.Auth.Login(ctx, email, password, code)
	}
	if err != nil {
		return err
	}

	name := identity.DisplayName
	if name == "" {
		name = identity.Email
	}
	fmt.Println(successStyle.Render("Signed in as ") + name)
	return nil
}

// runLogout tears down the current session.
func (a *App) runLogout(ctx context.Context) error {
	if err := a.Auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("Signed out"))
	return nil
}

// runWhoami prints the active identity.
func (a *App) runWhoami(ctx context.Context) error {
	identity, err := a.Auth.CurrentSession(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		fmt.Println(infoStyle.Render("Not signed in"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("Email:        " + identity.Email)
	if identity.DisplayName != "" {
		fmt.Println("Display name: " + identity.DisplayName)
	}
	fmt.Println("User ID:      " + identity.ID)
	return nil
}
