// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat REPL.
//
// Handles the "parley chat" command: the same session orchestrator as
// the TUI, driven from a readline prompt. Useful over ssh and in
// terminals where a full-screen interface is unwanted.
//
// Interactive commands (during chat):
//   /new              Start a new chat
//   /list             List chats
//   /select N         Switch to chat number N from /list
//   /rename TITLE     Rename the current chat
//   /delete           Delete the current chat
//   /archive          Archive the current chat
//   /help, /h         Show available commands
//   /quit, /q         Exit chat
//   Ctrl+D            Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley-tui/internal/config"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/store"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the chat REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with persistent input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// runChat runs the interactive REPL against the bound session.
func (a *App) runChat(ctx context.Context) error {
	o := a.Orchestrator
	if o.Identity() == nil {
		return errors.New("not signed in; run `parley login` first")
	}

	input := NewChatCLI()
	defer input.Close()

	// Print notices as they happen; state changes are pulled on demand.
	unsub := o.SubscribeNotices(func(n session.Notice) {
		switch n.Kind {
		case session.NoticeError:
			fmt.Fprintln(os.Stderr, errorStyle.Render("! ")+n.Text)
		default:
			fmt.Fprintln(os.Stderr, infoStyle.Render("· "+n.Text))
		}
	})
	defer unsub()

	if err := o.LoadMessages(ctx); err == nil {
		printTranscript(o.State())
	}
	printChatBanner(o.State())

	for {
		line, err := input.ReadInput(promptStyle.Render("you> "))
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// Ctrl+D or closed stdin ends the session.
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := a.handleChatCommand(ctx, line)
			if err != nil {
				printChatError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := o.SendMessage(ctx, line); err != nil {
			printChatError(err)
			continue
		}

		// Block until the reply lands; the REPL has no background UI
		// to show progress in.
		fmt.Println(infoStyle.Render("· thinking..."))
		o.Wait()
		printLastReply(o.State())
	}
}

// alreadyNoticed reports whether the notice subscription has already
// printed this error: store failures and rate limiting reach the user
// through a notice, so printing them again would show each failure
// twice.
func alreadyNoticed(err error) bool {
	var gerr *store.GatewayError
	return errors.As(err, &gerr) ||
		errors.Is(err, store.ErrChatNotFound) ||
		errors.Is(err, session.ErrRateLimited)
}

// printChatError reports a failed command, once.
func printChatError(err error) {
	if alreadyNoticed(err) {
		return
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("! ")+err.Error())
}

// handleChatCommand executes one /command. Returns true to exit.
func (a *App) handleChatCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]
	o := a.Orchestrator

	switch cmd {
	case "/quit", "/q":
		return true, nil

	case "/help", "/h":
		printChatHelp()
		return false, nil

	case "/new":
		chat, err := o.CreateChat(ctx)
		if err != nil {
			return false, err
		}
		fmt.Println(successStyle.Render("Started ") + chat.DisplayTitle())
		return false, nil

	case "/list":
		printChatList(o.State())
		return false, nil

	case "/select":
		if len(args) != 1 {
			return false, errors.New("usage: /select N")
		}
		n, err := strconv.Atoi(args[0])
		snap := o.State()
		if err != nil || n < 1 || n > len(snap.Chats) {
			return false, fmt.Errorf("no chat number %s; run /list", args[0])
		}
		o.SelectChat(snap.Chats[n-1].ID)
		if err := o.LoadMessages(ctx); err != nil {
			return false, err
		}
		printTranscript(o.State())
		return false, nil

	case "/rename":
		if len(args) == 0 {
			return false, errors.New("usage: /rename TITLE")
		}
		cur := o.State().CurrentChat
		if cur == nil {
			return false, errors.New("no chat selected")
		}
		title := strings.Join(args, " ")
		if err := o.RenameChat(ctx, cur.ID, title); err != nil {
			return false, err
		}
		fmt.Println(successStyle.Render("Renamed to ") + title)
		return false, nil

	case "/delete":
		cur := o.State().CurrentChat
		if cur == nil {
			return false, errors.New("no chat selected")
		}
		if err := o.DeleteChat(ctx, cur.ID); err != nil {
			return false, err
		}
		if err := o.LoadMessages(ctx); err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("Deleted " + cur.DisplayTitle()))
		return false, nil

	case "/archive":
		cur := o.State().CurrentChat
		if cur == nil {
			return false, errors.New("no chat selected")
		}
		if err := o.ArchiveChat(ctx, cur.ID); err != nil {
			return false, err
		}
		if err := o.LoadMessages(ctx); err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("Archived " + cur.DisplayTitle()))
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s; try /help", cmd)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func printChatBanner(snap session.Snapshot) {
	title := "no chat selected"
	if snap.CurrentChat != nil {
		title = snap.CurrentChat.DisplayTitle()
	}
	fmt.Println(headerStyle.Render("parley chat") + infoStyle.Render("  ·  "+title+"  ·  /help for commands"))
}

func printChatHelp() {
	fmt.Println(infoStyle.Render(`Commands:
  /new              Start a new chat
  /list             List chats
  /select N         Switch to chat number N
  /rename TITLE     Rename the current chat
  /delete           Delete the current chat
  /archive          Archive the current chat
  /quit             Exit`))
}

func printChatList(snap session.Snapshot) {
	if len(snap.Chats) == 0 {
		fmt.Println(infoStyle.Render("No chats yet; /new starts one"))
		return
	}
	for i, c := range snap.Chats {
		marker := "  "
		if snap.CurrentChat != nil && c.ID == snap.CurrentChat.ID {
			marker = successStyle.Render("* ")
		}
		fmt.Printf("%s%2d. %s\n", marker, i+1, c.DisplayTitle())
	}
}

func printTranscript(snap session.Snapshot) {
	for _, m := range snap.Messages {
		printMessage(m)
	}
}

// printLastReply prints the trailing assistant message, if the reply
// landed in the still-current chat.
func printLastReply(snap session.Snapshot) {
	if len(snap.Messages) == 0 {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role == model.RoleAssistant {
		printMessage(last)
	}
}

func printMessage(m model.Message) {
	switch m.Role {
	case model.RoleUser:
		fmt.Println(promptStyle.Render("you> ") + m.Content)
	case model.RoleAssistant:
		fmt.Println(headerStyle.Render("assistant> ") + m.Content)
	default:
		fmt.Println(infoStyle.Render(m.Role.String()+"> ") + m.Content)
	}
}
