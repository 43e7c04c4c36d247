// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration get/set/list commands.
package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/parley-tui/internal/config"
)

// runConfig dispatches `parley config <list|get|set>`.
func (a *App) runConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: parley config <list|get KEY|set KEY VALUE>")
	}

	switch args[0] {
	case "list":
		return a.configList()
	case "get":
		if len(args) != 2 {
			return errors.New("usage: parley config get KEY")
		}
		return a.configGet(args[1])
	case "set":
		if len(args) != 3 {
			return errors.New("usage: parley config set KEY VALUE")
		}
		return a.configSet(args[1], args[2])
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

func (a *App) configList() error {
	for _, key := range config.GetAllKeys() {
		value, err := a.Config.Get(key)
		if err != nil {
			return err
		}
		fmt.Printf("%-28s %v\n", key, value)
	}
	return nil
}

func (a *App) configGet(key string) error {
	value, err := a.Config.Get(key)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

// configSet updates one value and writes the config file back out.
func (a *App) configSet(key, value string) error {
	if err := a.Config.Set(key, value); err != nil {
		return err
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if err := config.SaveTOML(a.Config, path); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Set ") + key + " = " + value)
	return nil
}
