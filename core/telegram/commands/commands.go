// Package commands declares the metadata bots attach to slash commands.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated by the admin allowlist and only shown
	// in admins' private command menus.
	AdminOnly bool
	// Hidden commands work but never appear in a menu.
	Hidden  bool
	Aliases []string
}
