package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command bundles a handler with the metadata the registry needs: the menu
// description, whether the command is hidden from the menu, and aliases that
// resolve to it.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}
