// Package dispatch turns raw chat messages into conversation events and
// serves them over HTTP for chat webhooks.
package dispatch

import (
	"strings"

	"github.com/round-cube/parking-attendant/session"
)

// Keyboard labels match only as the keyboard sends them, so a plate typed
// as EXIT or SALIDA still reaches the flow as plate input.
var labels = map[string]session.Trigger{
	"Entry":   session.BeginEntry,
	"Entrada": session.BeginEntry,
	"Exit":    session.BeginExit,
	"Salida":  session.BeginExit,
}

var commands = map[string]session.Trigger{
	"/start":    session.Start,
	"/entry":    session.BeginEntry,
	"/exit":     session.BeginExit,
	"/cancel":   session.Cancel,
	"/cancelar": session.Cancel,
}

// Route maps a message to a trigger. Slash commands are case-insensitive;
// anything that is neither a command nor a keyboard label is plate input.
func Route(text string) session.Event {
	trimmed := strings.TrimSpace(text)
	if trigger, ok := labels[trimmed]; ok {
		return session.Event{Trigger: trigger}
	}
	if strings.HasPrefix(trimmed, "/") {
		if trigger, ok := commands[strings.ToLower(trimmed)]; ok {
			return session.Event{Trigger: trigger}
		}
	}
	return session.Text(text)
}
