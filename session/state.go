package session

import "sync"

type State int

const (
	Idle State = iota
	AwaitingEntryPlate
	AwaitingExitPlate
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingEntryPlate:
		return "awaiting_entry_plate"
	case AwaitingExitPlate:
		return "awaiting_exit_plate"
	}
	return "unknown"
}

type Trigger int

const (
	Start Trigger = iota
	BeginEntry
	BeginExit
	TextInput
	Cancel
)

func (t Trigger) String() string {
	switch t {
	case Start:
		return "start"
	case BeginEntry:
		return "begin_entry"
	case BeginExit:
		return "begin_exit"
	case TextInput:
		return "text_input"
	case Cancel:
		return "cancel"
	}
	return "unknown"
}

// Event is one inbound user action. Text is only meaningful for TextInput.
type Event struct {
	Trigger Trigger
	Text    string
}

func Text(raw string) Event {
	return Event{Trigger: TextInput, Text: raw}
}

// Table holds the pending conversation state of every user. Users in Idle
// are not stored.
type Table struct {
	mu     sync.Mutex
	states map[string]State
}

func NewTable() *Table {
	return &Table{states: make(map[string]State)}
}

func (t *Table) Get(userID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[userID]
}

func (t *Table) Set(userID string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == Idle {
		delete(t.states, userID)
		return
	}
	t.states[userID] = s
}

func (t *Table) Reset(userID string) {
	t.Set(userID, Idle)
}

// Len returns the number of users with a pending interaction.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
