package sync

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/craftnotify/internal/model"
)

// EventKind classifies loop events.
type EventKind int

const (
	// EventFetchStarted is sent when a fetch is initiated.
	EventFetchStarted EventKind = iota
	// EventSynced is sent when a fetch result replaced the collection.
	EventSynced
	// EventFetchFailed is sent when the latest fetch failed. The
	// collection is unchanged.
	EventFetchFailed
	// EventChanged is sent after an optimistic local edit.
	EventChanged
	// EventActionFailed is sent when a remote action call failed.
	EventActionFailed
)

// Event is a tea.Msg telling the UI to re-read the loop's state. It
// carries no collection data.
type Event struct {
	Kind          EventKind
	Trigger       model.FetchTrigger
	Action        model.ActionKind
	Err           error
	UserInitiated bool
}

// Events exposes the event channel for consumers outside Bubble Tea.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// emit sends an event without blocking.
func (l *Loop) emit(e Event) {
	select {
	case l.events <- e:
	default:
		// Full; the UI re-reads state on the next event anyway
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next loop event.
// Call it again after handling an Event to keep listening.
func (l *Loop) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-l.events
		if !ok {
			return nil
		}
		return e
	}
}
