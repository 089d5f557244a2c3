package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/keys"
	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/negotiation"
	"github.com/nhle/craftnotify/internal/theme"
)

// MarkReadMsg asks the application to mark a notification read.
type MarkReadMsg struct{ ID string }

// DeleteMsg asks the application to delete a notification.
type DeleteMsg struct{ ID string }

// MarkAllReadMsg asks the application to mark everything read.
type MarkAllReadMsg struct{}

// RefreshMsg asks for a user-initiated refetch.
type RefreshMsg struct{}

// FilterChangedMsg is sent after the read-state filter was cycled.
type FilterChangedMsg struct{ Filter feed.Filter }

// NegotiateMsg opens the negotiation form for a notification.
type NegotiateMsg struct {
	Notification model.Notification
	Reject       bool
}

// Model is the grouped notification center list.
type Model struct {
	keys   *keys.KeyMap
	view   feed.View
	now    time.Time
	cursor int
	width  int
	height int
}

// New creates an empty notification list.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetView replaces the displayed view. The cursor stays on the same
// notification when it is still visible.
func (m *Model) SetView(v feed.View, now time.Time) {
	selectedID := ""
	if n, ok := m.Selected(); ok {
		selectedID = n.ID
	}

	m.view = v
	m.now = now

	if selectedID != "" {
		for i, n := range v.All {
			if n.ID == selectedID {
				m.cursor = i
				return
			}
		}
	}
	m.clampCursor()
}

// Filter returns the filter of the current view.
func (m Model) Filter() feed.Filter {
	return m.view.Filter
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.All) {
		return model.Notification{}, false
	}
	return m.view.All[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.view.All) {
		m.cursor = len(m.view.All) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Update handles navigation and turns action keys into messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.view.All)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Refresh):
		return m, emit(RefreshMsg{})

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		return m, emit(MarkAllReadMsg{})

	case key.Matches(keyMsg, m.keys.CycleFilter):
		return m, emit(FilterChangedMsg{Filter: m.view.Filter.Next()})
	}

	n, ok := m.Selected()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.MarkRead):
		if n.IsRead {
			return m, nil
		}
		return m, emit(MarkReadMsg{ID: n.ID})

	case key.Matches(keyMsg, m.keys.Delete):
		return m, emit(DeleteMsg{ID: n.ID})

	case key.Matches(keyMsg, m.keys.CounterOffer):
		if negotiation.Eligible(n) {
			return m, emit(NegotiateMsg{Notification: n})
		}

	case key.Matches(keyMsg, m.keys.Reject):
		if negotiation.Eligible(n) {
			return m, emit(NegotiateMsg{Notification: n, Reject: true})
		}
	}

	return m, nil
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders filter tabs and the Today, Yesterday and Older groups.
func (m Model) View() string {
	lines := []string{m.renderTabs()}

	if len(m.view.All) == 0 {
		lines = append(lines, "", theme.HelpStyle.Render(m.emptyText()))
		return strings.Join(lines, "\n")
	}

	// Groups keep the sorted order, so their concatenation is view.All
	// and a running index lines up with the cursor.
	index := 0
	cursorLine := 0
	for _, group := range []struct {
		title string
		items []model.Notification
	}{
		{"Today", m.view.Grouped.Today},
		{"Yesterday", m.view.Grouped.Yesterday},
		{"Older", m.view.Grouped.Older},
	} {
		if len(group.items) == 0 {
			continue
		}
		lines = append(lines, theme.GroupHeaderStyle.Render(group.title))
		for _, n := range group.items {
			if index == m.cursor {
				cursorLine = len(lines)
			}
			lines = append(lines, m.renderItem(n, index == m.cursor))
			index++
		}
	}

	return strings.Join(m.window(lines, cursorLine), "\n")
}

// window clips lines to the available height, keeping the cursor line
// and the tabs visible.
func (m Model) window(lines []string, cursorLine int) []string {
	if m.height <= 1 || len(lines) <= m.height {
		return lines
	}
	body := lines[1:]
	cursorLine--
	visible := m.height - 1

	start := 0
	if cursorLine >= visible {
		start = cursorLine - visible + 1
	}
	end := min(start+visible, len(body))
	return append([]string{lines[0]}, body[start:end]...)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, 3)
	for _, f := range []feed.Filter{feed.FilterAll, feed.FilterUnread, feed.FilterRead} {
		tabs = append(tabs, theme.FilterTabStyle(f == m.view.Filter).Render(f.String()))
	}
	unread := theme.TimeStyle.Render(fmt.Sprintf("  %d unread", m.view.UnreadCount))
	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, unread)...)
}

func (m Model) renderItem(n model.Notification, selected bool) string {
	marker := " "
	if !n.IsRead {
		marker = theme.UnreadMarkerStyle.Render("●")
	}

	var tag string
	if negotiation.Eligible(n) {
		tag = " " + theme.TypeStyle(model.TypeNegotiation).Render("[negotiable]")
	}

	when := theme.TimeStyle.Render(feed.RelativeTime(n.CreatedAt, m.now))
	line := fmt.Sprintf("%s %s %s%s  %s", marker, feed.IconFor(n.Type), n.Message, tag, when)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m Model) emptyText() string {
	switch m.view.Filter {
	case feed.FilterUnread:
		return "You're all caught up."
	case feed.FilterRead:
		return "No read notifications."
	default:
		return "No notifications yet."
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
