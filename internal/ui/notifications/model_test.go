package notifications

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/keys"
	"github.com/nhle/craftnotify/internal/model"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sample() []model.Notification {
	offer := model.Notification{ID: "offer", Type: "Message", Message: "Can we negotiate?", CreatedAt: now.Add(-time.Minute), ReservationID: "r1"}
	booking := model.Notification{ID: "booking", Type: "Booking", Message: "New booking", CreatedAt: now.Add(-26 * time.Hour)}
	old := model.Notification{ID: "old", Type: "Review", Message: "5 stars", CreatedAt: now.Add(-10 * 24 * time.Hour)}
	old.SetRead(true)
	return []model.Notification{booking, old, offer}
}

func newModel(t *testing.T, filter feed.Filter) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetView(feed.BuildView(sample(), filter, now), now)
	return m
}

func TestModel_NavigationAndActions(t *testing.T) {
	m := newModel(t, feed.FilterAll)

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "offer", n.ID, "newest first")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "offer"}, cmd())

	_, cmd = m.Update(runes("p"))
	require.NotNil(t, cmd)
	assert.Equal(t, "offer", cmd().(NegotiateMsg).Notification.ID)

	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("j"))
	m, _ = m.Update(runes("j"))
	n, _ = m.Selected()
	assert.Equal(t, "old", n.ID, "cursor stops at the last entry")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "already read")

	_, cmd = m.Update(runes("x"))
	assert.Nil(t, cmd, "not negotiable")

	_, cmd = m.Update(runes("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, DeleteMsg{ID: "old"}, cmd())
}

func TestModel_GlobalListKeys(t *testing.T) {
	m := newModel(t, feed.FilterAll)

	_, cmd := m.Update(runes("f"))
	require.NotNil(t, cmd)
	assert.Equal(t, FilterChangedMsg{Filter: feed.FilterUnread}, cmd())

	_, cmd = m.Update(runes("A"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkAllReadMsg{}, cmd())

	_, cmd = m.Update(runes("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, RefreshMsg{}, cmd())
}

func TestModel_SetViewKeepsSelection(t *testing.T) {
	m := newModel(t, feed.FilterAll)
	m, _ = m.Update(runes("j"))
	n, _ := m.Selected()
	require.Equal(t, "booking", n.ID)

	remaining := sample()[:2]
	m.SetView(feed.BuildView(remaining, feed.FilterAll, now), now)

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "booking", n.ID)

	m.SetView(feed.BuildView(nil, feed.FilterAll, now), now)
	_, ok = m.Selected()
	assert.False(t, ok)
}

func TestModel_View(t *testing.T) {
	m := newModel(t, feed.FilterAll)
	out := m.View()

	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "Yesterday")
	assert.Contains(t, out, "Older")
	assert.Contains(t, out, "Can we negotiate?")
	assert.Contains(t, out, "[negotiable]")
	assert.Contains(t, out, "1m ago")
	assert.Contains(t, out, "2 unread")

	empty := newModel(t, feed.FilterRead)
	empty.SetView(feed.BuildView(nil, feed.FilterUnread, now), now)
	assert.Contains(t, empty.View(), "all caught up")
}
