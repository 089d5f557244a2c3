package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/marketplace"
	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/negotiation"
	appsync "github.com/nhle/craftnotify/internal/sync"
	"github.com/nhle/craftnotify/internal/ui/command"
	"github.com/nhle/craftnotify/internal/ui/negotiate"
	"github.com/nhle/craftnotify/internal/ui/notifications"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type stubTransport struct {
	items    []model.Notification
	listErr  error
	priceErr error
	prices   []float64
	rejected []string
}

func (s *stubTransport) List(ctx context.Context) ([]model.Notification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *stubTransport) MarkRead(ctx context.Context, id string) error { return nil }
func (s *stubTransport) MarkAllRead(ctx context.Context) error         { return nil }
func (s *stubTransport) Delete(ctx context.Context, id string) error   { return nil }

func (s *stubTransport) UpdateNegotiationPrice(ctx context.Context, reservationID string, price float64) error {
	s.prices = append(s.prices, price)
	return s.priceErr
}

func (s *stubTransport) RejectNegotiation(ctx context.Context, reservationID string) error {
	s.rejected = append(s.rejected, reservationID)
	return nil
}

func sampleFeed() []model.Notification {
	return []model.Notification{
		{ID: "offer", Type: model.TypeNegotiation, Message: "Buyer wants to negotiate", CreatedAt: now.Add(-time.Minute), ReservationID: "res-1"},
		{ID: "booking", Type: model.TypeBooking, Message: "New booking", CreatedAt: now.Add(-2 * time.Hour)},
	}
}

func newTestModel(t *testing.T, tr *stubTransport) Model {
	t.Helper()

	loop := appsync.New(tr, appsync.Options{
		ReconcileDelay: time.Hour,
		Clock:          func() time.Time { return now },
	})
	t.Cleanup(loop.Stop)

	m := New(loop, feed.FilterAll, nil)
	m.clock = func() time.Time { return now }
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	require.True(t, ok)
	return mm, cmd
}

// synced refreshes the loop and delivers the resulting event.
func synced(t *testing.T, m Model) Model {
	t.Helper()
	require.NoError(t, m.loop.Refresh(context.Background()))
	m, _ = update(t, m, appsync.Event{Kind: appsync.EventSynced})
	return m
}

func TestSyncedEventUpdatesListAndBadge(t *testing.T) {
	m := synced(t, newTestModel(t, &stubTransport{items: sampleFeed()}))

	view := m.View()
	assert.Contains(t, view, "Craft Notifications [2 new]")
	assert.Contains(t, view, "Buyer wants to negotiate")
	assert.Contains(t, view, "New booking")
}

func TestMarkReadLowersBadge(t *testing.T) {
	m := synced(t, newTestModel(t, &stubTransport{items: sampleFeed()}))

	m, cmd := update(t, m, notifications.MarkReadMsg{ID: "booking"})
	require.NotNil(t, cmd)
	result, ok := cmd().(actionResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)

	m, _ = update(t, m, appsync.Event{Kind: appsync.EventChanged})
	assert.Contains(t, m.View(), "Craft Notifications [1 new]")
}

func TestRefreshFailureOffersRetry(t *testing.T) {
	tr := &stubTransport{listErr: &marketplace.Error{Op: "list", Kind: marketplace.KindNetwork, Err: errors.New("dial tcp")}}
	m := newTestModel(t, tr)

	m, cmd := update(t, m, notifications.RefreshMsg{})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, "Couldn't load notifications: network unavailable (r to retry)", m.errorText())
	assert.Contains(t, m.View(), "Craft Notifications")
	assert.NotContains(t, m.View(), "new]")
}

func TestCounterOfferSuccess(t *testing.T) {
	tr := &stubTransport{items: sampleFeed()}
	m := synced(t, newTestModel(t, tr))
	offer := sampleFeed()[0]

	m, _ = update(t, m, notifications.NegotiateMsg{Notification: offer})
	require.Equal(t, ViewNegotiate, m.currentView)
	assert.Equal(t, negotiation.StateEditingPrice, m.sessions["offer"].State())

	m, cmd := update(t, m, negotiate.SubmitPriceMsg{NotificationID: "offer", Draft: "45.50"})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, []float64{45.5}, tr.prices)
	assert.Equal(t, ViewList, m.currentView)
	assert.Equal(t, "Counter-offer sent", m.statusMessage)
	assert.NotContains(t, m.sessions, "offer")
}

func TestCounterOfferInvalidDraftStaysOnForm(t *testing.T) {
	tr := &stubTransport{items: sampleFeed()}
	m := synced(t, newTestModel(t, tr))

	m, _ = update(t, m, notifications.NegotiateMsg{Notification: sampleFeed()[0]})
	m, cmd := update(t, m, negotiate.SubmitPriceMsg{NotificationID: "offer", Draft: "0"})
	m, _ = update(t, m, cmd())

	assert.Empty(t, tr.prices)
	assert.Equal(t, ViewNegotiate, m.currentView)
	assert.Equal(t, negotiation.InvalidPriceMessage, m.sessions["offer"].Validation())
	assert.Contains(t, m.View(), negotiation.InvalidPriceMessage)
}

func TestCounterOfferFailureKeepsDraft(t *testing.T) {
	tr := &stubTransport{
		items:    sampleFeed(),
		priceErr: &marketplace.Error{Op: "update price", Kind: marketplace.KindServer, StatusCode: 500, Err: errors.New("boom")},
	}
	m := synced(t, newTestModel(t, tr))

	m, _ = update(t, m, notifications.NegotiateMsg{Notification: sampleFeed()[0]})
	m, cmd := update(t, m, negotiate.SubmitPriceMsg{NotificationID: "offer", Draft: "45"})
	m, _ = update(t, m, cmd())

	s := m.sessions["offer"]
	require.NotNil(t, s)
	assert.Equal(t, negotiation.StateEditingPrice, s.State())
	assert.Equal(t, "45", s.Draft())
	assert.Equal(t, ViewNegotiate, m.currentView)
	assert.Contains(t, m.View(), "marketplace error")
}

func TestRejectCancelThenConfirm(t *testing.T) {
	tr := &stubTransport{items: sampleFeed()}
	m := synced(t, newTestModel(t, tr))
	offer := sampleFeed()[0]

	m, _ = update(t, m, notifications.NegotiateMsg{Notification: offer, Reject: true})
	require.Equal(t, ViewNegotiate, m.currentView)
	assert.Equal(t, negotiation.StateRejectConfirming, m.sessions["offer"].State())

	m, _ = update(t, m, negotiate.CancelMsg{NotificationID: "offer", Mode: negotiate.ModeReject})
	assert.Equal(t, ViewList, m.currentView)
	assert.Equal(t, negotiation.StateViewing, m.sessions["offer"].State())
	assert.Empty(t, tr.rejected)

	m, _ = update(t, m, notifications.NegotiateMsg{Notification: offer, Reject: true})
	m, cmd := update(t, m, negotiate.ConfirmRejectMsg{NotificationID: "offer"})
	m, _ = update(t, m, cmd())

	assert.Equal(t, []string{"res-1"}, tr.rejected)
	assert.Equal(t, "Negotiation rejected", m.statusMessage)
}

func TestCommandPaletteFilters(t *testing.T) {
	m := synced(t, newTestModel(t, &stubTransport{items: sampleFeed()}))

	m, _ = update(t, m, command.CommandMsg{Input: "read", Action: command.ActionFilterRead})
	assert.Equal(t, feed.FilterRead, m.filter)
	assert.Equal(t, feed.FilterRead, m.notifications.Filter())

	m, _ = update(t, m, command.CommandMsg{Input: "nope", Action: command.ActionUnknown})
	assert.Equal(t, "Unknown command", m.statusMessage)
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, &stubTransport{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, ViewHelp, m.currentView)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, m.currentView)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &negotiation.ValidationError{Input: "x", Message: negotiation.InvalidPriceMessage}, negotiation.InvalidPriceMessage},
		{"auth", &marketplace.AuthError{BaseURL: "https://api", Message: "expired"}, "not signed in to the marketplace"},
		{"not found", &marketplace.Error{Op: "delete", Kind: marketplace.KindServer, StatusCode: 404, Err: errors.New("gone")}, "no longer available"},
		{"rejected", &marketplace.Error{Op: "price", Kind: marketplace.KindValidation, StatusCode: 422, Err: errors.New("bad")}, "rejected by the marketplace"},
		{"timeout", context.DeadlineExceeded, "request timed out"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, describe(tc.err))
		})
	}
}
