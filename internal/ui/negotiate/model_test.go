package negotiate

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/negotiation"
)

var offer = model.Notification{
	ID:            "n-1",
	Type:          model.TypeNegotiation,
	Message:       "Buyer wants to negotiate",
	ReservationID: "res-9",
}

func TestStartPriceRendersContext(t *testing.T) {
	m := New(100, 30)
	m.StartPrice(offer, "40", "marketplace error")

	view := m.View()
	assert.Contains(t, view, "Counter-offer")
	assert.Contains(t, view, "Reservation res-9")
	assert.Contains(t, view, "marketplace error")
	assert.Equal(t, "40", m.fb.price)
}

func TestEscCancels(t *testing.T) {
	m := New(100, 30)
	m.StartReject(offer, "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{NotificationID: "n-1", Mode: ModeReject}, cmd())
}

func TestSubmittingIgnoresInput(t *testing.T) {
	m := New(100, 30)
	m.StartPrice(offer, "40", "")
	m.SetSubmitting(true)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Submitting")
}

func TestIdleFormIsEmpty(t *testing.T) {
	m := New(100, 30)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Empty(t, m.View())
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, validatePrice("12.5"))
	assert.EqualError(t, validatePrice("-1"), negotiation.InvalidPriceMessage)
}
