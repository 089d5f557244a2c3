package negotiate

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/negotiation"
	"github.com/nhle/craftnotify/internal/theme"
)

// Mode selects which form is shown.
type Mode int

const (
	ModePrice Mode = iota
	ModeReject
)

// SubmitPriceMsg is dispatched when the price form completes.
type SubmitPriceMsg struct {
	NotificationID string
	Draft          string
}

// ConfirmRejectMsg is dispatched when the user confirmed the rejection.
type ConfirmRejectMsg struct {
	NotificationID string
}

// CancelMsg is dispatched when the user leaves the form without acting.
type CancelMsg struct {
	NotificationID string
	Mode           Mode
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	price   string
	confirm bool
}

// Model is the Bubble Tea model for the counter-offer and reject forms.
type Model struct {
	form         *huh.Form
	fb           *formBindings
	mode         Mode
	notification model.Notification
	errText      string
	submitting   bool
	width        int
	height       int
}

// New creates an idle negotiation form.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartPrice opens the counter-offer form prefilled with draft. errText
// is shown above the form, e.g. the failure of the previous attempt.
func (m *Model) StartPrice(n model.Notification, draft, errText string) tea.Cmd {
	m.mode = ModePrice
	m.notification = n
	m.errText = errText
	m.submitting = false
	m.fb.price = draft
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Counter-offer price").
				Description(n.Message).
				Placeholder("e.g. 45.00").
				Value(&m.fb.price).
				Validate(validatePrice),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
	return m.form.Init()
}

// StartReject opens the reject confirmation.
func (m *Model) StartReject(n model.Notification, errText string) tea.Cmd {
	m.mode = ModeReject
	m.notification = n
	m.errText = errText
	m.submitting = false
	m.fb.confirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reject this negotiation?").
				Description(n.Message).
				Affirmative("Reject").
				Negative("Keep").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
	return m.form.Init()
}

// SetSubmitting shows the in-flight state instead of the form.
func (m *Model) SetSubmitting(submitting bool) {
	m.submitting = submitting
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	id := m.notification.ID
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		mode := m.mode
		return m, func() tea.Msg { return CancelMsg{NotificationID: id, Mode: mode} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if m.mode == ModePrice {
			draft := m.fb.price
			return m, func() tea.Msg { return SubmitPriceMsg{NotificationID: id, Draft: draft} }
		}
		if m.fb.confirm {
			return m, func() tea.Msg { return ConfirmRejectMsg{NotificationID: id} }
		}
		mode := m.mode
		return m, func() tea.Msg { return CancelMsg{NotificationID: id, Mode: mode} }
	case huh.StateAborted:
		mode := m.mode
		return m, func() tea.Msg { return CancelMsg{NotificationID: id, Mode: mode} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Counter-offer"
	if m.mode == ModeReject {
		titleText = "Reject negotiation"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{
		titleStyle.Render(titleText),
		theme.TimeStyle.Render(fmt.Sprintf("Reservation %s", m.notification.ReservationID)),
	}
	if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	}
	if m.submitting {
		parts = append(parts, "", theme.HelpStyle.Render("Submitting…"))
	} else {
		parts = append(parts, "", m.form.View())
	}

	return theme.PanelStyle.
		Width(m.formWidth()).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

// validatePrice keeps the form open on input the session would reject.
func validatePrice(s string) error {
	_, err := negotiation.ParsePrice(s)
	return err
}
