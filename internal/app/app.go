package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/keys"
	"github.com/nhle/craftnotify/internal/marketplace"
	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/negotiation"
	appsync "github.com/nhle/craftnotify/internal/sync"
	"github.com/nhle/craftnotify/internal/ui"
	"github.com/nhle/craftnotify/internal/ui/command"
	helpview "github.com/nhle/craftnotify/internal/ui/help"
	"github.com/nhle/craftnotify/internal/ui/negotiate"
	"github.com/nhle/craftnotify/internal/ui/notifications"
)

const actionTimeout = 30 * time.Second

// actionResultMsg reports the outcome of a loop call started from the UI.
type actionResultMsg struct {
	action model.ActionKind
	err    error
}

// refreshResultMsg reports the outcome of a user-initiated refetch.
type refreshResultMsg struct {
	err error
}

// negotiationResultMsg reports a finished counter-offer or rejection.
type negotiationResultMsg struct {
	notificationID string
	reject         bool
	err            error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewNegotiate
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model. It routes input to the active view
// and turns view requests into calls on the sync loop.
type Model struct {
	currentView   ViewState
	previousView  ViewState
	layout        ui.Layout
	loop          *appsync.Loop
	logger        *zap.Logger
	keys          *keys.KeyMap
	notifications notifications.Model
	negotiateView negotiate.Model
	helpView      helpview.Model
	commandView   command.Model
	spinner       spinner.Model
	sessions      map[string]*negotiation.Session
	active        model.Notification
	filter        feed.Filter
	clock         func() time.Time
	statusMessage string
	ready         bool
}

// New creates the root model around a sync loop.
func New(loop *appsync.Loop, filter feed.Filter, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := keys.DefaultKeyMap()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		currentView:   ViewList,
		loop:          loop,
		logger:        logger.Named("app"),
		keys:          k,
		notifications: notifications.New(k, 80, 24),
		negotiateView: negotiate.New(80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		spinner:       s,
		sessions:      make(map[string]*negotiation.Session),
		filter:        filter,
		clock:         time.Now,
	}
}

// Init starts the sync loop and the header spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loop.Start(),
		m.spinner.Tick,
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.notifications.SetSize(contentWidth, contentHeight)
		m.negotiateView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case appsync.Event:
		switch msg.Kind {
		case appsync.EventActionFailed:
			m.statusMessage = actionFailureText(msg.Action, msg.Err)
		case appsync.EventSynced:
			if msg.UserInitiated {
				m.statusMessage = ""
			}
		}
		m.refreshView()
		return m, m.loop.WaitForEvent()

	case notifications.RefreshMsg:
		m.statusMessage = ""
		return m, m.refresh()

	case notifications.FilterChangedMsg:
		m.filter = msg.Filter
		m.refreshView()
		return m, nil

	case notifications.MarkReadMsg:
		id := msg.ID
		return m, m.runAction(model.ActionMarkRead, func(ctx context.Context) error {
			return m.loop.MarkRead(ctx, id)
		})

	case notifications.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifications.DeleteMsg:
		id := msg.ID
		return m, m.runAction(model.ActionDelete, func(ctx context.Context) error {
			return m.loop.Delete(ctx, id)
		})

	case notifications.NegotiateMsg:
		return m, m.openNegotiation(msg.Notification, msg.Reject)

	case negotiate.SubmitPriceMsg:
		return m, m.submitPrice(msg.NotificationID, msg.Draft)

	case negotiate.ConfirmRejectMsg:
		return m, m.confirmReject(msg.NotificationID)

	case negotiate.CancelMsg:
		if s, ok := m.sessions[msg.NotificationID]; ok {
			var err error
			if msg.Mode == negotiate.ModeReject {
				err = s.CancelReject()
			} else {
				err = s.CancelEdit()
			}
			if err != nil {
				m.logger.Debug("cancel negotiation", zap.String("id", msg.NotificationID), zap.Error(err))
			}
		}
		m.currentView = ViewList
		return m, nil

	case negotiationResultMsg:
		return m, m.handleNegotiationResult(msg)

	case actionResultMsg:
		// Failures already arrived as loop events.
		return m, nil

	case refreshResultMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Couldn't load notifications: %s (r to retry)", describe(msg.err))
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg.Action)

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			m.loop.Stop()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewList {
				m.loop.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewNegotiate || m.currentView == ViewCommand {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			if m.currentView == ViewNegotiate {
				break
			}
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "esc":
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewNegotiate:
		m.negotiateView, cmd = m.negotiateView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// refreshView rebuilds the list from the loop's current collection.
func (m *Model) refreshView() {
	m.notifications.SetView(m.loop.View(m.filter), m.clock())
}

func (m Model) refresh() tea.Cmd {
	loop := m.loop
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return refreshResultMsg{err: loop.Refresh(ctx)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	loop := m.loop
	return m.runAction(model.ActionMarkAllRead, loop.MarkAllRead)
}

func (m Model) runAction(kind model.ActionKind, call func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: kind, err: call(ctx)}
	}
}

// session returns the negotiation session for n, opening one if needed.
func (m *Model) session(n model.Notification) (*negotiation.Session, error) {
	if s, ok := m.sessions[n.ID]; ok {
		return s, nil
	}
	s, err := negotiation.NewSession(n)
	if err != nil {
		return nil, err
	}
	m.sessions[n.ID] = s
	return s, nil
}

func (m *Model) openNegotiation(n model.Notification, reject bool) tea.Cmd {
	s, err := m.session(n)
	if err != nil {
		m.statusMessage = err.Error()
		return nil
	}

	errText := ""
	if serr := s.Err(); serr != nil {
		errText = describe(serr)
	}

	if reject {
		if err := s.BeginReject(); err != nil {
			m.logger.Debug("begin reject", zap.String("id", n.ID), zap.Error(err))
			return nil
		}
		m.active = n
		m.currentView = ViewNegotiate
		return m.negotiateView.StartReject(n, errText)
	}

	if err := s.BeginEdit(); err != nil {
		m.logger.Debug("begin edit", zap.String("id", n.ID), zap.Error(err))
		return nil
	}
	m.active = n
	m.currentView = ViewNegotiate
	return m.negotiateView.StartPrice(n, s.Draft(), errText)
}

func (m *Model) submitPrice(id, draft string) tea.Cmd {
	s, ok := m.sessions[id]
	if !ok {
		m.currentView = ViewList
		return nil
	}
	if err := s.SetDraft(draft); err != nil {
		m.logger.Debug("set draft", zap.String("id", id), zap.Error(err))
		return nil
	}

	m.negotiateView.SetSubmitting(true)
	neg := negotiation.Negotiator(m.loop)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return negotiationResultMsg{notificationID: id, err: s.Submit(ctx, neg)}
	}
}

func (m *Model) confirmReject(id string) tea.Cmd {
	s, ok := m.sessions[id]
	if !ok {
		m.currentView = ViewList
		return nil
	}

	m.negotiateView.SetSubmitting(true)
	neg := negotiation.Negotiator(m.loop)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return negotiationResultMsg{notificationID: id, reject: true, err: s.ConfirmReject(ctx, neg)}
	}
}

func (m *Model) handleNegotiationResult(msg negotiationResultMsg) tea.Cmd {
	s := m.sessions[msg.notificationID]

	if msg.err == nil {
		delete(m.sessions, msg.notificationID)
		m.currentView = ViewList
		if msg.reject {
			m.statusMessage = "Negotiation rejected"
		} else {
			m.statusMessage = "Counter-offer sent"
		}
		return nil
	}

	// A failed counter-offer goes back to the form with the draft kept.
	if !msg.reject && s != nil && s.State() == negotiation.StateEditingPrice {
		return m.negotiateView.StartPrice(m.active, s.Draft(), describe(msg.err))
	}

	m.currentView = ViewList
	m.statusMessage = describe(msg.err)
	return nil
}

// executeCommand handles an action from the command palette.
func (m *Model) executeCommand(action command.Action) tea.Cmd {
	switch action {
	case command.ActionRefresh:
		m.statusMessage = ""
		return m.refresh()
	case command.ActionFilterAll:
		m.filter = feed.FilterAll
	case command.ActionFilterUnread:
		m.filter = feed.FilterUnread
	case command.ActionFilterRead:
		m.filter = feed.FilterRead
	case command.ActionMarkAllRead:
		return m.markAllRead()
	case command.ActionQuit:
		m.loop.Stop()
		return tea.Quit
	default:
		m.statusMessage = "Unknown command"
		return nil
	}
	m.refreshView()
	return nil
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Craft Notifications"
	if badge := m.loop.UnreadBadge(); badge > 0 {
		headerTitle = fmt.Sprintf("Craft Notifications [%d new]", badge)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	content := m.renderContent()

	var statusBar string
	if msg := m.errorText(); msg != "" && m.currentView == ViewList {
		statusBar = m.layout.RenderErrorBar(msg)
	} else {
		statusBar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.notifications.View()
	case ViewNegotiate:
		return m.negotiateView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the loop's fetch state.
func (m Model) syncStatus() string {
	switch m.loop.Phase() {
	case appsync.PhaseFetching:
		return m.spinner.View() + " syncing"
	case appsync.PhaseSettled:
		if m.loop.LastError() != nil {
			return "⚠ offline"
		}
		return "synced"
	default:
		return "starting"
	}
}

// errorText is the message shown in the error bar, if any.
func (m Model) errorText() string {
	if m.statusMessage != "" {
		return m.statusMessage
	}
	if err := m.loop.LastError(); err != nil {
		return fmt.Sprintf("Couldn't load notifications: %s (r to retry)", describe(err))
	}
	return ""
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewNegotiate:
		return "enter submit | esc cancel"
	default:
		return "q quit | ? help | enter read | d delete | p offer | x reject | f filter"
	}
}

// describe turns an error into a short user-facing sentence.
func describe(err error) string {
	var verr *negotiation.ValidationError
	var merr *marketplace.Error
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case marketplace.IsAuthError(err):
		return "not signed in to the marketplace"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case !errors.As(err, &merr):
		return err.Error()
	case marketplace.IsNotFound(err):
		return "no longer available"
	case merr.Kind == marketplace.KindValidation:
		return "rejected by the marketplace"
	case merr.Kind == marketplace.KindNetwork:
		return "network unavailable"
	default:
		return "marketplace error"
	}
}

func actionFailureText(action model.ActionKind, err error) string {
	what := "Action"
	switch action {
	case model.ActionMarkRead:
		what = "Mark as read"
	case model.ActionMarkAllRead:
		what = "Mark all read"
	case model.ActionDelete:
		what = "Delete"
	case model.ActionUpdatePrice:
		what = "Counter-offer"
	case model.ActionRejectNegotiation:
		what = "Reject"
	}
	if err == nil {
		return what + " failed"
	}
	return fmt.Sprintf("%s failed: %s", what, describe(err))
}
