package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/craftnotify/internal/theme"
)

// Action is what a palette command asks the application to do.
type Action int

const (
	ActionUnknown Action = iota
	ActionRefresh
	ActionFilterAll
	ActionFilterUnread
	ActionFilterRead
	ActionMarkAllRead
	ActionQuit
)

// Command is a palette entry and its accepted spellings.
type Command struct {
	Name    string
	Aliases []string
	Action  Action
}

// Commands lists every palette command in help order.
var Commands = []Command{
	{Name: "refresh", Aliases: []string{"sync", "reload"}, Action: ActionRefresh},
	{Name: "all", Aliases: []string{"show all"}, Action: ActionFilterAll},
	{Name: "unread", Aliases: []string{"show unread"}, Action: ActionFilterUnread},
	{Name: "read", Aliases: []string{"show read"}, Action: ActionFilterRead},
	{Name: "mark all read", Aliases: []string{"read all"}, Action: ActionMarkAllRead},
	{Name: "quit", Aliases: []string{"q", "exit"}, Action: ActionQuit},
}

// Parse resolves palette input to an Action. Matching ignores case and
// repeated spaces.
func Parse(input string) Action {
	normalized := strings.Join(strings.Fields(strings.ToLower(input)), " ")
	for _, c := range Commands {
		if normalized == c.Name {
			return c.Action
		}
		for _, alias := range c.Aliases {
			if normalized == alias {
				return c.Action
			}
		}
	}
	return ActionUnknown
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Input  string
	Action Action
}

// Model is the command palette view.
type Model struct {
	input textinput.Model
	width int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, unread, mark all read, quit..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input: ti,
		width: width,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			return CommandMsg{Input: text, Action: Parse(text)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Command Palette"),
		m.input.View(),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
