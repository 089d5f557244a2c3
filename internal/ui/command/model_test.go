package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]Action{
		"refresh":       ActionRefresh,
		"  SYNC ":       ActionRefresh,
		"unread":        ActionFilterUnread,
		"show   read":   ActionFilterRead,
		"all":           ActionFilterAll,
		"Mark All Read": ActionMarkAllRead,
		"q":             ActionQuit,
		"configure":     ActionUnknown,
		"mark all":      ActionUnknown,
	}

	for input, want := range tests {
		assert.Equal(t, want, Parse(input), input)
	}
}

func TestModel_EnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	for _, r := range "unread" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(CommandMsg)
	require.True(t, ok)
	assert.Equal(t, "unread", msg.Input)
	assert.Equal(t, ActionFilterUnread, msg.Action)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "empty input emits nothing")
}
