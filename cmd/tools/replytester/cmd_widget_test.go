package main

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	modelchat "github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	"github.com/pixelforge/studio/backend/internal/service/chat"
)

func newTestWidget(t *testing.T) widgetModel {
	t.Helper()
	resolver := chat.NewResolver(nil, fallback.Default(), nil)
	svc, err := chat.NewService(persona.NewMemoryStore(persona.Seed()), resolver, 2, "")
	require.NoError(t, err)
	snap, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	session, err := svc.Session(snap.ID)
	require.NoError(t, err)
	return newWidgetModel(context.Background(), session)
}

func press(m widgetModel, msg tea.KeyMsg) (widgetModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(widgetModel), cmd
}

func TestWidgetToggleAppendsGreetingOnce(t *testing.T) {
	m := newTestWidget(t)
	assert.Contains(t, m.View(), "Chat is closed")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, m.session.IsOpen())
	require.Len(t, m.session.Transcript(), 1)
	assert.Equal(t, modelchat.SenderBot, m.session.Transcript()[0].Sender)

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.False(t, m.session.IsOpen())
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Len(t, m.session.Transcript(), 1)
}

func TestWidgetIgnoresEnterWhileClosedOrEmpty(t *testing.T) {
	m := newTestWidget(t)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.resolving)

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m.input.SetValue("   ")
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.resolving)
}

func TestWidgetSubmitDisablesInputUntilReply(t *testing.T) {
	m := newTestWidget(t)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})

	m.input.SetValue("What is your pricing?")
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.resolving)
	assert.False(t, m.input.Focused())
	assert.Empty(t, m.input.Value())

	// A second enter while resolving is swallowed.
	m.input.SetValue("again")
	_, second := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, second)

	msg := m.submitCmd("What is your pricing?")()
	reply, ok := msg.(replyMsg)
	require.True(t, ok)
	require.NoError(t, reply.err)
	assert.Equal(t, fallback.Default().Reply("pricing"), reply.reply.Text)

	next, _ := m.Update(reply)
	m = next.(widgetModel)
	assert.False(t, m.resolving)
	assert.True(t, m.input.Focused())
	assert.Contains(t, m.View(), "Our pricing varies")
}
