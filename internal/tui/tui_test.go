package tui

import (
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbst-tools/xbst/internal/config"
	"github.com/xbst-tools/xbst/internal/convert"
)

func newTestModel() Model {
	settings := config.DefaultSettings()
	settings.InputDir = "/srv/music"
	return NewModel(settings, zerolog.Nop())
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func TestNewModel(t *testing.T) {
	m := newTestModel()
	assert.Equal(t, StateInput, m.state)
	assert.Equal(t, "/srv/music", m.textInput.Value())
	assert.Contains(t, m.View(), "Music folder:")
	assert.Contains(t, m.View(), "Bitrate: 128 kbps")
}

func TestUpdate_ToggleOptions(t *testing.T) {
	m := newTestModel()
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlV})

	assert.True(t, m.sortEntries)
	assert.True(t, m.filterBeforeChunk)
	assert.True(t, m.verbose)
	assert.Contains(t, m.View(), "[x] Sort folders by name")
}

func TestUpdate_EscQuitsFromInput(t *testing.T) {
	_, cmd := newTestModel().Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestUpdate_ProgressLogs(t *testing.T) {
	m := newTestModel()
	m.state = StateScanning

	m = update(t, m, ProgressMsg{Event: convert.ProgressEvent{Message: "hidden", Level: convert.LevelVerbose}})
	assert.Empty(t, m.logs)

	for i := 0; i < maxLogs+5; i++ {
		m = update(t, m, ProgressMsg{Event: convert.ProgressEvent{Message: fmt.Sprintf("line %d", i), Level: convert.LevelInfo}})
	}
	require.Len(t, m.logs, maxLogs)
	assert.Equal(t, "line 14", m.logs[maxLogs-1].Message)
	assert.Contains(t, m.View(), "line 14")
}

func TestUpdate_ScanFailure(t *testing.T) {
	m := newTestModel()
	m.state = StateScanning

	m = update(t, m, ScanDoneMsg{Err: errors.New("no music files found")})
	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), "no music files found")
}

func TestUpdate_TranscodeComplete(t *testing.T) {
	m := newTestModel()
	m.state = StateTranscoding
	m.summary = convert.Summary{Soundtracks: 2, Songs: 9, DatabasePath: "output/ST.DB"}

	m = update(t, m, TranscodeDoneMsg{Files: 9, Total: 9})
	assert.Equal(t, StateComplete, m.state)
	view := m.View()
	assert.Contains(t, view, "Conversion Complete")
	assert.Contains(t, view, "Songs: 9")
	assert.Contains(t, view, "output/ST.DB")
}

func TestUpdate_ResetAfterError(t *testing.T) {
	m := newTestModel()
	m.state = StateError
	m.err = errors.New("boom")
	m.logs = []LogEntry{{Message: "old"}}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, StateInput, m.state)
	assert.Nil(t, m.err)
	assert.Empty(t, m.logs)
	assert.Equal(t, "/srv/music", m.textInput.Value())
}
