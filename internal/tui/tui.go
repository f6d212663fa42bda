// Package tui provides a Bubble Tea terminal user interface for xbst.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/xbst-tools/xbst/internal/config"
	"github.com/xbst-tools/xbst/internal/convert"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9BE564")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	soundtrackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is how many progress lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateScanning
	StateTranscoding
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   convert.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logger    zerolog.Logger
	logs      []LogEntry
	names     []string
	summary   convert.Summary
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	manager *convert.Manager
	events  chan convert.ProgressEvent

	totalFiles      int32
	transcodedFiles int32

	// Options
	sortEntries       bool
	filterBeforeChunk bool
	verbose           bool

	width  int
	height int
}

// NewModel creates a new TUI model. settings provides the defaults shown in
// the form; the input directory is edited in place.
func NewModel(settings *config.Settings, logger zerolog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "./music"
	ti.SetValue(settings.InputDir)
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#9BE564"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:             StateInput,
		textInput:         ti,
		spinner:           sp,
		progress:          prog,
		settings:          settings,
		logger:            logger,
		logs:              make([]LogEntry, 0),
		ctx:               ctx,
		cancel:            cancel,
		sortEntries:       settings.SortEntries,
		filterBeforeChunk: settings.FilterBeforeChunk,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one manager progress event.
	ProgressMsg struct {
		Event convert.ProgressEvent
	}

	// ScanDoneMsg is sent once the input is scanned and ST.DB is written.
	ScanDoneMsg struct {
		Names   []string
		Summary convert.Summary
		Err     error
	}

	// TranscodeDoneMsg is sent when all songs are transcoded.
	TranscodeDoneMsg struct {
		Files int32
		Total int32
		Err   error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateScanning || m.state == StateTranscoding {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateScanning
				m.manager, m.events = m.newManager()
				return m, tea.Batch(m.scan(), m.waitForEvent(), m.spinner.Tick)
			}

		case "ctrl+s":
			if m.state == StateInput {
				m.sortEntries = !m.sortEntries
				return m, nil
			}

		case "ctrl+f":
			if m.state == StateInput {
				m.filterBeforeChunk = !m.filterBeforeChunk
				return m, nil
			}

		case "ctrl+v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.logs = nil
				m.names = nil
				m.summary = convert.Summary{}
				m.err = nil
				m.transcodedFiles = 0
				m.totalFiles = 0
				m.manager = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				return m, m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.waitForEvent())
		if msg.Event.Level == convert.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case ScanDoneMsg:
		if m.state != StateScanning {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.names = msg.Names
			m.summary = msg.Summary
			m.totalFiles = int32(msg.Summary.Songs)
			m.state = StateTranscoding
			cmds = append(cmds, m.transcode(), m.tickProgress())
		}

	case TranscodeDoneMsg:
		m.transcodedFiles = msg.Files
		m.totalFiles = msg.Total
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateTranscoding {
			files, total := m.manager.GetProgress()
			m.transcodedFiles = files
			m.totalFiles = total

			var percent float64
			if total > 0 {
				percent = float64(files) / float64(total)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♫ xbst"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Convert soundtrack folders to ST.DB"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateScanning:
		b.WriteString(m.viewScanning())
	case StateTranscoding:
		b.WriteString(m.viewTranscoding())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Music folder:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Sort folders by name (ctrl+s)\n", checkbox(m.sortEntries)))
	b.WriteString(fmt.Sprintf("  %s Skip subfolders before grouping (ctrl+f)\n", checkbox(m.filterBeforeChunk)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s  Bitrate: %d kbps", m.settings.OutputDir, m.settings.Bitrate)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewScanning() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Scanning soundtracks..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewTranscoding() string {
	var b strings.Builder

	if len(m.names) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d soundtrack(s):", len(m.names))))
		b.WriteString("\n")
		for _, name := range m.names {
			b.WriteString(soundtrackStyle.Render(fmt.Sprintf("  ♪ %s", name)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	var percent float64
	if m.totalFiles > 0 {
		percent = float64(m.transcodedFiles) / float64(m.totalFiles)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Songs: %d/%d", m.transcodedFiles, m.totalFiles)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	box := boxStyle.Render(fmt.Sprintf(
		"✓ Conversion Complete!\n\n"+
			"Soundtracks: %d\n"+
			"Songs: %d\n"+
			"Duration: %s\n"+
			"Database: %s",
		m.summary.Soundtracks,
		m.transcodedFiles,
		m.summary.TotalDuration.Truncate(time.Second),
		m.summary.DatabasePath,
	))
	return box
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case convert.LevelError:
			style = errorStyle
			prefix = "✗"
		case convert.LevelWarning:
			style = warningStyle
			prefix = "!"
		case convert.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case convert.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+s: sort • ctrl+f: filter • ctrl+v: verbose • esc: quit"
	case StateScanning, StateTranscoding:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new conversion • q: quit"
	}
	return ""
}

// newManager creates a manager for the current form values. Progress events
// are forwarded to a channel drained by waitForEvent; events are dropped
// when the UI falls behind.
func (m Model) newManager() (*convert.Manager, chan convert.ProgressEvent) {
	settings := *m.settings
	settings.InputDir = strings.TrimSpace(m.textInput.Value())
	settings.SortEntries = m.sortEntries
	settings.FilterBeforeChunk = m.filterBeforeChunk

	events := make(chan convert.ProgressEvent, 64)
	manager := convert.NewManager(&settings, func(event convert.ProgressEvent) {
		select {
		case events <- event:
		default:
		}
	}, convert.WithLogger(m.logger))
	return manager, events
}

// waitForEvent delivers the next progress event as a ProgressMsg.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// scan runs the scan and writes ST.DB.
func (m Model) scan() tea.Cmd {
	manager, ctx := m.manager, m.ctx
	return func() tea.Msg {
		if err := manager.Scan(ctx); err != nil {
			return ScanDoneMsg{Err: err}
		}
		if _, err := manager.WriteDatabase(); err != nil {
			return ScanDoneMsg{Err: err}
		}
		return ScanDoneMsg{
			Names:   manager.GetSoundtrackNames(),
			Summary: manager.Summary(),
		}
	}
}

// transcode runs every transcode in the background.
func (m Model) transcode() tea.Cmd {
	manager, ctx := m.manager, m.ctx
	return func() tea.Msg {
		if manager == nil {
			return TranscodeDoneMsg{Err: fmt.Errorf("no manager")}
		}

		err := manager.Transcode(ctx)
		files, total := manager.GetProgress()
		return TranscodeDoneMsg{Files: files, Total: total, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, logger zerolog.Logger) error {
	p := tea.NewProgram(NewModel(settings, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
