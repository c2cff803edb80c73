// Package tui provides a terminal user interface for td3pattern
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/td3pattern/pkg/converter"
	"github.com/james-see/td3pattern/pkg/converter/devices"
)

// Acid-inspired color scheme (303/acid aesthetic)
var (
	// Primary colors - acid green and silver
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
	StateViewer
)

// MenuItem represents a menu option. An item without a target format opens
// the pattern viewer instead of converting.
type MenuItem struct {
	Title       string
	Description string
	From        converter.Format
	To          converter.Format
	exit        bool
}

var menuItems = []MenuItem{
	{Title: "SYX → TXT", Description: "Turn a pattern dump into editable text", From: converter.FormatSyx, To: converter.FormatText},
	{Title: "TXT → SYX", Description: "Build a pattern dump from a text file", From: converter.FormatText, To: converter.FormatSyx},
	{Title: "SYX → MIDI", Description: "Render a pattern dump as a one bar MIDI file", From: converter.FormatSyx, To: converter.FormatMIDI},
	{Title: "TXT → MIDI", Description: "Render a text pattern as a one bar MIDI file", From: converter.FormatText, To: converter.FormatMIDI},
	{Title: "MIDI → TXT", Description: "Quantize the first bar of a MIDI file to a text pattern", From: converter.FormatMIDI, To: converter.FormatText},
	{Title: "MIDI → SYX", Description: "Quantize the first bar of a MIDI file to a pattern dump", From: converter.FormatMIDI, To: converter.FormatSyx},
	{Title: "View pattern", Description: "Show the steps of a .syx, text or MIDI pattern"},
	{Title: "Exit", Description: "Exit the application", exit: true},
}

// allowedTypes lists the file picker extensions for an input format
func allowedTypes(f converter.Format) []string {
	switch f {
	case converter.FormatMIDI:
		return []string{".mid", ".midi"}
	case converter.FormatSyx:
		return []string{".syx"}
	case converter.FormatText:
		return []string{".txt", ".td3"}
	default:
		return []string{".syx", ".txt", ".td3", ".mid", ".midi"}
	}
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	conversion   MenuItem
	slot         converter.Slot
	pattern      *converter.Pattern
	err          error
	width        int
	height       int
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputFile string
	err        error
}

// patternLoadedMsg carries a pattern opened for viewing
type patternLoadedMsg struct {
	pattern *converter.Pattern
	err     error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model. Dumps built from text or MIDI are addressed to slot.
func New(slot converter.Slot) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = allowedTypes(converter.FormatUnknown)
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		slot:       slot,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			if m.conversion.To == "" {
				return m, m.loadPattern()
			}
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult, StateViewer:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.err = msg.err
		return m, nil

	case patternLoadedMsg:
		m.pattern = msg.pattern
		m.err = msg.err
		m.state = StateViewer
		if msg.err != nil {
			m.state = StateResult
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		item := menuItems[m.menuIndex]
		if item.exit {
			return m, tea.Quit
		}
		m.conversion = item
		m.state = StateFilePicker

		// Set file picker filter based on input format
		m.filePicker.AllowedTypes = allowedTypes(item.From)

		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.pattern = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performConversion() tea.Cmd {
	conv := converter.New(devices.NewTD3())
	conv.SetSlot(m.slot)
	input, item := m.selectedFile, m.conversion

	return func() tea.Msg {
		data, err := os.ReadFile(input)
		if err != nil {
			return conversionDoneMsg{err: err}
		}

		result, err := conv.Convert(data, item.From, item.To)
		if err != nil {
			return conversionDoneMsg{err: err}
		}

		// Generate output filename
		outputFile := strings.TrimSuffix(input, filepath.Ext(input)) + item.To.Extension()

		if err := os.WriteFile(outputFile, result, 0644); err != nil {
			return conversionDoneMsg{err: err}
		}

		return conversionDoneMsg{outputFile: outputFile}
	}
}

func (m Model) loadPattern() tea.Cmd {
	input := m.selectedFile
	return func() tea.Msg {
		p, err := LoadPattern(input)
		return patternLoadedMsg{pattern: p, err: err}
	}
}

// LoadPattern reads a pattern file of any supported format
func LoadPattern(path string) (*converter.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := converter.DetectFormat(path)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}
	return converter.New(devices.NewTD3()).Load(data, format)
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	header := asciiLogo()
	s.WriteString(header)
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	case StateViewer:
		s.WriteString(m.viewPattern())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT CONVERSION "))
	s.WriteString("\n\n")
	
	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(acidYellow).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	what := "PATTERN"
	if m.conversion.From != "" {
		what = strings.ToUpper(string(m.conversion.From))
	}
	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT %s FILE ", what)))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s → %s", m.conversion.From, m.conversion.To)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder
	
	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.conversion.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
		if m.conversion.To == converter.FormatSyx {
			s.WriteString(fmt.Sprintf("\nSlot:   %s", m.slot))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func (m Model) viewPattern() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(filepath.Base(m.selectedFile)))))
	s.WriteString("\n\n")
	s.WriteString(RenderPattern(m.pattern))
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
  _____ ____      _____   ____   _  _____ _____ _____ ____  _   _
 |_   _|  _ \    |___ /  |  _ \ / \|_   _|_   _| ____|  _ \| \ | |
   | | | | | |_____|_ \  | |_) / _ \ | |   | | |  _| | |_) |  \| |
   | | | |_| |_____|__) | |  __/ ___ \| |   | | | |___|  _ <| |\  |
   |_| |____/     |____/  |_| /_/   \_\_|   |_| |_____|_| \_\_| \_|
`
	return lipgloss.NewStyle().Foreground(acidGreen).Render(logo)
}

// Run starts the TUI application
func Run(slot converter.Slot) error {
	p := tea.NewProgram(New(slot), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

