package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/td3pattern/pkg/converter"
)

var (
	cellStyle     = lipgloss.NewStyle().Width(4).Align(lipgloss.Center)
	labelStyle    = lipgloss.NewStyle().Width(10).Foreground(silverGray)
	activeStyle   = cellStyle.Foreground(acidGreen)
	inactiveStyle = cellStyle.Foreground(lipgloss.Color("#666666"))
	summaryStyle  = lipgloss.NewStyle().Foreground(acidYellow)
)

var gridRows = []struct {
	label string
	cell  func(converter.Step) string
}{
	{"Note", func(s converter.Step) string { return converter.NoteName(s.Note) }},
	{"Transpose", func(s converter.Step) string {
		switch s.Transpose {
		case converter.TransposeDown:
			return "DN"
		case converter.TransposeUp:
			return "UP"
		}
		return "·"
	}},
	{"Accent", func(s converter.Step) string { return mark(s.Accent, "AC") }},
	{"Slide", func(s converter.Step) string { return mark(s.Slide, "SL") }},
	{"Time", func(s converter.Step) string {
		switch s.Time {
		case converter.TimeTie:
			return "TI"
		case converter.TimeTieRest:
			return "TR"
		case converter.TimeRest:
			return "RE"
		}
		return "♪"
	}},
}

func mark(on bool, s string) string {
	if on {
		return s
	}
	return "·"
}

// RenderPattern draws the pattern as a step grid. Steps past the active
// length are dimmed.
func RenderPattern(p *converter.Pattern) string {
	if p == nil {
		return errorStyle.Render("no pattern loaded")
	}

	var b strings.Builder

	triplet := "Off"
	if p.Triplet {
		triplet = "On"
	}
	b.WriteString(summaryStyle.Render(fmt.Sprintf("Active steps: %d   Triplet: %s", p.ActiveSteps, triplet)))
	b.WriteString("\n")

	cells := make([]string, 0, converter.StepCount+1)
	cells = append(cells, labelStyle.Render("Step"))
	for i := range p.Steps {
		cells = append(cells, styleFor(p, i).Bold(true).Render(fmt.Sprint(i+1)))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))

	for _, row := range gridRows {
		cells = cells[:0]
		cells = append(cells, labelStyle.Render(row.label))
		for i, step := range p.Steps {
			cells = append(cells, styleFor(p, i).Render(row.cell(step)))
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	return b.String()
}

func styleFor(p *converter.Pattern, i int) lipgloss.Style {
	if i < int(p.ActiveSteps) {
		return activeStyle
	}
	return inactiveStyle
}
