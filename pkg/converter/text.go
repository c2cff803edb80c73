package converter

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Text format labels
const (
	TextHeader       = "TD-3 Pattern"
	ActiveStepsLabel = "Active Steps"
	TripletLabel     = "Triplet Time"

	noteLabel      = "Note:"
	transposeLabel = "Transpose:"
	accentLabel    = "Accent:"
	slideLabel     = "Slide:"
	timeLabel      = "Tie/Rest:"

	labelWidth = 11
)

var (
	transposeTokens = [...]string{"DN", "", "UP"}
	accentTokens    = [...]string{"", "AC"}
	slideTokens     = [...]string{"", "SL"}
	timeTokens      = [...]string{"TI", "", "TR", "RE"} // indexed by Time

	metadataLine = regexp.MustCompile(`^([^:]+):\s*(\d+)\s*,\s*([^:]+):\s*(\S+)$`)
)

// textField describes one field line of the text format
type textField struct {
	label   string
	tokens  []string
	comment string
}

var textFields = [...]textField{
	{label: noteLabel, tokens: NoteNames[:], comment: "// C -C# .. B -C^"},
	{label: transposeLabel, tokens: transposeTokens[:], comment: "// DN-  -UP"},
	{label: accentLabel, tokens: accentTokens[:], comment: "//   -AC"},
	{label: slideLabel, tokens: slideTokens[:], comment: "//   -SL"},
	{label: timeLabel, tokens: timeTokens[:], comment: "//   -TI-RE"},
}

// stepIndexes returns the table index of each field of a step, in textFields order
func stepIndexes(s Step) [len(textFields)]int {
	return [len(textFields)]int{
		int(s.Note),
		int(s.Transpose),
		boolIndex(s.Accent),
		boolIndex(s.Slide),
		int(s.Time),
	}
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RenderText renders a pattern in the editable text format
func RenderText(p *Pattern) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(TextHeader + "\n")
	fmt.Fprintf(&b, "%s: %d, %s: %s\n", ActiveStepsLabel, p.ActiveSteps, TripletLabel, onOff(p.Triplet))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%-*s", labelWidth, "// Step:")
	for i := range p.Steps {
		fmt.Fprintf(&b, "%s %02d", separator(i), i+1)
	}
	b.WriteString("\n")

	for f, field := range textFields {
		fmt.Fprintf(&b, "%-*s", labelWidth, field.label)
		for i, s := range p.Steps {
			fmt.Fprintf(&b, "%s %-2s", separator(i), field.tokens[stepIndexes(s)[f]])
		}
		b.WriteString("  " + field.comment + "\n")
	}
	b.WriteString("// Read 'Sequencer Quirks' in README.md about Tie/Rest and pattern execution\n")
	return b.String(), nil
}

func separator(i int) string {
	if i == 0 {
		return ""
	}
	return ","
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// lineReader yields significant lines: comments stripped, whitespace trimmed, blanks skipped
type lineReader struct {
	lines []string
	pos   int
}

func (r *lineReader) next() string {
	for r.pos < len(r.lines) {
		line := r.lines[r.pos]
		r.pos++
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// ParseText parses the editable text format into a pattern
func ParseText(text string) (*Pattern, error) {
	p := NewPattern()
	r := &lineReader{lines: strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")}

	if line := r.next(); line != TextHeader {
		return nil, fmt.Errorf("%w: expecting %s, read: %s", ErrTextGrammar, TextHeader, line)
	}

	line := r.next()
	m := metadataLine.FindStringSubmatch(line)
	if m == nil || strings.TrimSpace(m[1]) != ActiveStepsLabel || strings.TrimSpace(m[3]) != TripletLabel {
		return nil, fmt.Errorf("%w: expecting %s: # and %s: On|Off, read: %s", ErrTextGrammar, ActiveStepsLabel, TripletLabel, line)
	}
	active, err := strconv.ParseUint(m[2], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a number from 0 to 255", ErrTextGrammar, ActiveStepsLabel, m[2])
	}
	p.ActiveSteps = uint8(active)
	switch m[4] {
	case "On":
		p.Triplet = true
	case "Off":
		p.Triplet = false
	default:
		return nil, fmt.Errorf("%w: %s should be On or Off, read: %s", ErrTextGrammar, TripletLabel, m[4])
	}

	var values [len(textFields)][]int
	for f, field := range textFields {
		tokens, err := splitEntries(r.next(), field.label)
		if err != nil {
			return nil, err
		}
		values[f] = make([]int, StepCount)
		for i, tok := range tokens {
			idx := indexOf(field.tokens, tok)
			if idx < 0 {
				return nil, fmt.Errorf("%w: wrong '%s' on position %d: %q", ErrTextGrammar, field.label, i, tok)
			}
			values[f][i] = idx
		}
	}

	for i := range p.Steps {
		p.Steps[i] = Step{
			Note:      uint8(values[0][i]),
			Transpose: Transpose(values[1][i]),
			Accent:    values[2][i] == 1,
			Slide:     values[3][i] == 1,
			Time:      Time(values[4][i]),
		}
	}
	return p, nil
}

// splitEntries checks the label of a field line and returns its 16 trimmed tokens
func splitEntries(line, label string) ([]string, error) {
	rest, ok := strings.CutPrefix(line, label)
	if !ok {
		return nil, fmt.Errorf("%w: expecting %s ..., read: %s", ErrTextGrammar, label, line)
	}
	tokens := strings.Split(rest, ",")
	if len(tokens) != StepCount {
		return nil, fmt.Errorf("%w: line with '%s' should have %d values, %d found instead", ErrTextGrammar, label, StepCount, len(tokens))
	}
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	return tokens, nil
}

func indexOf(table []string, tok string) int {
	for i, t := range table {
		if t == tok {
			return i
		}
	}
	return -1
}

// ReadTextFile reads a text pattern from a file
func ReadTextFile(filename string) (*Pattern, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	return ParseText(string(data))
}

// WriteTextFile writes a pattern to a file in the text format
func WriteTextFile(p *Pattern, filename string) error {
	text, err := RenderText(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(text), 0644)
}
