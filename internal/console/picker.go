package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
)

// LineReader reads one line of user input after printing prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

type bufferedReader struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLineReader reads plain lines from in, echoing prompts to out.
func NewLineReader(in io.Reader, out io.Writer) LineReader {
	return &bufferedReader{in: bufio.NewReader(in), out: out}
}

func (r *bufferedReader) ReadLine(p string) (string, error) {
	fmt.Fprint(r.out, p)
	line, err := r.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type promptReader struct {
	completer prompt.Completer
}

// NewPromptReader reads lines with go-prompt, completing entity numbers
// and ids from choices. It needs an interactive terminal.
func NewPromptReader(choices []homeassistant.EntityState) LineReader {
	suggests := make([]prompt.Suggest, 0, 2*len(choices)+1)
	for i, s := range choices {
		suggests = append(suggests,
			prompt.Suggest{Text: strconv.Itoa(i), Description: s.EntityID},
			prompt.Suggest{Text: s.EntityID, Description: s.FriendlyName()},
		)
	}
	suggests = append(suggests, prompt.Suggest{Text: "q", Description: "finish"})

	return &promptReader{completer: func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		if word == "" {
			return nil
		}
		return prompt.FilterHasPrefix(suggests, word, true)
	}}
}

func (r *promptReader) ReadLine(p string) (string, error) {
	return strings.TrimSpace(prompt.Input(p, r.completer, prompt.OptionTitle("hatrend"))), nil
}

// Picker lets the user choose entities to track from a numbered list.
type Picker struct {
	reader LineReader
	out    io.Writer
}

func NewPicker(reader LineReader, out io.Writer) *Picker {
	return &Picker{reader: reader, out: out}
}

// List prints choices numbered from zero.
func (p *Picker) List(choices []homeassistant.EntityState) {
	for i, s := range choices {
		name := s.FriendlyName()
		if name == s.EntityID {
			fmt.Fprintf(p.out, "%3d  %s\n", i, s.EntityID)
			continue
		}
		fmt.Fprintf(p.out, "%3d  %s (%s)\n", i, s.EntityID, name)
	}
}

// Pick reads entity numbers or ids until the user enters "q" or input ends.
// Invalid entries are reported and asked again. Duplicates are dropped and
// the order of first entry is kept.
func (p *Picker) Pick(choices []homeassistant.EntityState) ([]string, error) {
	byID := make(map[string]bool, len(choices))
	for _, s := range choices {
		byID[s.EntityID] = true
	}

	var picked []string
	seen := make(map[string]bool)

	for {
		line, err := p.reader.ReadLine("Enter entity number or id (q to finish): ")
		if errors.Is(err, io.EOF) {
			return picked, nil
		}
		if err != nil {
			return picked, fmt.Errorf("failed to read selection: %w", err)
		}

		if strings.EqualFold(line, "q") {
			return picked, nil
		}
		if line == "" {
			continue
		}

		id, ok := resolveChoice(line, choices, byID)
		if !ok {
			fmt.Fprintf(p.out, "%q is not in the list, please try again\n", line)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		picked = append(picked, id)
		fmt.Fprintf(p.out, "  + %s\n", id)
	}
}

func resolveChoice(line string, choices []homeassistant.EntityState, byID map[string]bool) (string, bool) {
	if n, err := strconv.Atoi(line); err == nil {
		if n < 0 || n >= len(choices) {
			return "", false
		}
		return choices[n].EntityID, true
	}
	if byID[line] {
		return line, true
	}
	return "", false
}
