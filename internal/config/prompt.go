package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
)

// Prompter asks for missing server settings on an interactive terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// readSecret reads a line without echo. Nil means echo is left on.
	readSecret func() (string, error)
}

// NewPrompter creates a prompter on in and out. When in is a terminal the
// API key is read without echo.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		p.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}
	return p
}

// newReaderPrompter is used where no terminal is involved.
func newReaderPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Fill prompts for the address and key that are missing from cfg. An
// address that does not validate is asked for again, up to three times.
func (p *Prompter) Fill(cfg *Config) error {
	const attempts = 3

	if strings.TrimSpace(cfg.Server.Address) == "" {
		var lastErr error
		for i := 0; i < attempts; i++ {
			address, err := p.ask("Server address (e.g. http://homeassistant.local:8123): ")
			if err != nil {
				return err
			}
			normalized, err := homeassistant.ValidateBaseURL(address)
			if err != nil {
				lastErr = err
				fmt.Fprintf(p.out, "Invalid address: %v\n", err)
				continue
			}
			cfg.Server.Address = normalized
			lastErr = nil
			break
		}
		if lastErr != nil {
			return lastErr
		}
	}

	if strings.TrimSpace(cfg.Server.APIKey) == "" {
		key, err := p.askSecret("Server API key: ")
		if err != nil {
			return err
		}
		if key == "" {
			return homeassistant.ErrMissingToken
		}
		cfg.Server.APIKey = key
	}

	return nil
}

func (p *Prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) askSecret(prompt string) (string, error) {
	if p.readSecret == nil {
		return p.ask(prompt)
	}
	fmt.Fprint(p.out, prompt)
	secret, err := p.readSecret()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(secret), nil
}
