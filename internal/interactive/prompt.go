// Package interactive provides prompts for commands that talk to a user.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Option is one entry of a numbered menu.
type Option struct {
	Name        string
	Description string
}

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readLine returns the next trimmed line. A final line without a newline is
// returned as is; io.EOF is only reported when nothing was read.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Anything but y or yes, including end of
// input, is a no.
func (p *Prompter) Confirm(format string, args ...interface{}) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/N]: ")

	answer, err := p.readLine()
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// Ask asks for free text, returning def for an empty answer or end of input.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", question)
	}

	answer, err := p.readLine()
	if err == io.EOF {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Choose shows a numbered menu and returns the index of the selected option.
func (p *Prompter) Choose(title string, options []Option) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("nothing to choose from")
	}

	_, _ = fmt.Fprintf(p.out, "\n%s\n", title)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.out, "  %d. %-12s - %s\n", i+1, opt.Name, opt.Description)
	}
	_, _ = fmt.Fprintf(p.out, "\nSelect [1-%d]: ", len(options))

	answer, err := p.readLine()
	if err != nil {
		return 0, fmt.Errorf("failed to read input: %w", err)
	}

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(options) {
		return 0, fmt.Errorf("invalid selection: %s", answer)
	}
	return num - 1, nil
}
