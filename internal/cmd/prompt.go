package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter reads one line of operator input.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// IOPrompter writes prompts to out and reads answers from in.
type IOPrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewIOPrompter creates a prompter over in and out.
func NewIOPrompter(in io.Reader, out io.Writer) *IOPrompter {
	return &IOPrompter{reader: bufio.NewReader(in), out: out}
}

// Prompt displays prompt and returns the trimmed answer. A final line
// without a newline is still returned.
func (p *IOPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	input, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// confirm asks a yes/no question. Anything but y or yes is no.
func confirm(p Prompter, question string) bool {
	answer, err := p.Prompt(question + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
