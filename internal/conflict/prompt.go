package conflict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPromptRetries is how often an invalid answer is tolerated.
const DefaultPromptRetries = 10

// Prompter asks the operator to pick one of choices.
type Prompter interface {
	Ask(ctx context.Context, message string, choices []Action) (Action, error)
}

// ConsolePrompter reads single-letter answers line by line.
type ConsolePrompter struct {
	in      *bufio.Reader
	out     io.Writer
	retries int
}

// NewConsolePrompter creates a prompter on in and out. retries <= 0 means
// DefaultPromptRetries.
func NewConsolePrompter(in io.Reader, out io.Writer, retries int) *ConsolePrompter {
	if retries <= 0 {
		retries = DefaultPromptRetries
	}
	return &ConsolePrompter{in: bufio.NewReader(in), out: out, retries: retries}
}

// Ask writes message followed by the options, e.g.
// "How do you want to proceed? [abort (a), skip/remove candidate (s)]",
// and repeats the options until a valid answer is read. Answers are
// case-insensitive.
func (p *ConsolePrompter) Ask(ctx context.Context, message string, choices []Action) (Action, error) {
	fmt.Fprint(p.out, message+" ")
	options := formatOptions(choices)

	for attempt := 0; attempt < p.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		fmt.Fprint(p.out, options+" ")
		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		for _, c := range choices {
			if answer == c.Key() {
				return c, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("no valid answer before end of input")
		}
		if err != nil {
			return 0, fmt.Errorf("read answer: %w", err)
		}
	}

	return 0, fmt.Errorf("no valid answer after %d attempts", p.retries)
}

func formatOptions(choices []Action) string {
	opts := make([]string, len(choices))
	for i, c := range choices {
		opts[i] = fmt.Sprintf("%s (%s)", c, c.Key())
	}
	return "[" + strings.Join(opts, ", ") + "]"
}
