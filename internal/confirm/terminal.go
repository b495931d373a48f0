package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// TerminalPrompter reads answers line by line. Prompts block until the
// operator answers; there is no timeout.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter reads from in, or stdin when in is nil.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = io.Discard
	}
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm prints question and waits for an answer. A closed input declines.
func (p *TerminalPrompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out)
		return false, nil
	}
	return ParseAnswer(line, defaultYes), nil
}
