package confirm

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ListThreshold is the largest batch that is listed item by item and
// confirmed by default.
const ListThreshold = 10

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Request describes one batch awaiting confirmation.
type Request struct {
	Count int
	// Labels are displayed when Count is at most ListThreshold.
	Labels []string
	// Verb and Noun build the messages, e.g. "download" and "files".
	Verb string
	Noun string
	// Target names the directory the batch applies to.
	Target string
}

// Gate applies the confirmation policy.
type Gate struct {
	out         io.Writer
	prompter    Prompter
	dryRun      bool
	interactive bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithDryRun makes every request return false after a notice.
func WithDryRun(dryRun bool) Option {
	return func(g *Gate) { g.dryRun = dryRun }
}

// WithInteractive enables prompting. A non-interactive gate approves every
// non-empty batch.
func WithInteractive(interactive bool) Option {
	return func(g *Gate) { g.interactive = interactive }
}

// WithPrompter overrides the prompter used in interactive mode.
func WithPrompter(p Prompter) Option {
	return func(g *Gate) {
		if p != nil {
			g.prompter = p
		}
	}
}

// New builds a Gate writing notices to out. Without WithPrompter the gate
// prompts on out and reads answers from in.
func New(in io.Reader, out io.Writer, opts ...Option) *Gate {
	if out == nil {
		out = io.Discard
	}
	g := &Gate{out: out}
	for _, opt := range opts {
		opt(g)
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter(in, out)
	}
	return g
}

// DryRun reports whether the gate is in dry-run mode.
func (g *Gate) DryRun() bool { return g.dryRun }

// ShouldProceed reports whether the batch described by req should run.
func (g *Gate) ShouldProceed(ctx context.Context, req Request) (bool, error) {
	if req.Count <= 0 {
		fmt.Fprintf(g.out, "  Nothing to %s.\n", req.Verb)
		return false, nil
	}
	if !g.dryRun && !g.interactive {
		return true, nil
	}

	defaultYes := req.Count <= ListThreshold
	if defaultYes {
		fmt.Fprintf(g.out, "  About to %s the following %s in %s:\n", req.Verb, req.Noun, req.Target)
		for _, label := range req.Labels {
			fmt.Fprintf(g.out, "     * %s\n", label)
		}
	} else {
		fmt.Fprintf(g.out, "  About to %s %d %s in %s.\n", req.Verb, req.Count, req.Noun, req.Target)
	}

	if g.dryRun {
		fmt.Fprintln(g.out, "  [DRY-RUN] Not doing anything...")
		return false, nil
	}

	ok, err := g.prompter.Confirm(ctx, question(defaultYes), defaultYes)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(g.out, "  Not doing anything...")
	}
	return ok, nil
}

func question(defaultYes bool) string {
	if defaultYes {
		return "  Continue? (Y/n) "
	}
	return "  Continue? (y/N) "
}

// ParseAnswer interprets an operator answer. An empty answer selects the
// default; anything starting with "y" is a yes.
func ParseAnswer(answer string, defaultYes bool) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultYes
	}
	return strings.HasPrefix(strings.ToLower(answer), "y")
}
