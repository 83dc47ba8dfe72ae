package policy

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

type answer struct {
	char byte
	err  error
}

// InteractiveRetryPolicy asks the operator on every question. The first
// non-blank character of the reply decides: 'n' means no, anything else yes.
// End of input counts as no.
//
// Reading happens on a helper goroutine so a cancelled context unblocks the
// caller; an unanswered read is reused by the next question.
type InteractiveRetryPolicy struct {
	in      *bufio.Reader
	out     io.Writer
	logger  *zap.Logger
	prompt  *color.Color
	pending chan answer
}

// NewInteractiveRetryPolicy creates a policy reading from in and prompting on out.
func NewInteractiveRetryPolicy(in io.Reader, out io.Writer, logger *zap.Logger) *InteractiveRetryPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &InteractiveRetryPolicy{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
		prompt: color.New(color.FgYellow, color.Bold),
	}
}

// ShouldRetry asks "Retry? (y/n)".
func (p *InteractiveRetryPolicy) ShouldRetry(ctx context.Context) bool {
	return p.ask(ctx, "Retry? (y/n) ")
}

// ShouldRepeatAll asks "Repeat? (y/n)".
func (p *InteractiveRetryPolicy) ShouldRepeatAll(ctx context.Context) bool {
	return p.ask(ctx, "Repeat? (y/n) ")
}

func (p *InteractiveRetryPolicy) ask(ctx context.Context, question string) bool {
	if ctx.Err() != nil {
		return false
	}
	p.prompt.Fprint(p.out, question)

	if p.pending == nil {
		ch := make(chan answer, 1)
		p.pending = ch
		go func() { ch <- readAnswer(p.in) }()
	}

	select {
	case <-ctx.Done():
		return false
	case a := <-p.pending:
		p.pending = nil
		if a.err != nil {
			p.logger.Warn("operator input closed", zap.Error(a.err))
			return false
		}
		p.logger.Debug("operator answered", zap.String("answer", string(a.char)))
		return a.char != 'n'
	}
}

// readAnswer returns the first non-blank character of the next non-blank line.
func readAnswer(r *bufio.Reader) answer {
	for {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return answer{char: trimmed[0]}
		}
		if err != nil {
			return answer{err: err}
		}
	}
}
