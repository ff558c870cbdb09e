package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/cowork-forge/forge/internal/flog"
)

// CLIBackend implements Backend over a terminal, grounded on cmd/nerd's
// interactive stdin-prompt helpers in the teacher's CLI.
type CLIBackend struct {
	in        *bufio.Reader
	out       io.Writer
	cancelled atomic.Bool
}

// NewCLIBackend returns a Backend reading prompts from in and writing to out.
func NewCLIBackend(in io.Reader, out io.Writer) *CLIBackend {
	return &CLIBackend{in: bufio.NewReader(in), out: out}
}

// Cancel marks the backend cancelled; future Cancelled() calls return true
// until the underlying process is torn down (no "uncancel" — cancellation
// is terminal per stage boundary, per spec.md §5).
func (c *CLIBackend) Cancel() { c.cancelled.Store(true) }

func (c *CLIBackend) Cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return c.cancelled.Load()
}

func (c *CLIBackend) ShowMessage(_ context.Context, level Level, text string) error {
	log := flog.Get(flog.CategoryInteraction)
	switch level {
	case LevelError:
		log.Errorw(text)
	case LevelWarn:
		log.Warnw(text)
	default:
		log.Infow(text)
	}
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", strings.ToUpper(string(level)), text)
	return err
}

func (c *CLIBackend) ShowMessageWithContext(ctx context.Context, level Level, text string, mc MessageContext) error {
	return c.ShowMessage(ctx, level, fmt.Sprintf("(%s/%s) %s", mc.Stage, mc.Agent, text))
}

func (c *CLIBackend) RequestInput(_ context.Context, prompt string, options []Option, defaultID string) (Answer, error) {
	fmt.Fprintln(c.out, prompt)
	for _, opt := range options {
		fmt.Fprintf(c.out, "  [%s] %s\n", opt.ID, opt.Label)
	}
	if defaultID != "" {
		fmt.Fprintf(c.out, "default: %s\n", defaultID)
	}
	fmt.Fprint(c.out, "> ")

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return Answer{Kind: AnswerCancel}, nil
		}
		return Answer{}, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		line = defaultID
	}
	if line == "" {
		return Answer{Kind: AnswerCancel}, nil
	}
	for _, opt := range options {
		if opt.ID == line {
			return Answer{Kind: AnswerSelection, SelectedID: opt.ID}, nil
		}
	}
	if len(options) == 0 {
		return Answer{Kind: AnswerText, Text: line}, nil
	}
	return Answer{Kind: AnswerText, Text: line}, nil
}

func (c *CLIBackend) SendStreaming(_ context.Context, chunk string, _ string, final bool) error {
	if _, err := fmt.Fprint(c.out, chunk); err != nil {
		return err
	}
	if final {
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *CLIBackend) RequestConfirmationWithFeedback(ctx context.Context, prompt string, artifactType string) (Confirmation, error) {
	ans, err := c.RequestInput(ctx, fmt.Sprintf("%s\n(c)ontinue / (v)iew %s / (f)eedback / (x) cancel", prompt, artifactType), []Option{
		{ID: "c", Label: "Continue"},
		{ID: "v", Label: "View artifact"},
		{ID: "f", Label: "Provide feedback"},
		{ID: "x", Label: "Cancel"},
	}, "c")
	if err != nil {
		return Confirmation{}, err
	}
	switch ans.Kind {
	case AnswerCancel:
		return Confirmation{Kind: ConfirmCancel}, nil
	case AnswerSelection:
		switch ans.SelectedID {
		case "c":
			return Confirmation{Kind: ConfirmContinue}, nil
		case "v":
			return Confirmation{Kind: ConfirmViewArtifact}, nil
		case "x":
			return Confirmation{Kind: ConfirmCancel}, nil
		case "f":
			feedback, err := c.RequestInput(ctx, "Describe the change you'd like:", nil, "")
			if err != nil {
				return Confirmation{}, err
			}
			if feedback.Kind == AnswerCancel {
				return Confirmation{Kind: ConfirmCancel}, nil
			}
			return Confirmation{Kind: ConfirmProvideFeedback, FeedbackText: feedback.Text}, nil
		}
	}
	return Confirmation{Kind: ConfirmProvideFeedback, FeedbackText: ans.Text}, nil
}
