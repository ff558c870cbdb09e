// Package interaction implements C3: the abstract channel for prompts,
// confirmations, streaming chunks, and messages that every stage and tool
// uses instead of talking to a terminal or GUI directly (spec.md §4.3).
package interaction

import "context"

// Level is the severity of a ShowMessage call.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// MessageContext names the agent/stage a message originated from, for
// ShowMessageWithContext.
type MessageContext struct {
	Agent string
	Stage string
}

// SelectionKind tags the Answer sum type returned by RequestInput.
type SelectionKind string

const (
	AnswerSelection SelectionKind = "selection"
	AnswerText      SelectionKind = "text"
	AnswerCancel    SelectionKind = "cancel"
)

// Answer is the Kind-tagged result of RequestInput.
type Answer struct {
	Kind       SelectionKind
	SelectedID string // set when Kind == AnswerSelection
	Text       string // set when Kind == AnswerText
}

// Option is one choice offered by RequestInput.
type Option struct {
	ID    string
	Label string
}

// ConfirmationKind tags the sum type returned by RequestConfirmationWithFeedback.
type ConfirmationKind string

const (
	ConfirmContinue         ConfirmationKind = "continue"
	ConfirmViewArtifact      ConfirmationKind = "view_artifact"
	ConfirmProvideFeedback   ConfirmationKind = "provide_feedback"
	ConfirmCancel            ConfirmationKind = "cancel"
)

// Confirmation is the Kind-tagged result of RequestConfirmationWithFeedback.
type Confirmation struct {
	Kind         ConfirmationKind
	FeedbackText string // set when Kind == ConfirmProvideFeedback
}

// Backend is the polymorphic capability set of spec.md §4.3. It is
// injected once into the orchestrator; every stage and tool reaches the
// user exclusively through it.
type Backend interface {
	ShowMessage(ctx context.Context, level Level, text string) error
	ShowMessageWithContext(ctx context.Context, level Level, text string, mc MessageContext) error
	RequestInput(ctx context.Context, prompt string, options []Option, defaultID string) (Answer, error)
	SendStreaming(ctx context.Context, chunk string, agent string, final bool) error
	RequestConfirmationWithFeedback(ctx context.Context, prompt string, artifactType string) (Confirmation, error)

	// Cancelled reports whether the user has signalled cancellation since
	// the last check, the cooperative cancellation mechanism of spec.md §5.
	Cancelled(ctx context.Context) bool
}

// ErrNotImplemented is returned by backend seams that exist only to satisfy
// the interface (e.g. GUIBackend), per spec.md §1's scope boundary: the GUI
// front-end is an external collaborator, not part of THE CORE.
var ErrNotImplemented = backendNotImplemented{}

type backendNotImplemented struct{}

func (backendNotImplemented) Error() string {
	return "interaction backend: not implemented outside THE CORE"
}
