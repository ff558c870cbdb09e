package interaction

import (
	"context"
	"sync"
)

// RecordedCall is one call made against a RecordingBackend, kept for test
// assertions.
type RecordedCall struct {
	Method string
	Text   string
}

// RecordingBackend is an in-memory Backend for tests: it records every
// call and serves scripted answers in order, grounded on the teacher's
// scoped test-double idiom (internal/session/mocks_test.go,
// internal/campaign/mocks_test.go) generalized into a small reusable type
// instead of being redefined per test file.
type RecordingBackend struct {
	mu sync.Mutex

	Calls []RecordedCall

	Answers       []Answer
	Confirmations []Confirmation

	answerIdx       int
	confirmationIdx int

	cancelled bool
}

// NewRecordingBackend returns a RecordingBackend that will answer
// RequestInput/RequestConfirmationWithFeedback calls in order from the
// given scripts.
func NewRecordingBackend(answers []Answer, confirmations []Confirmation) *RecordingBackend {
	return &RecordingBackend{Answers: answers, Confirmations: confirmations}
}

// SetCancelled makes Cancelled report true from now on.
func (r *RecordingBackend) SetCancelled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = v
}

func (r *RecordingBackend) record(method, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RecordedCall{Method: method, Text: text})
}

func (r *RecordingBackend) ShowMessage(_ context.Context, level Level, text string) error {
	r.record("ShowMessage", string(level)+": "+text)
	return nil
}

func (r *RecordingBackend) ShowMessageWithContext(_ context.Context, level Level, text string, mc MessageContext) error {
	r.record("ShowMessageWithContext", string(level)+": "+text+" ["+mc.Stage+"/"+mc.Agent+"]")
	return nil
}

func (r *RecordingBackend) RequestInput(_ context.Context, prompt string, _ []Option, defaultID string) (Answer, error) {
	r.record("RequestInput", prompt)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.answerIdx >= len(r.Answers) {
		if defaultID != "" {
			return Answer{Kind: AnswerText, Text: defaultID}, nil
		}
		return Answer{Kind: AnswerCancel}, nil
	}
	a := r.Answers[r.answerIdx]
	r.answerIdx++
	return a, nil
}

func (r *RecordingBackend) SendStreaming(_ context.Context, chunk string, agent string, final bool) error {
	r.record("SendStreaming", chunk)
	return nil
}

func (r *RecordingBackend) RequestConfirmationWithFeedback(_ context.Context, prompt string, artifactType string) (Confirmation, error) {
	r.record("RequestConfirmationWithFeedback", prompt+" ["+artifactType+"]")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmationIdx >= len(r.Confirmations) {
		return Confirmation{Kind: ConfirmContinue}, nil
	}
	c := r.Confirmations[r.confirmationIdx]
	r.confirmationIdx++
	return c, nil
}

func (r *RecordingBackend) Cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}
