package llm

import (
	"context"
	"fmt"
	"strings"
)

// FakeClient is a deterministic Client used by stage tests: it returns a
// scripted response per call, recording every prompt it was asked to
// complete so a test can assert on what a stage actually sent.
type FakeClient struct {
	Responses []string
	calls     int

	Prompts []string
}

// NewFakeClient returns a FakeClient that serves responses in order, then
// repeats the last one once exhausted.
func NewFakeClient(responses ...string) *FakeClient {
	return &FakeClient{Responses: responses}
}

func (f *FakeClient) next() string {
	if len(f.Responses) == 0 {
		return ""
	}
	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx]
}

func (f *FakeClient) Complete(_ context.Context, prompt string) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	return f.next(), nil
}

func (f *FakeClient) CompleteWithSystem(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.Prompts = append(f.Prompts, fmt.Sprintf("[system: %s] %s", systemPrompt, userPrompt))
	return f.next(), nil
}

func (f *FakeClient) StreamComplete(ctx context.Context, systemPrompt, userPrompt string, onChunk func(Chunk) error) error {
	resp, err := f.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	words := strings.Fields(resp)
	for i, w := range words {
		if err := onChunk(Chunk{Content: w + " ", Final: i == len(words)-1}); err != nil {
			return err
		}
	}
	if len(words) == 0 {
		return onChunk(Chunk{Final: true})
	}
	return nil
}
