package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_CompleteServesResponsesInOrderThenRepeatsLast(t *testing.T) {
	c := NewFakeClient("first", "second")

	r1, err := c.Complete(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "first", r1)

	r2, err := c.Complete(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "second", r2)

	r3, err := c.Complete(context.Background(), "p3")
	require.NoError(t, err)
	assert.Equal(t, "second", r3)

	assert.Equal(t, []string{"p1", "p2", "p3"}, c.Prompts)
}

func TestFakeClient_StreamCompleteEmitsWordsWithFinalFlag(t *testing.T) {
	c := NewFakeClient("alpha beta gamma")

	var chunks []Chunk
	err := c.StreamComplete(context.Background(), "sys", "user", func(ch Chunk) error {
		chunks = append(chunks, ch)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].Final)
	assert.True(t, chunks[2].Final)
}
