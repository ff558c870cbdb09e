package runner

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func echoCommand() string {
	if os.Getenv("GOOS") == "windows" {
		return "echo hello"
	}
	return "echo hello && sleep 0.2"
}

func TestManager_StartAndStop(t *testing.T) {
	m := New()
	dir := t.TempDir()

	var lines []string
	sink := func(line, stream, component string) { lines = append(lines, line) }

	info, err := m.Start(context.Background(), "iter-1", echoCommand(), dir, "http://localhost:3000", 3000, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, "iter-1", info.IterationID)
	assert.True(t, m.IsRunning("iter-1"))

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, m.Stop("iter-1"))
	assert.False(t, m.IsRunning("iter-1"))
}

func TestManager_StopWithoutRunningReturnsError(t *testing.T) {
	m := New()
	err := m.Stop("does-not-exist")
	assert.Error(t, err)
}

func TestManager_GetInfo(t *testing.T) {
	m := New()
	dir := t.TempDir()

	_, err := m.Start(context.Background(), "iter-2", "echo hi", dir, "http://localhost:4000", 4000, nil, nil)
	require.NoError(t, err)
	defer m.Stop("iter-2")

	info, ok := m.GetInfo("iter-2")
	require.True(t, ok)
	assert.Equal(t, 4000, info.Port)
}

func TestManager_StartTwiceStopsThePrevious(t *testing.T) {
	m := New()
	dir := t.TempDir()

	_, err := m.Start(context.Background(), "iter-3", "echo first", dir, "http://localhost:5000", 5000, nil, nil)
	require.NoError(t, err)

	_, err = m.Start(context.Background(), "iter-3", "echo second", dir, "http://localhost:5001", 5001, nil, nil)
	require.NoError(t, err)
	defer m.Stop("iter-3")

	info, ok := m.GetInfo("iter-3")
	require.True(t, ok)
	assert.Equal(t, 5001, info.Port)
}
