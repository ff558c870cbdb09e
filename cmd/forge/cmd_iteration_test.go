package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/orchestrator"
	"github.com/cowork-forge/forge/internal/sessionstore"
)

func TestFirstWords_TruncatesAndJoins(t *testing.T) {
	assert.Equal(t, "build a static page", firstWords("build a static page that says hello", 4))
	assert.Equal(t, "hi", firstWords("hi", 4))
}

func TestNextIncompleteStage_SkipsVerifiedPrefix(t *testing.T) {
	meta := model.NewSessionMeta("iter-1", time.Now().Unix())
	meta.SetStatus(model.StageIdea, model.Completed("a1", time.Now(), true))
	meta.SetStatus(model.StageRequirements, model.Completed("a2", time.Now(), true))

	assert.Equal(t, model.StageDesign, nextIncompleteStage(meta))
}

func TestNextIncompleteStage_AllVerifiedReturnsDelivery(t *testing.T) {
	meta := model.NewSessionMeta("iter-1", time.Now().Unix())
	for _, s := range model.CanonicalOrder {
		meta.SetStatus(s, model.Completed("a", time.Now(), true))
	}
	assert.Equal(t, model.StageDelivery, nextIncompleteStage(meta))
}

func TestNextIterationNumber_IncrementsFromMax(t *testing.T) {
	store := sessionstore.New(t.TempDir())
	require.NoError(t, store.SaveIteration(model.NewGenesis("iter-1", 1, "a", "a", time.Now())))
	require.NoError(t, store.SaveIteration(model.NewGenesis("iter-2", 3, "b", "b", time.Now())))

	n, err := nextIterationNumber(store)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNextIterationNumber_EmptyStoreStartsAtOne(t *testing.T) {
	store := sessionstore.New(t.TempDir())
	n, err := nextIterationNumber(store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReportOutcome_CompletedAndPausedReturnNil(t *testing.T) {
	assert.NoError(t, reportOutcome(orchestrator.Outcome{Status: model.IterationCompleted}))
	assert.NoError(t, reportOutcome(orchestrator.Outcome{Status: model.IterationPaused, LastStage: model.StageDesign}))
}

func TestReportOutcome_FailedReturnsError(t *testing.T) {
	err := reportOutcome(orchestrator.Outcome{Status: model.IterationFailed, LastStage: model.StageCheck})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check")
}
