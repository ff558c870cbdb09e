package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-forge/forge/internal/model"
)

func TestStore_AddDecisionAndLoad(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.AddDecision("use PostgreSQL for storage", model.StageDesign, []string{"database"}, 0.9)
	require.NoError(t, err)

	pm, err := s.LoadProjectMemory()
	require.NoError(t, err)
	require.Len(t, pm.Decisions, 1)
	assert.Equal(t, "use PostgreSQL for storage", pm.Decisions[0].Text)
}

func TestStore_AddPatternIncrementsOccurrences(t *testing.T) {
	s := New(t.TempDir())

	p1, err := s.AddPattern("repository pattern for data access", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Occurrences)

	p2, err := s.AddPattern("repository pattern for data access", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Occurrences)

	pm, err := s.LoadProjectMemory()
	require.NoError(t, err)
	require.Len(t, pm.Patterns, 1)
}

func TestStore_IterationMemoryRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.AddIterationItem("iter-1", "insight", "tests run fast with table-driven style", model.StageCheck, model.ImportanceMedium)
	require.NoError(t, err)

	im, err := s.LoadIterationMemory("iter-1")
	require.NoError(t, err)
	require.Len(t, im.Items, 1)
	assert.Equal(t, "iter-1", im.IterationID)
}

func TestQuery_SmartRanksByKeywordContainment(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.AddDecision("use MongoDB for documents", model.StageDesign, nil, 0.5)
	require.NoError(t, err)
	_, err = s.AddDecision("use PostgreSQL for relational data", model.StageDesign, nil, 0.95)
	require.NoError(t, err)
	_, err = s.AddDecision("use PostgreSQL as the primary database", model.StageDesign, nil, 0.2)
	require.NoError(t, err)

	result, err := s.Query("iter-x", model.ScopeSmart, model.TypeDecisions, []string{"postgresql", "database"}, 10)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 3)

	// "primary database" matches both keywords (2 hits), "relational data"
	// matches only "postgresql" (1 hit) and MongoDB matches none, so the
	// 2-hit decision ranks first despite its low Confidence; no two scores
	// tie here, so the Confidence tie-break is not exercised.
	assert.Contains(t, result.Decisions[0].Text, "PostgreSQL")
}

func TestQuery_SmartMergesProjectAndIterationItems(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.AddDecision("use PostgreSQL for relational data", model.StageDesign, nil, 0.9)
	require.NoError(t, err)
	_, err = s.AddIterationItem("iter-z", "insight", "PostgreSQL connection pool exhausted under load", model.StageCheck, model.ImportanceHigh)
	require.NoError(t, err)

	result, err := s.Query("iter-z", model.ScopeSmart, model.TypeAll, []string{"postgresql"}, 10)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	require.Len(t, result.Items, 1)
	assert.Contains(t, result.Items[0].Text, "connection pool")
}

func TestQuery_RespectsLimit(t *testing.T) {
	s := New(t.TempDir())
	for i := 0; i < 5; i++ {
		_, err := s.AddPattern("pattern "+string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	result, err := s.Query("iter-y", model.ScopeProject, model.TypePatterns, nil, 2)
	require.NoError(t, err)
	assert.Len(t, result.Patterns, 2)
}
