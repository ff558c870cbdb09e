package memory

import (
	"sort"

	"github.com/cowork-forge/forge/internal/model"
)

// This file implements the memory query interface of spec.md §4.2:
//
//	query(scope, type, keywords, limit) -> MergedResult
//
// spec.md's literal signature has no iteration id because the original
// implementation reads it from ambient per-process session state; Store has
// no such context to read, so Query takes iterationID explicitly as its
// first argument instead. "Smart" merges project-level with current-iteration
// items and ranks by keyword containment; ties break on
// Pattern.Occurrences / Decision.Confidence (SPEC_FULL.md §3.1, recovered
// from original_source/domain/memory.rs).

// Query implements C2's query interface. scope selects which of
// ProjectMemory/IterationMemory(iterationID) to read from before ranking;
// Smart reads and merges both.
func (s *Store) Query(iterationID string, scope model.MemoryScope, typ model.MemoryType, keywords []string, limit int) (model.MergedResult, error) {
	var result model.MergedResult

	var pm model.ProjectMemory
	var im model.IterationMemory
	var err error

	if scope == model.ScopeProject || scope == model.ScopeSmart {
		pm, err = s.LoadProjectMemory()
		if err != nil {
			return result, err
		}
	}
	if scope == model.ScopeIteration || scope == model.ScopeSmart {
		im, err = s.LoadIterationMemory(iterationID)
		if err != nil {
			return result, err
		}
	}

	if typ == model.TypeDecisions || typ == model.TypeAll {
		result.Decisions = rankDecisions(pm.Decisions, keywords, limit)
	}
	if typ == model.TypePatterns || typ == model.TypeAll {
		result.Patterns = rankPatterns(pm.Patterns, keywords, limit)
	}
	if typ == model.TypeInsights || typ == model.TypeAll {
		result.Items = rankItems(im.Items, keywords, limit)
	}
	return result, nil
}

func rankDecisions(decisions []model.Decision, keywords []string, limit int) []model.Decision {
	scored := make([]model.Decision, len(decisions))
	copy(scored, decisions)
	scores := make(map[string]int, len(scored))
	for _, d := range scored {
		scores[d.ID] = keywordScore(d.Text, keywords)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := scores[scored[i].ID], scores[scored[j].ID]
		if si != sj {
			return si > sj
		}
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		return scored[i].RecordedAt.After(scored[j].RecordedAt)
	})
	return truncate(scored, limit)
}

func rankPatterns(patterns []model.Pattern, keywords []string, limit int) []model.Pattern {
	scored := make([]model.Pattern, len(patterns))
	copy(scored, patterns)
	scores := make(map[string]int, len(scored))
	for _, p := range scored {
		scores[p.ID] = keywordScore(p.Text, keywords)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := scores[scored[i].ID], scores[scored[j].ID]
		if si != sj {
			return si > sj
		}
		if scored[i].Occurrences != scored[j].Occurrences {
			return scored[i].Occurrences > scored[j].Occurrences
		}
		return scored[i].RecordedAt.After(scored[j].RecordedAt)
	})
	return truncate(scored, limit)
}

func rankItems(items []model.IterationMemoryItem, keywords []string, limit int) []model.IterationMemoryItem {
	scored := make([]model.IterationMemoryItem, len(items))
	copy(scored, items)
	scores := make(map[string]int, len(scored))
	for _, it := range scored {
		scores[it.ID] = keywordScore(it.Text, keywords)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := scores[scored[i].ID], scores[scored[j].ID]
		if si != sj {
			return si > sj
		}
		return scored[i].RecordedAt.After(scored[j].RecordedAt)
	})
	return truncate(scored, limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}
