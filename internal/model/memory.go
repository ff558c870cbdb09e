package model

import "time"

// Decision is one recorded project-level decision (spec.md §3 Memory).
// Confidence is recovered from original_source/domain/memory.rs
// (SPEC_FULL.md §3.1) and breaks ties in Smart-scope keyword ranking.
type Decision struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Stage      Stage     `json:"stage,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Confidence float64   `json:"confidence"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Pattern is a recorded project-level pattern. Occurrences is recovered
// from original_source/domain/memory.rs (SPEC_FULL.md §3.1).
type Pattern struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Tags        []string  `json:"tags,omitempty"`
	Occurrences int       `json:"occurrences"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Importance is the sum type tag for an iteration memory item's weight.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// IterationMemoryItem is one insight, issue, or learning tagged with the
// stage it came from (spec.md §3 Memory).
type IterationMemoryItem struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"` // insight|issue|learning
	Text       string     `json:"text"`
	Stage      Stage      `json:"stage,omitempty"`
	Importance Importance `json:"importance"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// ProjectMemory persists across iterations (spec.md §4.2).
type ProjectMemory struct {
	Decisions    []Decision `json:"decisions"`
	Patterns     []Pattern  `json:"patterns"`
	Dependencies []string   `json:"dependencies"`
	TechStack    []string   `json:"tech_stack"`
}

// IterationMemory is per-iteration knowledge (spec.md §4.2).
type IterationMemory struct {
	IterationID string                `json:"iteration_id"`
	Items       []IterationMemoryItem `json:"items"`
}

// MemoryScope selects which store(s) Query reads from.
type MemoryScope string

const (
	ScopeProject   MemoryScope = "project"
	ScopeIteration MemoryScope = "iteration"
	ScopeSmart     MemoryScope = "smart"
)

// MemoryType filters which kind of memory item Query returns.
type MemoryType string

const (
	TypeDecisions MemoryType = "decisions"
	TypePatterns  MemoryType = "patterns"
	TypeInsights  MemoryType = "insights"
	TypeAll       MemoryType = "all"
)

// MergedResult is the result of a memory Query call (spec.md §4.2).
type MergedResult struct {
	Decisions []Decision            `json:"decisions,omitempty"`
	Patterns  []Pattern             `json:"patterns,omitempty"`
	Items     []IterationMemoryItem `json:"items,omitempty"`
}
