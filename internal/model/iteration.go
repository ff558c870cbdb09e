package model

import "time"

// InheritanceMode is the policy by which an evolution iteration carries
// code and artifacts from its base (spec.md §3, GLOSSARY).
type InheritanceMode string

const (
	InheritanceNone    InheritanceMode = "none"
	InheritanceFull    InheritanceMode = "full"
	InheritancePartial InheritanceMode = "partial"
)

// IterationStatus is the lifecycle state of an Iteration (spec.md §3, §4.9).
type IterationStatus string

const (
	IterationDraft     IterationStatus = "draft"
	IterationRunning   IterationStatus = "running"
	IterationPaused    IterationStatus = "paused"
	IterationCompleted IterationStatus = "completed"
	IterationFailed    IterationStatus = "failed"
)

// Iteration is one development cycle (spec.md §3). It is created by
// orchestrator constructors and mutated only by the orchestrator; instances
// are never deleted, only superseded (soft history).
type Iteration struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`

	BaseIterationID *string         `json:"base_iteration_id,omitempty"`
	Inheritance     InheritanceMode `json:"inheritance"`
	Status          IterationStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CurrentStage *Stage `json:"current_stage,omitempty"`

	// CompletedStages is always a prefix of CanonicalOrder reachable from
	// the computed start stage, modulo jumps (Invariant I1).
	CompletedStages []Stage `json:"completed_stages"`

	// Artifacts maps stage name to the artifact path written for it.
	Artifacts map[Stage]string `json:"artifacts"`

	// Tags are free-form labels surfaced in project-wide listings
	// (SPEC_FULL.md §3.1, recovered from original_source/domain/iteration.rs).
	Tags []string `json:"tags,omitempty"`
}

// NewGenesis constructs a fresh, non-evolution iteration (Invariant I3:
// BaseIterationID is nil iff Inheritance is None).
func NewGenesis(id string, number int, title, description string, startedAt time.Time) *Iteration {
	return &Iteration{
		ID:              id,
		Number:          number,
		Title:           title,
		Description:     description,
		Inheritance:     InheritanceNone,
		Status:          IterationDraft,
		StartedAt:       startedAt,
		CompletedStages: []Stage{},
		Artifacts:       map[Stage]string{},
	}
}

// NewEvolution constructs an iteration that inherits from baseIterationID.
func NewEvolution(id string, number int, title, description string, baseIterationID string, mode InheritanceMode, startedAt time.Time) *Iteration {
	if mode == InheritanceNone {
		mode = InheritancePartial
	}
	base := baseIterationID
	return &Iteration{
		ID:              id,
		Number:          number,
		Title:           title,
		Description:     description,
		BaseIterationID: &base,
		Inheritance:     mode,
		Status:          IterationDraft,
		StartedAt:       startedAt,
		CompletedStages: []Stage{},
		Artifacts:       map[Stage]string{},
	}
}

// Start transitions a Draft iteration to Running, grounded on
// iteration.rs's Iteration::start.
func (it *Iteration) Start(now time.Time) {
	it.Status = IterationRunning
	it.StartedAt = now
}

// Pause transitions a Running iteration to Paused (spec.md §4.9).
func (it *Iteration) Pause() {
	it.Status = IterationPaused
}

// Resume transitions a Paused iteration back to Running.
func (it *Iteration) Resume() {
	it.Status = IterationRunning
}

// Complete marks the iteration Completed and clears CurrentStage. Callers
// must check RequiredStagesComplete first (Invariant I2).
func (it *Iteration) Complete(now time.Time) {
	it.Status = IterationCompleted
	it.CompletedAt = &now
	it.CurrentStage = nil
}

// Fail marks the iteration Failed and clears CurrentStage.
func (it *Iteration) Fail() {
	it.Status = IterationFailed
	it.CurrentStage = nil
}

// SetStage records stage as the one currently executing.
func (it *Iteration) SetStage(stage Stage) {
	it.CurrentStage = &stage
}

// HasCompleted reports whether stage appears in CompletedStages.
func (it *Iteration) HasCompleted(stage Stage) bool {
	for _, s := range it.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// CompleteStage appends stage (if not already present) and records its
// artifact path. Callers are responsible for calling this only once the
// stage's StageStatus is Completed, and only in canonical order — the
// orchestrator is the sole mutator (Invariant I1).
func (it *Iteration) CompleteStage(stage Stage, artifactPath string) {
	if !it.HasCompleted(stage) {
		it.CompletedStages = append(it.CompletedStages, stage)
	}
	if it.Artifacts == nil {
		it.Artifacts = map[Stage]string{}
	}
	it.Artifacts[stage] = artifactPath
}

// ClearFrom removes stage and every later canonical stage from
// CompletedStages and Artifacts — used by the feedback cascade (§4.8 Step 4)
// and GotoStage (§4.8 Step 5) to clear a target stage and all later stages
// en bloc.
func (it *Iteration) ClearFrom(stage Stage) {
	idx := stage.Index()
	if idx < 0 {
		return
	}
	kept := it.CompletedStages[:0:0]
	for _, s := range it.CompletedStages {
		if s.Index() >= 0 && s.Index() < idx {
			kept = append(kept, s)
		}
	}
	it.CompletedStages = kept
	for s := range it.Artifacts {
		if s.Index() >= idx || s == stage {
			delete(it.Artifacts, s)
		}
	}
}

// RequiredStagesComplete reports whether every stage in CanonicalOrder is
// present in CompletedStages (Invariant I2, checked before marking an
// iteration Completed).
func (it *Iteration) RequiredStagesComplete() bool {
	for _, s := range CanonicalOrder {
		if !it.HasCompleted(s) {
			return false
		}
	}
	return true
}

// Summary is the project-wide listing projection of an Iteration (§4.9).
type Summary struct {
	ID          string          `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Status      IterationStatus `json:"status"`
	CurrentStage *Stage         `json:"current_stage,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

// ToSummary projects an Iteration into its listing summary.
func (it *Iteration) ToSummary() Summary {
	return Summary{
		ID:           it.ID,
		Number:       it.Number,
		Title:        it.Title,
		Status:       it.Status,
		CurrentStage: it.CurrentStage,
		Tags:         it.Tags,
	}
}
