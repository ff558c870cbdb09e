package orchestrator

import (
	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/llm"
	"github.com/cowork-forge/forge/internal/memory"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/stage"
	"github.com/cowork-forge/forge/internal/staticserver"
)

// Config bounds the orchestrator's retry/backoff policy, grounded on
// SessionMeta's max_feedback_iterations field in the original orchestrator.
type Config struct {
	MaxStageRetries       int // Step 2: failed-stage retry cap (spec.md default 3)
	StageRetryBackoff     int // seconds between stage retries (spec.md default 2)
	MaxRevisions          int // Step 2: NeedsRevision re-execution cap (spec.md default 5)
	MaxFeedbackIterations int // Step 4.1 (spec.md default 20)
	MaxSmartRetries       int // Step 6 (spec.md default 3)
}

// DefaultConfig matches the numbers named explicitly in spec.md §4.8.
func DefaultConfig() Config {
	return Config{
		MaxStageRetries:       3,
		StageRetryBackoff:     2,
		MaxRevisions:          5,
		MaxFeedbackIterations: model.DefaultMaxFeedbackIterations,
		MaxSmartRetries:       3,
	}
}

// Orchestrator runs exactly one iteration at a time (spec.md §4.8
// Concurrency), sequentially, on whichever goroutine calls Run/Resume.
type Orchestrator struct {
	cfg Config

	artifacts    *artifact.Store
	memory       *memory.Store
	backend      interaction.Backend
	llmClient    llm.Client
	runner       *runner.Manager
	staticServer *staticserver.Manager

	registry stage.Registry

	iteration *model.Iteration
	meta      *model.SessionMeta

	workingDir string

	// originalInput is the idea text the iteration was started with; it is
	// threaded into every stage's Context.UserInput across cascades, goto
	// jumps, and resumes so the Idea stage (and any stage that wants
	// top-level context) always sees it.
	originalInput string
}

// EventKind tags the Kind-tagged sum type of progress events the
// orchestrator emits; emit logs each one through flog's orchestrator
// category.
type EventKind string

const (
	EventStageSkipped    EventKind = "stage_skipped"
	EventStageStarted    EventKind = "stage_started"
	EventStageCompleted  EventKind = "stage_completed"
	EventStageFailed     EventKind = "stage_failed"
	EventStageRevision   EventKind = "stage_revision"
	EventFeedbackCascade EventKind = "feedback_cascade"
	EventGotoJump        EventKind = "goto_jump"
	EventSmartRetry      EventKind = "smart_retry"
	EventIterationDone   EventKind = "iteration_done"
)

// Event is one progress notification. The orchestrator does not construct
// or deliver Event values; emit passes kind, stage and message to the logger.
type Event struct {
	Kind    EventKind
	Stage   model.Stage
	Message string
}

// Outcome is the terminal result of a Run/Resume call.
type Outcome struct {
	Status    model.IterationStatus
	LastStage model.Stage
	Err       error
}
