// Package stage defines the per-stage agent contract (C7) every stage
// implementation satisfies (spec.md §4.7). The canonical stage order the
// orchestrator walks is model.CanonicalOrder.
package stage

import (
	"context"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/llm"
	"github.com/cowork-forge/forge/internal/memory"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/staticserver"
)

// Context is everything an agent needs to run one stage: the session it
// belongs to, the stores it reads and writes through, the channel back to
// the user, and anything carried over from a previous round.
type Context struct {
	Ctx         context.Context
	IterationID string
	SessionID   string

	Artifacts    *artifact.Store
	Memory       *memory.Store
	Backend      interaction.Backend
	LLM          llm.Client
	Runner       *runner.Manager
	StaticServer *staticserver.Manager

	// UserInput is the text the iteration was started with (the idea
	// description); the orchestrator passes the same value to every stage.
	UserInput string

	// Feedback carries revision text for this run: the prior round's
	// NeedsRevision feedback or ProvideFeedback text on a re-execution, a
	// GotoStage reason for the jump target, or the smart-retry fix prompt.
	Feedback string

	// WorkingDir is the iteration's code checkout, used by stages that
	// write files (Coding) or run commands (Check).
	WorkingDir string
}

// ResultKind tags the sum-type outcome of Agent.Execute.
type ResultKind string

const (
	ResultCompleted     ResultKind = "completed"
	ResultNeedsRevision ResultKind = "needs_revision"
	ResultFailed        ResultKind = "failed"
)

// Goto is an agent-signalled intra-pipeline jump (spec.md §4.8 Step 5),
// carried as an explicit field rather than an error-channel encoding per the
// REDESIGN FLAG in spec.md §9.
type Goto struct {
	Target model.Stage
	Reason string
}

// Result is the Kind-tagged return value of Execute.
type Result struct {
	Kind       ResultKind
	ArtifactID string
	Stage      model.Stage
	Verified   bool
	Summary    string

	// FeedbackText is set when Kind == ResultNeedsRevision.
	FeedbackText string

	// Err is set when Kind == ResultFailed.
	Err error

	// GotoNext, when non-nil, requests the orchestrator clear GotoNext.Target
	// and every later stage, then resume execution there. The orchestrator
	// reads it only when Kind == ResultCompleted.
	GotoNext *Goto
}

// Agent is the contract every stage implements.
type Agent interface {
	Stage() model.Stage
	Dependencies() []model.Stage
	RequiresHITLReview() bool
	Description() string
	Execute(c Context) Result
}

// Registry maps each canonical stage to its Agent implementation.
type Registry map[model.Stage]Agent

// Get returns the agent registered for s, and whether one was found.
func (r Registry) Get(s model.Stage) (Agent, bool) {
	a, ok := r[s]
	return a, ok
}
