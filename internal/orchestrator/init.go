package orchestrator

import (
	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/llm"
	"github.com/cowork-forge/forge/internal/memory"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/stage"
	"github.com/cowork-forge/forge/internal/stages"
	"github.com/cowork-forge/forge/internal/staticserver"
)

// New constructs an Orchestrator for one iteration. workingDir is the
// iteration's code checkout (spec.md §6's workspace/ directory).
func New(
	cfg Config,
	artifacts *artifact.Store,
	mem *memory.Store,
	backend interaction.Backend,
	llmClient llm.Client,
	runnerMgr *runner.Manager,
	staticServerMgr *staticserver.Manager,
	registry stage.Registry,
	it *model.Iteration,
	meta *model.SessionMeta,
	workingDir string,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		artifacts:    artifacts,
		memory:       mem,
		backend:      backend,
		llmClient:    llmClient,
		runner:       runnerMgr,
		staticServer: staticServerMgr,
		registry:     registry,
		iteration:    it,
		meta:         meta,
		workingDir:   workingDir,
	}
}

// DefaultRegistry returns a Registry populated with the eight canonical
// stage implementations from internal/stages.
func DefaultRegistry() stage.Registry {
	return stage.Registry{
		model.StageIdea:         stages.IdeaAgent{},
		model.StageRequirements: stages.RequirementsAgent{},
		model.StageDesign:       stages.DesignAgent{},
		model.StagePlan:         stages.PlanAgent{},
		model.StageCoding:       stages.CodingAgent{},
		model.StageCheck:        stages.CheckAgent{},
		model.StageFeedback:     stages.FeedbackAgent{},
		model.StageDelivery:     stages.DeliveryAgent{},
	}
}
