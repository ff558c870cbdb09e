package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const planSystemPrompt = "You turn a design document into an execution plan: a short phase list and a todo list. Reply with a \"Phases:\" bullet list, then a \"Todos:\" bullet list, one task per line."

// PlanAgent implements the Plan stage, grounded on code_planner.rs (the
// planning half of code_executor.rs/code_updater.rs in the original). It
// pauses for HITL review (spec.md §4.7's stage table).
type PlanAgent struct{}

func (PlanAgent) Stage() model.Stage          { return model.StagePlan }
func (PlanAgent) Dependencies() []model.Stage { return []model.Stage{model.StageDesign} }
func (PlanAgent) RequiresHITLReview() bool    { return true }
func (PlanAgent) Description() string         { return "turn the design into phases and a todo list" }

func (PlanAgent) Execute(c stage.Context) stage.Result {
	designEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageDesign)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: fmt.Errorf("plan stage: no design artifact found")}
	}
	design, err := artifact.DecodeData[model.DesignDoc](designEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: err}
	}

	prompt := fmt.Sprintf("Architecture: %s\nComponents: %s\nStack: %s",
		design.Architecture, strings.Join(design.Components, ", "), strings.Join(design.TechStack, ", "))
	if c.Feedback != "" {
		prompt += fmt.Sprintf("\n\nRevision feedback: %s", c.Feedback)
	}

	raw, err := c.LLM.CompleteWithSystem(c.Ctx, planSystemPrompt, prompt)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: err}
	}

	plan := parsePlan(raw)

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StagePlan)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StagePlan, version, []string{plan.Summary}, []string{designEnv.Meta.ArtifactID}, plan)
	if _, err := c.Artifacts.Put(c.SessionID, model.StagePlan, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StagePlan, Err: err}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StagePlan,
		Verified:   len(plan.TodoList.Items) > 0,
		Summary:    fmt.Sprintf("%d phases, %d todos", len(plan.Phases), len(plan.TodoList.Items)),
	}
}

func parsePlan(raw string) model.Plan {
	var plan model.Plan
	section := ""
	n := 0
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "phases:"):
			section = "phases"
			continue
		case strings.HasPrefix(lower, "todos:"):
			section = "todos"
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*"))
		if item == "" {
			continue
		}
		switch section {
		case "phases":
			plan.Phases = append(plan.Phases, item)
		case "todos":
			n++
			plan.TodoList.Items = append(plan.TodoList.Items, model.TodoItem{
				ID:          fmt.Sprintf("T%d", n),
				Description: item,
				Status:      model.TodoStatus{Kind: model.TodoPending},
			})
		}
	}
	plan.Summary = fmt.Sprintf("%d phases planned", len(plan.Phases))
	return plan
}
