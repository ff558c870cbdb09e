package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const requirementsSystemPrompt = "You turn a distilled idea into a numbered product requirements list. Each requirement line must start with \"must:\", \"should:\", or \"could:\" followed by a short description. One requirement per line."

// RequirementsAgent implements the Requirements stage, grounded on
// prd_agent.rs. It pauses for HITL review (spec.md §4.7's stage table).
type RequirementsAgent struct{}

func (RequirementsAgent) Stage() model.Stage          { return model.StageRequirements }
func (RequirementsAgent) Dependencies() []model.Stage { return []model.Stage{model.StageIdea} }
func (RequirementsAgent) RequiresHITLReview() bool    { return true }
func (RequirementsAgent) Description() string         { return "turn the idea into a numbered PRD" }

func (RequirementsAgent) Execute(c stage.Context) stage.Result {
	ideaEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageIdea)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: fmt.Errorf("requirements stage: no idea artifact found")}
	}
	idea, err := artifact.DecodeData[model.IdeaSpec](ideaEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: err}
	}

	prompt := fmt.Sprintf("Idea summary: %s\nGoals: %s", idea.Summary, strings.Join(idea.Goals, "; "))
	if c.Feedback != "" {
		prompt += fmt.Sprintf("\n\nRevision feedback: %s", c.Feedback)
	}

	raw, err := c.LLM.CompleteWithSystem(c.Ctx, requirementsSystemPrompt, prompt)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: err}
	}

	prd := model.PRD{Overview: idea.Summary, Requirements: parseRequirements(raw)}

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageRequirements)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageRequirements, version, []string{prd.Overview}, []string{ideaEnv.Meta.ArtifactID}, prd)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageRequirements, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageRequirements, Err: err}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageRequirements,
		Verified:   len(prd.Requirements) > 0,
		Summary:    fmt.Sprintf("%d requirements drafted", len(prd.Requirements)),
	}
}

func parseRequirements(raw string) []model.Requirement {
	var reqs []model.Requirement
	n := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*"))
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		priority, desc := classifyPriority(line)
		if desc == "" {
			continue
		}
		n++
		reqs = append(reqs, model.Requirement{
			ID:          fmt.Sprintf("R%d", n),
			Description: desc,
			Priority:    priority,
		})
	}
	return reqs
}

func classifyPriority(line string) (priority, desc string) {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "must:"):
		return "must", strings.TrimSpace(line[len("must:"):])
	case strings.HasPrefix(lower, "should:"):
		return "should", strings.TrimSpace(line[len("should:"):])
	case strings.HasPrefix(lower, "could:"):
		return "could", strings.TrimSpace(line[len("could:"):])
	default:
		return "must", line
	}
}
