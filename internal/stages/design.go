package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const designSystemPrompt = "You turn a PRD into a design document: pick an architecture, list components, note the data model if any, and name the tech stack. Reply with an \"Architecture:\" line, then \"Components:\" bullets, then \"Stack:\" bullets."

// DesignAgent implements the Design stage, grounded on design_agent.rs. It
// pauses for HITL review (spec.md §4.7's stage table).
type DesignAgent struct{}

func (DesignAgent) Stage() model.Stage          { return model.StageDesign }
func (DesignAgent) Dependencies() []model.Stage { return []model.Stage{model.StageRequirements} }
func (DesignAgent) RequiresHITLReview() bool    { return true }
func (DesignAgent) Description() string         { return "turn the PRD into an architecture and component design" }

func (DesignAgent) Execute(c stage.Context) stage.Result {
	prdEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageRequirements)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: fmt.Errorf("design stage: no requirements artifact found")}
	}
	prd, err := artifact.DecodeData[model.PRD](prdEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: err}
	}

	var reqLines []string
	for _, r := range prd.Requirements {
		reqLines = append(reqLines, fmt.Sprintf("%s (%s): %s", r.ID, r.Priority, r.Description))
	}
	prompt := fmt.Sprintf("PRD overview: %s\nRequirements:\n%s", prd.Overview, strings.Join(reqLines, "\n"))
	if c.Feedback != "" {
		prompt += fmt.Sprintf("\n\nRevision feedback: %s", c.Feedback)
	}

	raw, err := c.LLM.CompleteWithSystem(c.Ctx, designSystemPrompt, prompt)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: err}
	}

	doc := parseDesignDoc(raw)

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageDesign)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageDesign, version, []string{doc.Architecture}, []string{prdEnv.Meta.ArtifactID}, doc)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageDesign, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDesign, Err: err}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageDesign,
		Verified:   len(doc.Components) > 0,
		Summary:    doc.Architecture,
	}
}

func parseDesignDoc(raw string) model.DesignDoc {
	var doc model.DesignDoc
	section := ""
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "architecture:"):
			doc.Architecture = strings.TrimSpace(trimmed[len("architecture:"):])
			section = ""
			continue
		case strings.HasPrefix(lower, "components:"):
			section = "components"
			continue
		case strings.HasPrefix(lower, "stack:"):
			section = "stack"
			continue
		case strings.HasPrefix(lower, "data model:"):
			doc.DataModel = strings.TrimSpace(trimmed[len("data model:"):])
			section = ""
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*"))
		if item == "" {
			continue
		}
		switch section {
		case "components":
			doc.Components = append(doc.Components, item)
		case "stack":
			doc.TechStack = append(doc.TechStack, item)
		}
	}
	if doc.Architecture == "" {
		doc.Architecture = firstLine(raw, "unspecified architecture")
	}
	return doc
}
