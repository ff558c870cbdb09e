// Package stages implements the eight canonical stage agents (spec.md
// §4.7), one file per stage, grounded on the per-agent responsibilities of
// original_source/crates/cowork-core/src/agents/*.rs and laid out the way
// the teacher splits its specialist shards one file per kind.
package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const ideaSystemPrompt = "You distill a raw product idea into a one-line summary, a short goal list, and any constraints implied by the wording. Be concrete; do not invent requirements the idea does not imply."

// IdeaAgent implements the Idea stage, grounded on idea_intake.rs. It never
// pauses for HITL review (spec.md §4.7's stage table).
type IdeaAgent struct{}

func (IdeaAgent) Stage() model.Stage          { return model.StageIdea }
func (IdeaAgent) Dependencies() []model.Stage { return nil }
func (IdeaAgent) RequiresHITLReview() bool    { return false }
func (IdeaAgent) Description() string         { return "distill the raw idea into goals and constraints" }

func (IdeaAgent) Execute(c stage.Context) stage.Result {
	prompt := fmt.Sprintf("Idea: %s", c.UserInput)
	if c.Feedback != "" {
		prompt += fmt.Sprintf("\n\nRevision feedback: %s", c.Feedback)
	}

	raw, err := c.LLM.CompleteWithSystem(c.Ctx, ideaSystemPrompt, prompt)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageIdea, Err: err}
	}

	spec := model.IdeaSpec{
		RawIdea: c.UserInput,
		Summary: firstLine(raw, c.UserInput),
		Goals:   splitBullets(raw),
	}

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageIdea)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageIdea, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageIdea, version, []string{spec.Summary}, nil, spec)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageIdea, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageIdea, Err: err}
	}

	return stage.Result{Kind: stage.ResultCompleted, ArtifactID: env.Meta.ArtifactID, Stage: model.StageIdea, Verified: true, Summary: spec.Summary}
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// splitBullets pulls "- " or "* " prefixed lines out of raw LLM output into
// a goal list, falling back to the whole response as a single goal.
func splitBullets(raw string) []string {
	var goals []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		trimmed := strings.TrimLeft(line, "-*")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed != "" && trimmed != line {
			goals = append(goals, trimmed)
		}
	}
	if len(goals) == 0 && strings.TrimSpace(raw) != "" {
		goals = append(goals, strings.TrimSpace(raw))
	}
	return goals
}
