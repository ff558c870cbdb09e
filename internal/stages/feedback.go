package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const feedbackSystemPrompt = "You read a check report's issues and decide which earlier stage each issue should be re-run against: requirements, design, plan, or coding. Reply with one line per issue: \"<stage>: <what to change>\". Use \"coding\" when in doubt."

// FeedbackAgent implements the Feedback stage, grounded on error_analyzer.rs
// and reached only via the post-Check loop (spec.md §4.8 Step 4), never by
// forward progression.
type FeedbackAgent struct{}

func (FeedbackAgent) Stage() model.Stage          { return model.StageFeedback }
func (FeedbackAgent) Dependencies() []model.Stage { return []model.Stage{model.StageCheck} }
func (FeedbackAgent) RequiresHITLReview() bool    { return false }
func (FeedbackAgent) Description() string         { return "route check issues back to the stage that should fix them" }

func (FeedbackAgent) Execute(c stage.Context) stage.Result {
	checkEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageCheck)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: fmt.Errorf("feedback stage: no check artifact found")}
	}
	report, err := artifact.DecodeData[model.CheckReport](checkEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: err}
	}

	if len(report.Issues) == 0 {
		fb := model.Feedback{}
		return putFeedback(c, checkEnv.Meta.ArtifactID, fb, "no issues to route")
	}

	var issueLines []string
	for _, issue := range report.Issues {
		issueLines = append(issueLines, fmt.Sprintf("%s [%s]: %s (%s)", issue.ID, issue.Severity, issue.Desc, issue.FixHint))
	}
	raw, err := c.LLM.CompleteWithSystem(c.Ctx, feedbackSystemPrompt, strings.Join(issueLines, "\n"))
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: err}
	}

	fb := parseFeedback(raw, report.Issues)
	return putFeedback(c, checkEnv.Meta.ArtifactID, fb, fmt.Sprintf("%d rerun(s) routed", len(fb.Rerun)))
}

func putFeedback(c stage.Context, prevArtifactID string, fb model.Feedback, summary string) stage.Result {
	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageFeedback)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageFeedback, version, []string{summary}, []string{prevArtifactID}, fb)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageFeedback, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageFeedback, Err: err}
	}
	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageFeedback,
		Verified:   true,
		Summary:    summary,
	}
}

var feedbackStageNames = map[string]model.Stage{
	"requirements": model.StageRequirements,
	"design":       model.StageDesign,
	"plan":         model.StagePlan,
	"coding":       model.StageCoding,
}

func parseFeedback(raw string, issues []model.Issue) model.Feedback {
	var fb model.Feedback
	seen := map[model.Stage]bool{}
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		idx := strings.IndexByte(trimmed, ':')
		if idx < 0 {
			continue
		}
		stageName := strings.ToLower(strings.TrimSpace(trimmed[:idx]))
		change := strings.TrimSpace(trimmed[idx+1:])
		target, ok := feedbackStageNames[stageName]
		if !ok {
			target = model.StageCoding
		}
		reason := change
		if i < len(issues) {
			reason = issues[i].Desc
		}
		fb.Delta = append(fb.Delta, model.FeedbackDelta{TargetStage: target, Change: change})
		if !seen[target] {
			seen[target] = true
			fb.Rerun = append(fb.Rerun, model.FeedbackRerun{Stage: target, Reason: reason})
		}
	}
	if len(fb.Rerun) == 0 && len(issues) > 0 {
		fb.Rerun = append(fb.Rerun, model.FeedbackRerun{Stage: model.StageCoding, Reason: issues[0].Desc})
		fb.Delta = append(fb.Delta, model.FeedbackDelta{TargetStage: model.StageCoding, Change: issues[0].Desc})
	}
	return fb
}
