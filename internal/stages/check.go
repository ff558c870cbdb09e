package stages

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/safety"
	"github.com/cowork-forge/forge/internal/stage"
)

const checkCommandTimeout = 2 * time.Minute

// CheckAgent implements the Check stage, grounded on error_analyzer.rs and
// the teacher's SafeExecutor command pattern (tactile/executor.go): every
// verification command is screened by internal/safety before it runs.
// Check never pauses for HITL review: a check that reports errors is handled
// by the orchestrator's smart retry and feedback cascade (spec.md §4.8 Steps
// 4 and 6) rather than by a human confirmation.
type CheckAgent struct{}

func (CheckAgent) Stage() model.Stage          { return model.StageCheck }
func (CheckAgent) Dependencies() []model.Stage { return []model.Stage{model.StageCoding} }
func (CheckAgent) RequiresHITLReview() bool    { return false }
func (CheckAgent) Description() string         { return "run verification commands against the code change" }

func (CheckAgent) Execute(c stage.Context) stage.Result {
	codingEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageCoding)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: fmt.Errorf("check stage: no coding artifact found")}
	}
	change, err := artifact.DecodeData[model.CodeChange](codingEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: err}
	}

	planEnv, havePlan, err := c.Artifacts.Latest(c.SessionID, model.StagePlan)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: err}
	}
	var todoTotal, todoDone int
	if havePlan {
		if plan, err := artifact.DecodeData[model.Plan](planEnv); err == nil {
			todoTotal = len(plan.TodoList.Items)
			todoDone = plan.TodoList.Completed()
		}
	}

	var results []model.CheckRunResult
	var issues []model.Issue
	for i, vc := range change.VerificationCommands {
		verdict := safety.Check(vc.Cmd, c.WorkingDir)
		if verdict.Kind == safety.ResultBlocked {
			// A safety checker block on a required verification command is
			// fatal, never a retryable/revisable check issue. No subprocess
			// is spawned; the orchestrator pauses the iteration instead of
			// smart-retrying or cascading feedback into Coding.
			return stage.Result{
				Kind:  stage.ResultFailed,
				Stage: model.StageCheck,
				Err: forgeerr.New(forgeerr.SafetyBlocked,
					fmt.Sprintf("verification command blocked by safety check: %s (%s)", vc.Cmd, verdict.Reason)),
			}
		}

		output, err := runCommand(c.Ctx, vc.Cmd, c.WorkingDir)
		passed := err == nil
		results = append(results, model.CheckRunResult{Cmd: vc.Cmd, Passed: passed, Output: output})
		if !passed {
			issues = append(issues, model.Issue{
				ID:       fmt.Sprintf("I%d", i+1),
				Severity: model.SeverityError,
				Desc:     fmt.Sprintf("command failed: %s", vc.Cmd),
				FixHint:  firstLine(output, err.Error()),
			})
		}
	}

	report := model.CheckReport{
		Results:       results,
		Issues:        issues,
		TodoCompleted: todoDone,
		TodoTotal:     todoTotal,
	}
	if todoTotal > 0 {
		report.RequirementCoveragePct = float64(todoDone) / float64(todoTotal) * 100
	}

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageCheck)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageCheck, version,
		[]string{fmt.Sprintf("%d/%d commands passed", passCount(results), len(results))},
		[]string{codingEnv.Meta.ArtifactID}, report)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageCheck, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCheck, Err: err}
	}

	if report.HasErrors() {
		return stage.Result{
			Kind:       stage.ResultNeedsRevision,
			ArtifactID: env.Meta.ArtifactID,
			Stage:      model.StageCheck,
			Verified:   false,
			Summary:    fmt.Sprintf("%d issue(s) found", len(issues)),
			FeedbackText: summarizeIssues(issues),
		}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageCheck,
		Verified:   true,
		Summary:    "all verification commands passed",
	}
}

func passCount(results []model.CheckRunResult) int {
	n := 0
	for _, r := range results {
		if r.Passed {
			n++
		}
	}
	return n
}

func summarizeIssues(issues []model.Issue) string {
	var parts []string
	for _, i := range issues {
		parts = append(parts, i.Desc)
	}
	return strings.Join(parts, "; ")
}

func runCommand(ctx context.Context, command, workingDir string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, checkCommandTimeout)
	defer cancel()

	shell, flag := "sh", "-c"
	cmd := exec.CommandContext(runCtx, shell, flag, command)
	cmd.Dir = workingDir
	output, err := cmd.CombinedOutput()
	return string(output), err
}
