package orchestrator

import (
	"context"
	"fmt"

	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

// afterCheck implements Step 4's entry point for a Check stage that
// completed without critical errors but still raised issues (warnings,
// info): route them through the Feedback agent and cascade if it names a
// rerun target. handled=true means outcome is the call's terminal result;
// handled=false means the caller should proceed to Delivery as normal.
func (o *Orchestrator) afterCheck(ctx context.Context, checkResult stage.Result) (outcome Outcome, handled bool) {
	report, err := decodeCheckReport(o.artifacts, o.iteration.ID, checkResult.ArtifactID)
	if err != nil || len(report.Issues) == 0 {
		return Outcome{}, false
	}
	return o.runFeedbackCascade(ctx, checkResult.ArtifactID)
}

// runFeedbackCascade runs the Feedback agent against the latest Check
// report and, if it names a rerun target, clears that stage and every
// later stage (spec.md §4.8 Step 4.3) before resuming from there. Bounded
// by MaxFeedbackIterations (default 20); exceeding the bound is a fatal
// stop (the orchestrator cannot make forward progress).
func (o *Orchestrator) runFeedbackCascade(ctx context.Context, checkArtifactID string) (Outcome, bool) {
	if o.meta.FeedbackIterations >= o.cfg.MaxFeedbackIterations {
		return o.fail(model.StageFeedback, forgeerr.New(forgeerr.InvariantViolation,
			fmt.Sprintf("feedback cascade exceeded max_feedback_iterations (%d)", o.cfg.MaxFeedbackIterations))), true
	}

	agent, ok := o.registry.Get(model.StageFeedback)
	if !ok {
		return o.fail(model.StageFeedback, forgeerrInvariant(model.StageFeedback)), true
	}

	result := agent.Execute(stage.Context{
		Ctx:         ctx,
		IterationID: o.iteration.ID,
		SessionID:   o.iteration.ID,
		Artifacts:   o.artifacts,
		Memory:      o.memory,
		Backend:     o.backend,
		LLM:         o.llmClient,
		UserInput:   o.originalInput,
		WorkingDir:  o.workingDir,
	})
	if result.Kind != stage.ResultCompleted {
		return o.fail(model.StageFeedback, result.Err), true
	}

	env, err := o.artifacts.Get(o.iteration.ID, result.ArtifactID)
	if err != nil {
		return o.fail(model.StageFeedback, err), true
	}
	fb, err := decodeFeedback(env)
	if err != nil {
		return o.fail(model.StageFeedback, err), true
	}

	target, ok := fb.EarliestRerun()
	if !ok {
		// Nothing to re-run; proceed as if Check had no issues. No rerun
		// target means no iteration actually happened, so the counter stays
		// untouched (spec.md §8's empty delta+rerun round-trip law).
		return Outcome{}, false
	}
	o.meta.FeedbackIterations++

	o.emit(EventFeedbackCascade, target, "cascading from feedback")
	o.iteration.ClearFrom(target)
	o.meta.ClearFrom(target)
	return o.runFrom(ctx, target, ""), true
}
