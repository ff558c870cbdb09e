package orchestrator

import (
	"context"
	"time"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

// runFrom is Step 2's per-stage loop: walk CanonicalOrder from start,
// skipping already-verified stages, executing the rest, handling retries,
// revisions, HITL pauses, the post-Check feedback cascade, and GotoStage
// jumps. restartReason carries a GotoStage reason, passed as Feedback to
// the start stage when it runs (spec.md §4.8 Step 5).
func (o *Orchestrator) runFrom(ctx context.Context, start model.Stage, restartReason string) Outcome {
	stages := model.CanonicalOrder
	idx := start.Index()
	if idx < 0 {
		idx = 0
	}

	retries := map[model.Stage]int{}
	revisions := map[model.Stage]int{}
	feedbackText := ""

	for idx < len(stages) {
		st := stages[idx]
		status := o.meta.StatusOf(st)

		if o.cancelled(ctx) {
			o.iteration.Pause()
			return Outcome{Status: model.IterationPaused, LastStage: st}
		}

		if o.shouldSkip(st, status) {
			o.emit(EventStageSkipped, st, "already completed")
			idx++
			continue
		}

		agent, ok := o.registry.Get(st)
		if !ok {
			return o.fail(st, forgeerrInvariant(st))
		}

		oneShotRestart := ""
		if st == start && restartReason != "" {
			oneShotRestart = restartReason
		}

		o.emit(EventStageStarted, st, agent.Description())
		o.meta.SetStatus(st, model.InProgress(time.Now()))
		o.iteration.SetStage(st)

		result := agent.Execute(stage.Context{
			Ctx:          ctx,
			IterationID:  o.iteration.ID,
			SessionID:    o.iteration.ID,
			Artifacts:    o.artifacts,
			Memory:       o.memory,
			Backend:      o.backend,
			LLM:          o.llmClient,
			Runner:       o.runner,
			StaticServer: o.staticServer,
			UserInput:    o.originalInput,
			Feedback:     firstNonEmpty(feedbackText, oneShotRestart),
			WorkingDir:   o.workingDir,
		})
		feedbackText = ""

		switch result.Kind {
		case stage.ResultFailed:
			if kind, ok := forgeerr.KindOf(result.Err); ok && kind == forgeerr.SafetyBlocked {
				// spec.md §4.8 Fatal errors: a safety-blocked verification
				// command never retries or feeds back into Coding as a
				// revision. The stage is marked Failed{can_retry:true} (an
				// operator may still retry it explicitly) and the iteration
				// pauses immediately.
				o.meta.SetStatus(st, model.Failed(result.Err.Error(), time.Now(), true))
				o.emit(EventStageFailed, st, result.Err.Error())
				o.iteration.Pause()
				return Outcome{Status: model.IterationPaused, LastStage: st, Err: result.Err}
			}
			retries[st]++
			if retries[st] > o.cfg.MaxStageRetries {
				o.meta.SetStatus(st, model.Failed(result.Err.Error(), time.Now(), false))
				return o.fail(st, result.Err)
			}
			o.meta.SetStatus(st, model.Failed(result.Err.Error(), time.Now(), true))
			o.emit(EventStageFailed, st, result.Err.Error())
			o.sleepBackoff(ctx)
			continue // redo st

		case stage.ResultNeedsRevision:
			if st == model.StageCheck {
				next, outcome, handled := o.smartRetryCheck(ctx, result)
				if handled {
					return outcome
				}
				idx = next.Index()
				continue
			}
			revisions[st]++
			if revisions[st] > o.cfg.MaxRevisions {
				o.completeStage(st, result, false)
				o.emit(EventStageRevision, st, "revision cap reached, force-continuing")
				idx++
				continue
			}
			feedbackText = result.FeedbackText
			o.emit(EventStageRevision, st, result.FeedbackText)
			continue // redo st with feedback

		case stage.ResultCompleted:
			o.completeStage(st, result, result.Verified)
			o.emit(EventStageCompleted, st, result.Summary)

			if result.GotoNext != nil {
				return o.applyGoto(ctx, *result.GotoNext)
			}

			if st == model.StageCheck {
				if outcome, handled := o.afterCheck(ctx, result); handled {
					return outcome
				}
				idx++
				continue
			}

			if st.RequiresHITL() {
				action := o.runHITL(ctx, st, result)
				switch action.kind {
				case hitlCancel:
					o.iteration.Pause()
					return Outcome{Status: model.IterationPaused, LastStage: st}
				case hitlFeedback:
					feedbackText = action.feedbackText
					continue // redo st
				case hitlContinue:
					// fall through
				}
			}

			idx++
		}
	}

	if o.iteration.RequiredStagesComplete() {
		o.iteration.Complete(time.Now())
		o.emit(EventIterationDone, model.StageDelivery, "iteration completed")
		return Outcome{Status: model.IterationCompleted, LastStage: model.StageDelivery}
	}
	o.iteration.Fail()
	return Outcome{Status: model.IterationFailed, LastStage: model.StageDelivery, Err: forgeerrInvariant(model.StageDelivery)}
}

// shouldSkip implements Step 2's skip rule: verified-complete always skips;
// complete-but-unverified skips only for non-code HITL stages (Requirements,
// Design — reviewable as text without a build), never for Coding.
func (o *Orchestrator) shouldSkip(st model.Stage, status model.StageStatus) bool {
	if !status.IsTerminalSkippable() {
		return false
	}
	if status.Verified {
		return true
	}
	switch st {
	case model.StageRequirements, model.StageDesign:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) completeStage(st model.Stage, result stage.Result, verified bool) {
	o.meta.SetStatus(st, model.Completed(result.ArtifactID, time.Now(), verified))
	o.iteration.CompleteStage(st, result.ArtifactID)
}

func (o *Orchestrator) fail(st model.Stage, err error) Outcome {
	o.iteration.Fail()
	return Outcome{Status: model.IterationFailed, LastStage: st, Err: err}
}

func (o *Orchestrator) sleepBackoff(ctx context.Context) {
	if o.cfg.StageRetryBackoff <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(o.cfg.StageRetryBackoff) * time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeCheckReport(store *artifact.Store, sessionID, artifactID string) (model.CheckReport, error) {
	env, err := store.Get(sessionID, artifactID)
	if err != nil {
		return model.CheckReport{}, err
	}
	return artifact.DecodeData[model.CheckReport](env)
}

func decodeFeedback(env model.Envelope) (model.Feedback, error) {
	return artifact.DecodeData[model.Feedback](env)
}

func forgeerrInvariant(st model.Stage) error {
	return forgeerr.New(forgeerr.InvariantViolation, "no agent registered for stage "+string(st))
}
