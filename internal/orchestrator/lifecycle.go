package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cowork-forge/forge/internal/flog"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/iteration"
	"github.com/cowork-forge/forge/internal/model"
)

// Run starts the iteration from scratch (spec.md §4.8 Step 1, the non-resume
// path): a genesis iteration always starts at Idea; an evolution iteration's
// start stage is computed by keyword classification against its description.
func (o *Orchestrator) Run(ctx context.Context, userInput string) Outcome {
	o.originalInput = userInput
	start := iteration.DetermineStartStage(o.iteration)
	o.iteration.Start(time.Now())
	return o.runFrom(ctx, start, "")
}

// Resume continues a paused or partially-completed iteration from
// resumeFrom, after verifying every preceding stage is Completed{verified:
// true} (spec.md §4.8 Step 1's resume_from branch). Any preceding stage in
// another state, Failed{can_retry:true} included, blocks the resume with an
// InvariantViolation error; such a stage is retried by choosing it as
// resumeFrom.
func (o *Orchestrator) Resume(ctx context.Context, resumeFrom model.Stage) Outcome {
	if err := o.verifyPrecedingComplete(resumeFrom); err != nil {
		return Outcome{Status: model.IterationFailed, LastStage: resumeFrom, Err: err}
	}
	o.iteration.Resume()
	return o.runFrom(ctx, resumeFrom, "")
}

func (o *Orchestrator) verifyPrecedingComplete(resumeFrom model.Stage) error {
	targetIdx := resumeFrom.Index()
	if targetIdx < 0 {
		return forgeerr.New(forgeerr.InvariantViolation, fmt.Sprintf("resume target %q is not a forward-pipeline stage", resumeFrom))
	}
	for _, s := range model.CanonicalOrder {
		if s.Index() >= targetIdx {
			break
		}
		status := o.meta.StatusOf(s)
		if !status.IsCompletedVerified() {
			return forgeerr.New(forgeerr.InvariantViolation,
				fmt.Sprintf("cannot resume from %s: preceding stage %s is not Completed{verified:true} (status=%s)", resumeFrom, s, status.Kind))
		}
	}
	return nil
}

func (o *Orchestrator) emit(kind EventKind, st model.Stage, msg string) {
	flog.Get(flog.CategoryOrchestrator).Infow(string(kind), "stage", st, "message", msg)
}
