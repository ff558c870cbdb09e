package orchestrator

import (
	"context"

	"github.com/cowork-forge/forge/internal/stage"
)

// applyGoto implements Step 5: clear the target stage and every later
// stage (same mechanism as the feedback cascade), record the reason in the
// session meta's RestartReason so the target stage sees it exactly once on
// its next execution, and resume there.
func (o *Orchestrator) applyGoto(ctx context.Context, g stage.Goto) Outcome {
	o.emit(EventGotoJump, g.Target, g.Reason)
	o.iteration.ClearFrom(g.Target)
	o.meta.ClearFrom(g.Target)
	reason := g.Reason
	o.meta.RestartReason = &reason
	outcome := o.runFrom(ctx, g.Target, g.Reason)
	o.meta.RestartReason = nil
	return outcome
}
