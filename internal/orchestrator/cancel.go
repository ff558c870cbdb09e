package orchestrator

import "context"

// cancelled implements spec.md §5's cooperative cancellation: checked at
// every stage boundary and HITL pause point. A cancelled context always
// counts; otherwise the interaction backend is asked directly.
func (o *Orchestrator) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return o.backend.Cancelled(ctx)
}
