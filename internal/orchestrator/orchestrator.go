// Package orchestrator implements C8, the stage-graph scheduler that is
// the heart of the design (spec.md §4.8): start-stage determination,
// per-stage skip/execute/retry, HITL confirmation, the post-Check feedback
// cascade, GotoStage jumps, Check-driven smart retry, and cancellation.
//
// This file contains no declarations. The orchestrator is modularized into
// several files:
//
// - types.go: Orchestrator struct, Config, event types
// - init.go: constructor and default stage registry
// - lifecycle.go: Run/Resume entry points, Step 1 start-stage determination
// - stages.go: the Step 2 per-stage skip/execute/retry/revision loop
// - hitl.go: Step 3 HITL confirmation handling
// - feedback.go: Step 4 feedback-loop cascade
// - goto.go: Step 5 GotoStage handling
// - smart_retry.go: Step 6 Check<->Coding targeted-fix retries
// - cancel.go: cancellation handling (§5)
package orchestrator
