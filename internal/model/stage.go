// Package model holds the core data types shared across THE CORE:
// iterations, artifact envelopes, stage status, and the typed stage payloads.
package model

// Stage is the canonical pipeline step name. It is a distinct type (not a
// bare string alias used interchangeably with other strings) so the
// orchestrator's switches over it are exhaustive-checkable.
type Stage string

const (
	StageIdea         Stage = "idea"
	StageRequirements Stage = "requirements"
	StageDesign       Stage = "design"
	StagePlan         Stage = "plan"
	StageCoding       Stage = "coding"
	StageCheck        Stage = "check"
	StageFeedback     Stage = "feedback"
	StageDelivery     Stage = "delivery"
)

// CanonicalOrder is the fixed pipeline sequence. Feedback is reachable only
// via the post-Check loop (§4.8 Step 4), not by normal forward progression,
// so it is not listed here, and Index-based helpers that walk the "forward"
// pipeline never visit it.
var CanonicalOrder = []Stage{
	StageIdea,
	StageRequirements,
	StageDesign,
	StagePlan,
	StageCoding,
	StageCheck,
	StageDelivery,
}

// Index returns the position of s in CanonicalOrder, or -1 if s is not a
// forward-pipeline stage (e.g. StageFeedback).
func (s Stage) Index() int {
	for i, st := range CanonicalOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Before reports whether s occurs strictly earlier than other in
// CanonicalOrder. Both stages must be forward-pipeline stages.
func (s Stage) Before(other Stage) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// RequiresHITL reports whether the canonical stage pauses for human review
// after completion, per spec.md §4.7's stage table.
func (s Stage) RequiresHITL() bool {
	switch s {
	case StageRequirements, StageDesign, StagePlan, StageCoding:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the eight canonical stages.
func (s Stage) Valid() bool {
	switch s {
	case StageIdea, StageRequirements, StageDesign, StagePlan, StageCoding, StageCheck, StageFeedback, StageDelivery:
		return true
	default:
		return false
	}
}
