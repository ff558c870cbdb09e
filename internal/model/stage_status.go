package model

import "time"

// StageStatusKind tags which arm of StageStatus is populated. Go has no
// native sum types; this Kind-tagged struct is the idiomatic substitute
// spec.md §9 asks for ("sum types ... keep matches exhaustive").
type StageStatusKind string

const (
	StatusNotStarted StageStatusKind = "not_started"
	StatusInProgress StageStatusKind = "in_progress"
	StatusCompleted  StageStatusKind = "completed"
	StatusFailed     StageStatusKind = "failed"
)

// StageStatus is the per-iteration, per-stage status described in spec.md
// §3. Only the fields relevant to Kind are populated; callers must switch
// on Kind before reading the others.
type StageStatus struct {
	Kind StageStatusKind `json:"kind"`

	// InProgress
	StartedAt time.Time `json:"started_at,omitempty"`

	// Completed
	ArtifactID  string    `json:"artifact_id,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Verified    bool      `json:"verified,omitempty"`

	// Failed
	Error    string    `json:"error,omitempty"`
	FailedAt time.Time `json:"failed_at,omitempty"`
	CanRetry bool      `json:"can_retry,omitempty"`
}

// NotStarted constructs the NotStarted arm.
func NotStarted() StageStatus { return StageStatus{Kind: StatusNotStarted} }

// InProgress constructs the InProgress arm.
func InProgress(startedAt time.Time) StageStatus {
	return StageStatus{Kind: StatusInProgress, StartedAt: startedAt}
}

// Completed constructs the Completed arm.
func Completed(artifactID string, completedAt time.Time, verified bool) StageStatus {
	return StageStatus{
		Kind:        StatusCompleted,
		ArtifactID:  artifactID,
		CompletedAt: completedAt,
		Verified:    verified,
	}
}

// Failed constructs the Failed arm.
func Failed(err string, failedAt time.Time, canRetry bool) StageStatus {
	return StageStatus{
		Kind:     StatusFailed,
		Error:    err,
		FailedAt: failedAt,
		CanRetry: canRetry,
	}
}

// IsCompletedVerified reports whether this status is Completed with
// Verified set — the condition spec.md §4.8 Step 1 requires of every
// preceding stage before a resume_from jump is honored.
func (s StageStatus) IsCompletedVerified() bool {
	return s.Kind == StatusCompleted && s.Verified
}

// IsTerminalSkippable reports whether the orchestrator should skip
// re-running this stage (§4.8 Step 2): verified-complete always skips;
// complete-but-unverified skips only for non-code HITL stages, decided
// by the caller (it needs the Stage, not just the status).
func (s StageStatus) IsTerminalSkippable() bool {
	return s.Kind == StatusCompleted
}
