package model

// SessionMeta is the persisted per-iteration orchestrator bookkeeping
// record, `meta.json` under `.cowork-v2/iterations/<id>/` (spec.md §6).
type SessionMeta struct {
	SessionID  string                  `json:"session_id"`
	CreatedAt  int64                   `json:"created_at"` // unix seconds
	CurrentStage *Stage                `json:"current_stage,omitempty"`
	StageStatus map[Stage]StageStatus  `json:"stage_status"`

	FeedbackIterations    int `json:"feedback_iterations"`
	MaxFeedbackIterations int `json:"max_feedback_iterations"`

	ModificationContext *string `json:"modification_context,omitempty"`
	RestartReason       *string `json:"restart_reason,omitempty"`
}

// DefaultMaxFeedbackIterations is the default cap from spec.md §4.8 Step 4.1.
const DefaultMaxFeedbackIterations = 20

// NewSessionMeta constructs a fresh SessionMeta with defaults applied.
func NewSessionMeta(sessionID string, createdAt int64) *SessionMeta {
	return &SessionMeta{
		SessionID:             sessionID,
		CreatedAt:             createdAt,
		StageStatus:           map[Stage]StageStatus{},
		MaxFeedbackIterations: DefaultMaxFeedbackIterations,
	}
}

// StatusOf returns the StageStatus for stage, defaulting to NotStarted.
func (m *SessionMeta) StatusOf(stage Stage) StageStatus {
	if s, ok := m.StageStatus[stage]; ok {
		return s
	}
	return NotStarted()
}

// SetStatus records status for stage.
func (m *SessionMeta) SetStatus(stage Stage, status StageStatus) {
	if m.StageStatus == nil {
		m.StageStatus = map[Stage]StageStatus{}
	}
	m.StageStatus[stage] = status
}

// ClearFrom resets stage and every later canonical stage to NotStarted
// (used alongside Iteration.ClearFrom by the feedback cascade and GotoStage).
func (m *SessionMeta) ClearFrom(stage Stage) {
	idx := stage.Index()
	if idx < 0 {
		return
	}
	for _, s := range CanonicalOrder {
		if s.Index() >= idx {
			delete(m.StageStatus, s)
		}
	}
}
