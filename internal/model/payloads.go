package model

// This file holds the typed payload kinds an Envelope's Data field carries,
// one per stage, per spec.md §3-§4.7. Shapes are grounded on
// original_source/crates/cowork-core/src/artifacts/mod.rs and the
// per-stage agent files under original_source/crates/cowork-core/src/agents/.

// IdeaSpec is the Idea stage's output: the distilled one-line idea plus any
// clarifications the agent inferred without HITL (Idea never pauses).
type IdeaSpec struct {
	RawIdea      string   `json:"raw_idea"`
	Summary      string   `json:"summary"`
	Goals        []string `json:"goals"`
	Constraints  []string `json:"constraints,omitempty"`
	TargetDomain string   `json:"target_domain,omitempty"`
}

// Requirement is one numbered requirement in a PRD.
type Requirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    string `json:"priority"` // must|should|could
	Rationale   string `json:"rationale,omitempty"`
}

// PRD is the Requirements stage's output.
type PRD struct {
	Overview     string        `json:"overview"`
	Requirements []Requirement `json:"requirements"`
	OutOfScope   []string      `json:"out_of_scope,omitempty"`
}

// DesignDoc is the Design stage's output.
type DesignDoc struct {
	Architecture  string   `json:"architecture"`
	Components    []string `json:"components"`
	DataModel     string   `json:"data_model,omitempty"`
	TechStack     []string `json:"tech_stack"`
	OpenQuestions []string `json:"open_questions,omitempty"`
}

// TodoStatusKind tags the TodoItem status sum type (spec.md §3).
type TodoStatusKind string

const (
	TodoPending    TodoStatusKind = "pending"
	TodoInProgress TodoStatusKind = "in_progress"
	TodoCompleted  TodoStatusKind = "completed"
	TodoBlocked    TodoStatusKind = "blocked"
)

// TodoStatus is the Kind-tagged sum type for a TodoItem's status; Reason is
// populated only when Kind is TodoBlocked.
type TodoStatus struct {
	Kind   TodoStatusKind `json:"kind"`
	Reason string         `json:"reason,omitempty"`
}

// TodoItem is one task in a Plan's TodoList (spec.md §3).
type TodoItem struct {
	ID                 string     `json:"id"`
	Description        string     `json:"description"`
	Status             TodoStatus `json:"status"`
	RelatedRequirements []string  `json:"related_requirements,omitempty"`
	RelatedFiles        []string  `json:"related_files,omitempty"`
	VerificationMethod  string    `json:"verification_method,omitempty"`
}

// TodoList is the mutable task decomposition held in the Plan artifact and
// updated by the Coding and Check stages, never by plan regeneration
// (spec.md §3, GLOSSARY).
type TodoList struct {
	Items []TodoItem `json:"items"`
}

// Completed returns the number of items with Kind == TodoCompleted.
func (t TodoList) Completed() int {
	n := 0
	for _, item := range t.Items {
		if item.Status.Kind == TodoCompleted {
			n++
		}
	}
	return n
}

// Plan is the Plan stage's output.
type Plan struct {
	Summary  string   `json:"summary"`
	Phases   []string `json:"phases"`
	TodoList TodoList `json:"todo_list"`
}

// FileChangeKind is the sum type tag for a planned file change.
type FileChangeKind string

const (
	FileCreate FileChangeKind = "create"
	FileModify FileChangeKind = "modify"
	FileDelete FileChangeKind = "delete"
)

// FileChange is one file touched by a CodeChange (spec.md §3).
type FileChange struct {
	Path string         `json:"path"`
	Kind FileChangeKind `json:"kind"`
	Note string         `json:"note,omitempty"`
}

// VerificationPhase is the sum type tag for when a verification command runs.
type VerificationPhase string

const (
	PhaseCheck VerificationPhase = "check"
	PhaseBuild VerificationPhase = "build"
	PhaseTest  VerificationPhase = "test"
	PhaseLint  VerificationPhase = "lint"
	PhaseRun   VerificationPhase = "run"
)

// VerificationCommand is one command the Check stage (or a manual reviewer)
// should run to validate a CodeChange.
type VerificationCommand struct {
	Cmd    string            `json:"cmd"`
	Expect string            `json:"expect,omitempty"`
	Phase  VerificationPhase `json:"phase"`
}

// RequirementMapping links a requirement to the files that implement it.
type RequirementMapping struct {
	ReqID string   `json:"req_id"`
	Files []string `json:"files"`
	Note  string   `json:"note,omitempty"`
}

// CodeChange is the Coding stage's plan-of-record (spec.md §3, §4.7).
type CodeChange struct {
	Language             string                `json:"language"`
	Stack                []string              `json:"stack"`
	ProjectLayout        string                `json:"project_layout,omitempty"`
	Files                []FileChange          `json:"files"`
	VerificationCommands []VerificationCommand `json:"verification_commands"`
	RequirementMap       []RequirementMapping  `json:"requirement_map,omitempty"`
}

// IssueSeverity is the sum type tag for a CheckReport issue.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// Issue is one finding in a CheckReport.
type Issue struct {
	ID       string        `json:"id"`
	Severity IssueSeverity `json:"severity"`
	Desc     string        `json:"desc"`
	FixHint  string        `json:"fix_hint,omitempty"`
}

// CheckRunResult is one executed verification command's outcome.
type CheckRunResult struct {
	Cmd     string `json:"cmd"`
	Passed  bool   `json:"passed"`
	Output  string `json:"output,omitempty"`
}

// CheckReport is the Check stage's output (spec.md §3).
type CheckReport struct {
	Results               []CheckRunResult `json:"results"`
	Issues                []Issue          `json:"issues"`
	TodoCompleted         int              `json:"todo_completed"`
	TodoTotal             int              `json:"todo_total"`
	RequirementCoveragePct float64         `json:"requirement_coverage_pct"`
}

// HasErrors reports whether the report contains any error-severity issue.
func (c CheckReport) HasErrors() bool {
	for _, i := range c.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FeedbackDelta is one change the Feedback stage wants applied against a
// target stage (the actual rewriting happens when that stage re-runs).
type FeedbackDelta struct {
	TargetStage Stage  `json:"target_stage"`
	Change      string `json:"change"`
}

// FeedbackRerun names a stage the Feedback stage wants re-executed and why.
type FeedbackRerun struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Feedback is the Feedback stage's output (spec.md §3).
type Feedback struct {
	Delta []FeedbackDelta `json:"delta"`
	Rerun []FeedbackRerun `json:"rerun"`
}

// EarliestRerun returns the earliest canonical-order stage named in Rerun,
// and whether any were found (spec.md §4.8 Step 4.3).
func (f Feedback) EarliestRerun() (Stage, bool) {
	best := -1
	var bestStage Stage
	for _, r := range f.Rerun {
		idx := r.Stage.Index()
		if idx < 0 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
			bestStage = r.Stage
		}
	}
	return bestStage, best != -1
}

// DeliveryReport is the Delivery stage's output (spec.md §3).
type DeliveryReport struct {
	WorkspacePath string   `json:"workspace_path"`
	EntryFiles    []string `json:"entry_files"`
	PreviewURL    string   `json:"preview_url,omitempty"`
	Notes         []string `json:"notes,omitempty"`
}
