package stages

import (
	"fmt"
	"strings"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/filetool"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

const codingSystemPrompt = "You implement a plan's todo list as a set of files. Reply with one or more file blocks: a line \"FILE: <path>\" followed by the file's full contents, then a line \"END FILE\". After the file blocks, a \"Verify:\" bullet list of shell commands that build or test the result."

// CodingAgent implements the Coding stage, grounded on
// code_executor.rs/code_updater.rs. It writes files to the iteration's
// working directory through internal/filetool and pauses for HITL review
// (spec.md §4.7's stage table).
type CodingAgent struct{}

func (CodingAgent) Stage() model.Stage          { return model.StageCoding }
func (CodingAgent) Dependencies() []model.Stage { return []model.Stage{model.StagePlan} }
func (CodingAgent) RequiresHITLReview() bool    { return true }
func (CodingAgent) Description() string         { return "implement the plan's todo list as files on disk" }

func (CodingAgent) Execute(c stage.Context) stage.Result {
	planEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StagePlan)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: err}
	}
	if !ok {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: fmt.Errorf("coding stage: no plan artifact found")}
	}
	plan, err := artifact.DecodeData[model.Plan](planEnv)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: err}
	}

	var todoLines []string
	for _, item := range plan.TodoList.Items {
		todoLines = append(todoLines, fmt.Sprintf("- %s: %s", item.ID, item.Description))
	}
	prompt := fmt.Sprintf("Plan summary: %s\nTodos:\n%s", plan.Summary, strings.Join(todoLines, "\n"))
	if c.Feedback != "" {
		prompt += fmt.Sprintf("\n\nRevision feedback: %s", c.Feedback)
	}

	raw, err := c.LLM.CompleteWithSystem(c.Ctx, codingSystemPrompt, prompt)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: err}
	}

	files, verify := parseFileBlocks(raw)
	if len(files) == 0 {
		return stage.Result{Kind: stage.ResultNeedsRevision, Stage: model.StageCoding, FeedbackText: "no file blocks produced; the response did not follow the FILE/END FILE format"}
	}

	editor := filetool.NewEditor(c.WorkingDir)
	var changes []model.FileChange
	for _, f := range files {
		lines := strings.Split(f.content, "\n")
		kind := model.FileCreate
		if editor.FileExists(f.path) {
			kind = model.FileModify
		}
		if _, err := editor.WriteFile(f.path, lines); err != nil {
			return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: fmt.Errorf("writing %s: %w", f.path, err)}
		}
		changes = append(changes, model.FileChange{Path: f.path, Kind: kind})
	}

	change := model.CodeChange{
		Language:             inferLanguage(files),
		Files:                changes,
		VerificationCommands: parseVerificationCommands(verify),
	}

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageCoding)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: err}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageCoding, version, []string{fmt.Sprintf("%d files changed", len(changes))}, []string{planEnv.Meta.ArtifactID}, change)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageCoding, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageCoding, Err: err}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageCoding,
		Verified:   true,
		Summary:    fmt.Sprintf("%d files written", len(changes)),
	}
}

type codeFile struct {
	path    string
	content string
}

func parseFileBlocks(raw string) ([]codeFile, []string) {
	var files []codeFile
	var verify []string
	var current *codeFile
	var body []string
	inVerify := false

	flush := func() {
		if current != nil {
			current.content = strings.Join(body, "\n")
			files = append(files, *current)
			current = nil
			body = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "FILE:"):
			flush()
			path := strings.TrimSpace(strings.TrimPrefix(trimmed, "FILE:"))
			current = &codeFile{path: path}
			inVerify = false
			continue
		case trimmed == "END FILE":
			flush()
			continue
		case strings.HasPrefix(strings.ToLower(trimmed), "verify:"):
			flush()
			inVerify = true
			continue
		}
		if current != nil {
			body = append(body, line)
		} else if inVerify {
			item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*"))
			if item != "" {
				verify = append(verify, item)
			}
		}
	}
	flush()
	return files, verify
}

func parseVerificationCommands(cmds []string) []model.VerificationCommand {
	var out []model.VerificationCommand
	for _, cmd := range cmds {
		out = append(out, model.VerificationCommand{Cmd: cmd, Phase: model.PhaseCheck})
	}
	return out
}

func inferLanguage(files []codeFile) string {
	for _, f := range files {
		switch {
		case strings.HasSuffix(f.path, ".go"):
			return "go"
		case strings.HasSuffix(f.path, ".rs"):
			return "rust"
		case strings.HasSuffix(f.path, ".ts"), strings.HasSuffix(f.path, ".tsx"):
			return "typescript"
		case strings.HasSuffix(f.path, ".js"), strings.HasSuffix(f.path, ".jsx"):
			return "javascript"
		case strings.HasSuffix(f.path, ".py"):
			return "python"
		}
	}
	return "unknown"
}
