package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/llm"
	"github.com/cowork-forge/forge/internal/memory"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/stage"
	"github.com/cowork-forge/forge/internal/staticserver"
)

func newTestContext(t *testing.T, client llm.Client, userInput string) stage.Context {
	t.Helper()
	root := t.TempDir()
	workDir := filepath.Join(root, "workspace")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	return stage.Context{
		Ctx:          context.Background(),
		IterationID:  "iter-1",
		SessionID:    "session-1",
		Artifacts:    artifact.New(filepath.Join(root, ".cowork-v2", "iterations")),
		Memory:       memory.New(filepath.Join(root, ".cowork-v2")),
		Backend:      interaction.NewRecordingBackend(nil, nil),
		LLM:          client,
		Runner:       runner.New(),
		StaticServer: staticserver.New(),
		UserInput:    userInput,
		WorkingDir:   workDir,
	}
}

func TestIdeaAgent_ProducesIdeaSpec(t *testing.T) {
	client := llm.NewFakeClient("A todo list app\n- track tasks\n- mark complete")
	c := newTestContext(t, client, "a todo list app")

	result := IdeaAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, result.Kind)
	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.ArtifactID)

	env, err := c.Artifacts.Get(c.SessionID, result.ArtifactID)
	require.NoError(t, err)
	spec, err := artifact.DecodeData[model.IdeaSpec](env)
	require.NoError(t, err)
	assert.Equal(t, "a todo list app", spec.RawIdea)
	assert.NotEmpty(t, spec.Goals)
}

func TestRequirementsAgent_FailsWithoutIdeaArtifact(t *testing.T) {
	client := llm.NewFakeClient("must: do the thing")
	c := newTestContext(t, client, "")

	result := RequirementsAgent{}.Execute(c)
	assert.Equal(t, stage.ResultFailed, result.Kind)
	assert.Error(t, result.Err)
}

func TestPipeline_IdeaThroughPlan(t *testing.T) {
	client := llm.NewFakeClient(
		"A note taking app\n- capture notes\n- search notes",
		"must: capture a note\nshould: search notes\ncould: tag notes",
		"Architecture: single page app\nComponents:\n- editor\n- search index\nStack:\n- typescript\n- vite",
		"Phases:\n- scaffold project\n- implement editor\nTodos:\n- create index.html\n- wire up editor",
	)
	c := newTestContext(t, client, "a note taking app")

	ideaResult := IdeaAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, ideaResult.Kind)

	reqResult := RequirementsAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, reqResult.Kind)
	assert.True(t, reqResult.Verified)

	designResult := DesignAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, designResult.Kind)
	assert.True(t, designResult.Verified)

	planResult := PlanAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, planResult.Kind)
	assert.True(t, planResult.Verified)

	env, err := c.Artifacts.Get(c.SessionID, planResult.ArtifactID)
	require.NoError(t, err)
	plan, err := artifact.DecodeData[model.Plan](env)
	require.NoError(t, err)
	assert.Len(t, plan.TodoList.Items, 2)
}

func TestCodingAgent_WritesFilesAndRecordsChange(t *testing.T) {
	planArtifact := model.Plan{
		Summary: "one phase",
		Phases:  []string{"build it"},
		TodoList: model.TodoList{Items: []model.TodoItem{
			{ID: "T1", Description: "write index.html", Status: model.TodoStatus{Kind: model.TodoPending}},
		}},
	}
	client := llm.NewFakeClient("ignored")
	c := newTestContext(t, client, "")

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StagePlan)
	require.NoError(t, err)
	planEnv := artifact.NewEnvelope(c.SessionID, model.StagePlan, version, []string{"one phase"}, nil, planArtifact)
	_, err = c.Artifacts.Put(c.SessionID, model.StagePlan, planEnv)
	require.NoError(t, err)

	client.Responses = []string{
		"FILE: index.html\n<html><body>hello</body></html>\nEND FILE\nVerify:\n- echo ok\n",
	}

	result := CodingAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, result.Kind)

	data, err := os.ReadFile(filepath.Join(c.WorkingDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestCodingAgent_NoFileBlocksNeedsRevision(t *testing.T) {
	planArtifact := model.Plan{TodoList: model.TodoList{Items: []model.TodoItem{{ID: "T1", Description: "x"}}}}
	client := llm.NewFakeClient("I refuse to write files")
	c := newTestContext(t, client, "")

	version, _ := c.Artifacts.NextVersion(c.SessionID, model.StagePlan)
	env := artifact.NewEnvelope(c.SessionID, model.StagePlan, version, nil, nil, planArtifact)
	_, err := c.Artifacts.Put(c.SessionID, model.StagePlan, env)
	require.NoError(t, err)

	result := CodingAgent{}.Execute(c)
	assert.Equal(t, stage.ResultNeedsRevision, result.Kind)
	assert.NotEmpty(t, result.FeedbackText)
}

func TestCheckAgent_BlocksDangerousVerificationCommand(t *testing.T) {
	change := model.CodeChange{
		VerificationCommands: []model.VerificationCommand{
			{Cmd: "rm -rf /", Phase: model.PhaseCheck},
		},
	}
	client := llm.NewFakeClient("unused")
	c := newTestContext(t, client, "")

	version, _ := c.Artifacts.NextVersion(c.SessionID, model.StageCoding)
	env := artifact.NewEnvelope(c.SessionID, model.StageCoding, version, nil, nil, change)
	_, err := c.Artifacts.Put(c.SessionID, model.StageCoding, env)
	require.NoError(t, err)

	result := CheckAgent{}.Execute(c)
	// A safety-blocked verification command is fatal (spec.md §4.8), not a
	// revisable check issue: the orchestrator's ResultFailed/SafetyBlocked
	// branch pauses the iteration instead of smart-retrying or cascading
	// feedback into Coding.
	assert.Equal(t, stage.ResultFailed, result.Kind)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, forgeerr.ErrSafetyBlocked)
}

func TestCheckAgent_PassingCommandCompletes(t *testing.T) {
	change := model.CodeChange{
		VerificationCommands: []model.VerificationCommand{
			{Cmd: "echo ok", Phase: model.PhaseCheck},
		},
	}
	client := llm.NewFakeClient("unused")
	c := newTestContext(t, client, "")

	version, _ := c.Artifacts.NextVersion(c.SessionID, model.StageCoding)
	env := artifact.NewEnvelope(c.SessionID, model.StageCoding, version, nil, nil, change)
	_, err := c.Artifacts.Put(c.SessionID, model.StageCoding, env)
	require.NoError(t, err)

	result := CheckAgent{}.Execute(c)
	assert.Equal(t, stage.ResultCompleted, result.Kind)
	assert.True(t, result.Verified)
}

func TestFeedbackAgent_RoutesIssueToCoding(t *testing.T) {
	report := model.CheckReport{
		Issues: []model.Issue{{ID: "I1", Severity: model.SeverityError, Desc: "build failed", FixHint: "missing import"}},
	}
	client := llm.NewFakeClient("coding: fix the missing import")
	c := newTestContext(t, client, "")

	version, _ := c.Artifacts.NextVersion(c.SessionID, model.StageCheck)
	env := artifact.NewEnvelope(c.SessionID, model.StageCheck, version, nil, nil, report)
	_, err := c.Artifacts.Put(c.SessionID, model.StageCheck, env)
	require.NoError(t, err)

	result := FeedbackAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, result.Kind)

	fbEnv, err := c.Artifacts.Get(c.SessionID, result.ArtifactID)
	require.NoError(t, err)
	fb, err := artifact.DecodeData[model.Feedback](fbEnv)
	require.NoError(t, err)
	require.Len(t, fb.Rerun, 1)
	assert.Equal(t, model.StageCoding, fb.Rerun[0].Stage)
}

func TestDeliveryAgent_StartsStaticPreviewForVanillaHTML(t *testing.T) {
	client := llm.NewFakeClient("unused")
	c := newTestContext(t, client, "")
	require.NoError(t, os.WriteFile(filepath.Join(c.WorkingDir, "index.html"), []byte("<html></html>"), 0o644))

	result := DeliveryAgent{}.Execute(c)
	require.Equal(t, stage.ResultCompleted, result.Kind)
	assert.True(t, result.Verified)

	env, err := c.Artifacts.Get(c.SessionID, result.ArtifactID)
	require.NoError(t, err)
	report, err := artifact.DecodeData[model.DeliveryReport](env)
	require.NoError(t, err)
	assert.NotEmpty(t, report.PreviewURL)

	require.NoError(t, c.StaticServer.Stop(c.IterationID))
}
