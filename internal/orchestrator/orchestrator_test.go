package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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

// newStores builds a fresh artifact/memory store rooted under a temp dir,
// plus the working directory an iteration's coding/check/delivery stages
// write into and run against.
func newStores(t *testing.T) (*artifact.Store, *memory.Store, string) {
	t.Helper()
	root := t.TempDir()
	workDir := filepath.Join(root, "workspace")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	return artifact.New(filepath.Join(root, ".cowork-v2", "iterations")), memory.New(filepath.Join(root, ".cowork-v2")), workDir
}

// funcAgent is a minimal, fully-scripted stage.Agent used to exercise
// orchestrator mechanics (cascade, goto, resume, cancellation) in isolation
// from the real stage implementations' LLM-text parsing.
type funcAgent struct {
	stg  model.Stage
	deps []model.Stage
	hitl bool
	fn   func(call int, c stage.Context) stage.Result

	calls int
}

func (a *funcAgent) Stage() model.Stage          { return a.stg }
func (a *funcAgent) Dependencies() []model.Stage { return a.deps }
func (a *funcAgent) RequiresHITLReview() bool    { return a.hitl }
func (a *funcAgent) Description() string         { return string(a.stg) }
func (a *funcAgent) Execute(c stage.Context) stage.Result {
	a.calls++
	return a.fn(a.calls, c)
}

func simpleCompleted(stg model.Stage) *funcAgent {
	return &funcAgent{stg: stg, fn: func(call int, c stage.Context) stage.Result {
		return stage.Result{
			Kind:       stage.ResultCompleted,
			ArtifactID: "art-" + string(stg),
			Stage:      stg,
			Verified:   true,
			Summary:    "ok",
		}
	}}
}

// ---- Scenario 1: genesis happy path, real stage registry ----

func TestRun_GenesisHappyPath(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	client := llm.NewFakeClient(
		"A note taking app\n- capture notes\n- search notes",
		"must: capture a note\nshould: search notes\ncould: tag notes",
		"Architecture: single page app\nComponents:\n- editor\n- search index\nStack:\n- typescript\n- vite",
		"Phases:\n- scaffold project\n- implement editor\nTodos:\n- create index.html\n- wire up editor",
		"FILE: index.html\n<html><body>hello</body></html>\nEND FILE\nVerify:\n- echo ok\n",
	)
	backend := interaction.NewRecordingBackend(nil, nil) // defaults to Continue on every HITL prompt
	ss := staticserver.New()
	t.Cleanup(func() { _ = ss.Stop("iter-1") })

	it := model.NewGenesis("iter-1", 1, "Note app", "a note taking app", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	orc := New(DefaultConfig(), artifacts, mem, backend, client, runner.New(), ss, DefaultRegistry(), it, meta, workDir)

	outcome := orc.Run(context.Background(), "a note taking app")
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.IterationCompleted, outcome.Status)
	assert.True(t, it.RequiredStagesComplete())
	assert.Equal(t, model.IterationCompleted, it.Status)

	// Every HITL stage (Requirements, Design, Plan, Coding) should have
	// prompted for confirmation exactly once.
	hitlPrompts := 0
	for _, c := range backend.Calls {
		if c.Method == "RequestConfirmationWithFeedback" {
			hitlPrompts++
		}
	}
	assert.Equal(t, 4, hitlPrompts)
}

// ---- Scenario 2: Check-driven smart retry (Step 6), real registry ----

func TestSmartRetryCheck_FixesFailingVerificationCommand(t *testing.T) {
	artifacts, mem, workDir := newStores(t)

	it := model.NewGenesis("iter-2", 1, "Static page", "a static page", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	plan := model.Plan{
		Summary: "single page",
		TodoList: model.TodoList{Items: []model.TodoItem{
			{ID: "T1", Description: "write index.html"},
		}},
	}
	planVersion, err := artifacts.NextVersion(it.ID, model.StagePlan)
	require.NoError(t, err)
	planEnv := artifact.NewEnvelope(it.ID, model.StagePlan, planVersion, []string{"single page"}, nil, plan)
	_, err = artifacts.Put(it.ID, model.StagePlan, planEnv)
	require.NoError(t, err)

	// A command that fails (nonzero exit) rather than one the safety
	// checker blocks: a safety block is fatal (see
	// TestCheckAgent_SafetyBlockIsFatalAndPauses) and must never enter
	// this smart-retry path.
	failingChange := model.CodeChange{
		VerificationCommands: []model.VerificationCommand{{Cmd: "exit 1", Phase: model.PhaseCheck}},
	}
	codingVersion, err := artifacts.NextVersion(it.ID, model.StageCoding)
	require.NoError(t, err)
	codingEnv := artifact.NewEnvelope(it.ID, model.StageCoding, codingVersion, nil, []string{planEnv.Meta.ArtifactID}, failingChange)
	_, err = artifacts.Put(it.ID, model.StageCoding, codingEnv)
	require.NoError(t, err)

	for _, st := range []model.Stage{model.StageIdea, model.StageRequirements, model.StageDesign, model.StagePlan} {
		meta.SetStatus(st, model.Completed("art-"+string(st), time.Now(), true))
		it.CompleteStage(st, "art-"+string(st))
	}
	meta.SetStatus(model.StageCoding, model.Completed(codingEnv.Meta.ArtifactID, time.Now(), true))
	it.CompleteStage(model.StageCoding, codingEnv.Meta.ArtifactID)

	client := llm.NewFakeClient("FILE: index.html\n<html></html>\nEND FILE\nVerify:\n- echo fixed\n")
	backend := interaction.NewRecordingBackend(nil, nil)
	ss := staticserver.New()
	t.Cleanup(func() { _ = ss.Stop(it.ID) })

	orc := New(DefaultConfig(), artifacts, mem, backend, client, runner.New(), ss, DefaultRegistry(), it, meta, workDir)

	outcome := orc.Resume(context.Background(), model.StageCheck)
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.IterationCompleted, outcome.Status)

	data, err := os.ReadFile(filepath.Join(workDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html></html>")
}

// ---- Scenario 3: post-Check feedback cascade (Step 4), scripted registry ----

func TestFeedbackCascade_ReroutesToCodingThenCompletes(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-3", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	codingAgent := &funcAgent{stg: model.StageCoding, fn: func(call int, c stage.Context) stage.Result {
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: "coding-v", Stage: model.StageCoding, Verified: true, Summary: "coded"}
	}}

	checkAgent := &funcAgent{stg: model.StageCheck, fn: func(call int, c stage.Context) stage.Result {
		issues := []model.Issue{}
		if call == 1 {
			issues = append(issues, model.Issue{ID: "W1", Severity: model.SeverityWarning, Desc: "minor nit"})
		}
		env := artifact.NewEnvelope(c.SessionID, model.StageCheck, call, nil, nil, model.CheckReport{Issues: issues})
		_, err := c.Artifacts.Put(c.SessionID, model.StageCheck, env)
		require.NoError(t, err)
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: env.Meta.ArtifactID, Stage: model.StageCheck, Verified: true, Summary: "checked"}
	}}

	feedbackAgent := &funcAgent{stg: model.StageFeedback, fn: func(call int, c stage.Context) stage.Result {
		fb := model.Feedback{Rerun: []model.FeedbackRerun{{Stage: model.StageCoding, Reason: "address the nit"}}}
		env := artifact.NewEnvelope(c.SessionID, model.StageFeedback, call, nil, nil, fb)
		_, err := c.Artifacts.Put(c.SessionID, model.StageFeedback, env)
		require.NoError(t, err)
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: env.Meta.ArtifactID, Stage: model.StageFeedback, Verified: true, Summary: "routed"}
	}}

	registry := stage.Registry{
		model.StageIdea:         simpleCompleted(model.StageIdea),
		model.StageRequirements: simpleCompleted(model.StageRequirements),
		model.StageDesign:       simpleCompleted(model.StageDesign),
		model.StagePlan:         simpleCompleted(model.StagePlan),
		model.StageCoding:       codingAgent,
		model.StageCheck:        checkAgent,
		model.StageFeedback:     feedbackAgent,
		model.StageDelivery:     simpleCompleted(model.StageDelivery),
	}

	backend := interaction.NewRecordingBackend(nil, nil)
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), registry, it, meta, workDir)

	outcome := orc.Run(context.Background(), "a widget")
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.IterationCompleted, outcome.Status)
	assert.Equal(t, 2, codingAgent.calls, "coding must re-run once via the feedback cascade")
	assert.Equal(t, 2, checkAgent.calls, "check must re-run once after the cascade clears it")
	assert.Equal(t, 1, meta.FeedbackIterations)
}

// TestFeedbackCascade_EmptyRerunIsNoOp verifies spec.md §8's round-trip law:
// running feedback with an empty delta+rerun leaves the iteration's state
// unchanged except for feedback_iterations incremented by 0.
func TestFeedbackCascade_EmptyRerunIsNoOp(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-3b", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	codingAgent := &funcAgent{stg: model.StageCoding, fn: func(call int, c stage.Context) stage.Result {
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: "coding-v", Stage: model.StageCoding, Verified: true, Summary: "coded"}
	}}
	checkAgent := &funcAgent{stg: model.StageCheck, fn: func(call int, c stage.Context) stage.Result {
		issues := []model.Issue{{ID: "W1", Severity: model.SeverityWarning, Desc: "minor nit"}}
		env := artifact.NewEnvelope(c.SessionID, model.StageCheck, call, nil, nil, model.CheckReport{Issues: issues})
		_, err := c.Artifacts.Put(c.SessionID, model.StageCheck, env)
		require.NoError(t, err)
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: env.Meta.ArtifactID, Stage: model.StageCheck, Verified: true, Summary: "checked"}
	}}
	feedbackAgent := &funcAgent{stg: model.StageFeedback, fn: func(call int, c stage.Context) stage.Result {
		env := artifact.NewEnvelope(c.SessionID, model.StageFeedback, call, nil, nil, model.Feedback{})
		_, err := c.Artifacts.Put(c.SessionID, model.StageFeedback, env)
		require.NoError(t, err)
		return stage.Result{Kind: stage.ResultCompleted, ArtifactID: env.Meta.ArtifactID, Stage: model.StageFeedback, Verified: true, Summary: "no rerun"}
	}}

	registry := stage.Registry{
		model.StageIdea:         simpleCompleted(model.StageIdea),
		model.StageRequirements: simpleCompleted(model.StageRequirements),
		model.StageDesign:       simpleCompleted(model.StageDesign),
		model.StagePlan:         simpleCompleted(model.StagePlan),
		model.StageCoding:       codingAgent,
		model.StageCheck:        checkAgent,
		model.StageFeedback:     feedbackAgent,
		model.StageDelivery:     simpleCompleted(model.StageDelivery),
	}

	backend := interaction.NewRecordingBackend(nil, nil)
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), registry, it, meta, workDir)

	outcome := orc.Run(context.Background(), "a widget")
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.IterationCompleted, outcome.Status)
	assert.Equal(t, 1, codingAgent.calls, "an empty rerun must not re-trigger coding")
	assert.Equal(t, 1, checkAgent.calls, "an empty rerun must not re-trigger check")
	assert.Equal(t, 0, meta.FeedbackIterations)
}

// ---- Scenario 4: GotoStage jump out of Check (Step 5), scripted registry ----

func TestGotoJump_FromCheckBackToDesign(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-4", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	checkAgent := &funcAgent{stg: model.StageCheck, fn: func(call int, c stage.Context) stage.Result {
		r := stage.Result{Kind: stage.ResultCompleted, ArtifactID: "check-v", Stage: model.StageCheck, Verified: true, Summary: "checked"}
		if call == 1 {
			r.GotoNext = &stage.Goto{Target: model.StageDesign, Reason: "architecture needs rework"}
		}
		return r
	}}

	registry := stage.Registry{
		model.StageIdea:         simpleCompleted(model.StageIdea),
		model.StageRequirements: simpleCompleted(model.StageRequirements),
		model.StageDesign:       simpleCompleted(model.StageDesign),
		model.StagePlan:         simpleCompleted(model.StagePlan),
		model.StageCoding:       simpleCompleted(model.StageCoding),
		model.StageCheck:        checkAgent,
		model.StageFeedback:     simpleCompleted(model.StageFeedback),
		model.StageDelivery:     simpleCompleted(model.StageDelivery),
	}

	backend := interaction.NewRecordingBackend(nil, nil)
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), registry, it, meta, workDir)

	outcome := orc.Run(context.Background(), "a widget")
	require.NoError(t, outcome.Err)
	assert.Equal(t, model.IterationCompleted, outcome.Status)
	assert.Equal(t, 2, checkAgent.calls, "check must run again after the goto jump replays Design onward")
}

// ---- Scenario 5: pause mid-pipeline, then resume (Step 1's resume_from) ----

// pausingBackend reports cancelled starting from its (afterCalls+1)'th check.
type pausingBackend struct {
	*interaction.RecordingBackend
	afterCalls int
	seen       int
}

func (p *pausingBackend) Cancelled(ctx context.Context) bool {
	p.seen++
	if p.seen > p.afterCalls {
		return true
	}
	return p.RecordingBackend.Cancelled(ctx)
}

func TestRunThenResume_PausesAfterFirstStageAndResumesToCompletion(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-5", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	registry := stage.Registry{
		model.StageIdea:         simpleCompleted(model.StageIdea),
		model.StageRequirements: simpleCompleted(model.StageRequirements),
		model.StageDesign:       simpleCompleted(model.StageDesign),
		model.StagePlan:         simpleCompleted(model.StagePlan),
		model.StageCoding:       simpleCompleted(model.StageCoding),
		model.StageCheck:        simpleCompleted(model.StageCheck),
		model.StageFeedback:     simpleCompleted(model.StageFeedback),
		model.StageDelivery:     simpleCompleted(model.StageDelivery),
	}

	backend := &pausingBackend{RecordingBackend: interaction.NewRecordingBackend(nil, nil), afterCalls: 1}
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), registry, it, meta, workDir)

	outcome := orc.Run(context.Background(), "a widget")
	assert.Equal(t, model.IterationPaused, outcome.Status)
	assert.Equal(t, model.IterationPaused, it.Status)
	assert.True(t, meta.StatusOf(model.StageIdea).IsCompletedVerified())
	assert.False(t, meta.StatusOf(model.StageRequirements).IsCompletedVerified())

	// Resuming from Requirements should not re-run Idea and should drive
	// the rest of the pipeline to completion.
	backend.afterCalls = 1000
	resumeOutcome := orc.Resume(context.Background(), model.StageRequirements)
	require.NoError(t, resumeOutcome.Err)
	assert.Equal(t, model.IterationCompleted, resumeOutcome.Status)
}

// TestCheckAgent_SafetyBlockIsFatalAndPauses verifies spec.md §4.8's Fatal
// errors list: a safety checker block on a required verification command
// must never enter the smart-retry or feedback-cascade paths. It has to pause
// the iteration immediately, with the stage recorded Failed{can_retry:true}.
func TestCheckAgent_SafetyBlockIsFatalAndPauses(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-blocked", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())

	for _, st := range []model.Stage{model.StageIdea, model.StageRequirements, model.StageDesign, model.StagePlan, model.StageCoding} {
		meta.SetStatus(st, model.Completed("art-"+string(st), time.Now(), true))
		it.CompleteStage(st, "art-"+string(st))
	}

	blockedChange := model.CodeChange{
		VerificationCommands: []model.VerificationCommand{{Cmd: "rm -rf /", Phase: model.PhaseCheck}},
	}
	codingVersion, err := artifacts.NextVersion(it.ID, model.StageCoding)
	require.NoError(t, err)
	codingEnv := artifact.NewEnvelope(it.ID, model.StageCoding, codingVersion, nil, nil, blockedChange)
	_, err = artifacts.Put(it.ID, model.StageCoding, codingEnv)
	require.NoError(t, err)

	backend := interaction.NewRecordingBackend(nil, nil)
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), DefaultRegistry(), it, meta, workDir)

	outcome := orc.Resume(context.Background(), model.StageCheck)
	assert.Equal(t, model.IterationPaused, outcome.Status)
	assert.Equal(t, model.StageCheck, outcome.LastStage)
	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, forgeerr.ErrSafetyBlocked)

	assert.Equal(t, model.IterationPaused, it.Status)
	status := meta.StatusOf(model.StageCheck)
	assert.True(t, status.CanRetry)
	assert.False(t, status.IsCompletedVerified())
}

func TestResume_RejectsWhenPrecedingStageNotVerified(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-6", 1, "Widget", "a widget", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())
	// Idea is never marked Completed{verified:true}.

	backend := interaction.NewRecordingBackend(nil, nil)
	orc := New(DefaultConfig(), artifacts, mem, backend, llm.NewFakeClient(""), runner.New(), staticserver.New(), DefaultRegistry(), it, meta, workDir)

	outcome := orc.Resume(context.Background(), model.StageDesign)
	assert.Equal(t, model.IterationFailed, outcome.Status)
	assert.Error(t, outcome.Err)
}

// ---- Unit-level coverage of small helpers ----

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestShouldSkip_VerifiedAlwaysSkipsUnverifiedOnlyTextStages(t *testing.T) {
	artifacts, mem, workDir := newStores(t)
	it := model.NewGenesis("iter-7", 1, "x", "x", time.Now())
	meta := model.NewSessionMeta(it.ID, time.Now().Unix())
	orc := New(DefaultConfig(), artifacts, mem, interaction.NewRecordingBackend(nil, nil), llm.NewFakeClient(""), runner.New(), staticserver.New(), DefaultRegistry(), it, meta, workDir)

	assert.True(t, orc.shouldSkip(model.StageDesign, model.Completed("a", time.Now(), true)))
	assert.True(t, orc.shouldSkip(model.StageDesign, model.Completed("a", time.Now(), false)))
	assert.False(t, orc.shouldSkip(model.StageCoding, model.Completed("a", time.Now(), false)))
	assert.True(t, orc.shouldSkip(model.StageCoding, model.Completed("a", time.Now(), true)))
	assert.False(t, orc.shouldSkip(model.StageCheck, model.NotStarted()))
}

func TestExtractAffectedFiles(t *testing.T) {
	files := extractAffectedFiles("ISSUE-BUILD-main.go: undefined symbol\nsrc/app.ts:12:5: type error\n--> lib.rs:3:1\nFile \"tool.py\", line 9")
	assert.Contains(t, files, "main.go:")
	assert.Contains(t, files, "src/app.ts")
	assert.Contains(t, files, "lib.rs")
	assert.Contains(t, files, "tool.py")
}
