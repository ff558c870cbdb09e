package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

// structuredIssuePattern matches the ISSUE-<KIND>-<path> IDs the Check
// stage can emit, per spec.md §4.8 Step 6.1.
var structuredIssuePattern = regexp.MustCompile(`^ISSUE-[A-Z-]+-(.+)$`)

// compilerLocationPatterns extract "<path>:<line>:<col>"-shaped locations
// from free-form compiler/interpreter output: a generic path:line:col form,
// Rust's "--> path:line:col", and Python's 'File "path", line N'.
var compilerLocationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^([^\s:]+\.[a-zA-Z0-9]+):(\d+):(\d+)`),
	regexp.MustCompile(`(?m)-->\s*([^\s:]+):(\d+):(\d+)`),
	regexp.MustCompile(`(?m)File "([^"]+)", line (\d+)`),
}

// smartRetryCheck implements Step 6: when Check reports critical errors,
// extract the affected files, re-invoke Coding with a targeted fix prompt,
// and re-run Check — up to MaxSmartRetries rounds. If the errors persist,
// it falls back to the full Step 4 feedback cascade. next is the stage the
// outer loop should resume at when handled is false.
func (o *Orchestrator) smartRetryCheck(ctx context.Context, checkResult stage.Result) (next model.Stage, outcome Outcome, handled bool) {
	codingAgent, ok := o.registry.Get(model.StageCoding)
	if !ok {
		return model.StageCheck, o.fail(model.StageCoding, forgeerrInvariant(model.StageCoding)), true
	}
	checkAgent, ok := o.registry.Get(model.StageCheck)
	if !ok {
		return model.StageCheck, o.fail(model.StageCheck, forgeerrInvariant(model.StageCheck)), true
	}

	lastArtifactID := checkResult.ArtifactID
	affectedFiles := extractAffectedFiles(checkResult.FeedbackText)

	for attempt := 1; attempt <= o.cfg.MaxSmartRetries; attempt++ {
		if o.cancelled(ctx) {
			o.iteration.Pause()
			return model.StageCheck, Outcome{Status: model.IterationPaused, LastStage: model.StageCheck}, true
		}

		o.emit(EventSmartRetry, model.StageCoding, fmt.Sprintf("targeted fix attempt %d/%d for %v", attempt, o.cfg.MaxSmartRetries, affectedFiles))

		fixPrompt := fmt.Sprintf("Previous attempt had errors: %s", checkResult.FeedbackText)
		if len(affectedFiles) > 0 {
			fixPrompt += fmt.Sprintf("\nAffected files: %s", strings.Join(affectedFiles, ", "))
		}

		codingResult := codingAgent.Execute(stage.Context{
			Ctx:         ctx,
			IterationID: o.iteration.ID,
			SessionID:   o.iteration.ID,
			Artifacts:   o.artifacts,
			Memory:      o.memory,
			Backend:     o.backend,
			LLM:         o.llmClient,
			Feedback:    fixPrompt,
			WorkingDir:  o.workingDir,
		})
		if codingResult.Kind != stage.ResultCompleted {
			continue // this attempt failed to even produce a fix; try again
		}
		o.meta.SetStatus(model.StageCoding, model.Completed(codingResult.ArtifactID, time.Now(), codingResult.Verified))
		o.iteration.CompleteStage(model.StageCoding, codingResult.ArtifactID)

		checkAgainResult := checkAgent.Execute(stage.Context{
			Ctx:         ctx,
			IterationID: o.iteration.ID,
			SessionID:   o.iteration.ID,
			Artifacts:   o.artifacts,
			Memory:      o.memory,
			Backend:     o.backend,
			LLM:         o.llmClient,
			WorkingDir:  o.workingDir,
		})
		if checkAgainResult.Kind == stage.ResultCompleted {
			o.meta.SetStatus(model.StageCheck, model.Completed(checkAgainResult.ArtifactID, time.Now(), true))
			o.iteration.CompleteStage(model.StageCheck, checkAgainResult.ArtifactID)
			return model.StageDelivery, Outcome{}, false
		}

		checkResult = checkAgainResult
		lastArtifactID = checkAgainResult.ArtifactID
		affectedFiles = extractAffectedFiles(checkAgainResult.FeedbackText)
	}

	// Smart retry exhausted; fall back to the full feedback cascade.
	outcome, handled = o.runFeedbackCascade(ctx, lastArtifactID)
	return model.StageCheck, outcome, handled
}

func extractAffectedFiles(feedbackText string) []string {
	seen := map[string]bool{}
	var files []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}

	for _, token := range strings.Fields(feedbackText) {
		if m := structuredIssuePattern.FindStringSubmatch(token); m != nil {
			add(m[1])
		}
	}
	for _, pat := range compilerLocationPatterns {
		for _, m := range pat.FindAllStringSubmatch(feedbackText, -1) {
			if len(m) > 1 {
				add(m[1])
			}
		}
	}
	return files
}
