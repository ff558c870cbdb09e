package orchestrator

import (
	"context"

	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/stage"
)

type hitlKind string

const (
	hitlContinue hitlKind = "continue"
	hitlFeedback hitlKind = "feedback"
	hitlCancel   hitlKind = "cancel"
)

type hitlAction struct {
	kind         hitlKind
	feedbackText string
}

// runHITL implements Step 3: after a critical stage completes, pause and
// ask the backend for Continue | ViewArtifact | ProvideFeedback | Cancel.
// ViewArtifact re-prompts without progressing (spec.md §4.8 Step 3).
func (o *Orchestrator) runHITL(ctx context.Context, st model.Stage, result stage.Result) hitlAction {
	for {
		if o.cancelled(ctx) {
			return hitlAction{kind: hitlCancel}
		}
		confirmation, err := o.backend.RequestConfirmationWithFeedback(ctx, result.Summary, string(st))
		if err != nil {
			return hitlAction{kind: hitlCancel}
		}
		switch confirmation.Kind {
		case interaction.ConfirmContinue:
			return hitlAction{kind: hitlContinue}
		case interaction.ConfirmProvideFeedback:
			return hitlAction{kind: hitlFeedback, feedbackText: confirmation.FeedbackText}
		case interaction.ConfirmCancel:
			return hitlAction{kind: hitlCancel}
		case interaction.ConfirmViewArtifact:
			o.showArtifact(ctx, st, result.ArtifactID)
			continue // re-prompt without progressing
		}
	}
}

func (o *Orchestrator) showArtifact(ctx context.Context, st model.Stage, artifactID string) {
	env, err := o.artifacts.Get(o.iteration.ID, artifactID)
	if err != nil {
		_ = o.backend.ShowMessage(ctx, interaction.LevelWarn, "could not load artifact "+artifactID)
		return
	}
	_ = o.backend.ShowMessageWithContext(ctx, interaction.LevelInfo, renderSummary(env.Summary), interaction.MessageContext{Stage: string(st)})
}

func renderSummary(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
