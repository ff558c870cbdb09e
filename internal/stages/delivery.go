package stages

import (
	"fmt"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/runtime"
	"github.com/cowork-forge/forge/internal/stage"
)

// DeliveryAgent implements the Delivery stage: it picks a preview method
// from the detected runtime shape (SPEC_FULL.md §4.7.1, grounded on
// runtime_analyzer.rs/tech_stack.rs) and starts either the static server
// (plain HTML) or the project runner (anything with a dev/start command),
// then records the resulting preview URL. It never pauses for HITL review
// (spec.md §4.7's stage table).
type DeliveryAgent struct{}

func (DeliveryAgent) Stage() model.Stage          { return model.StageDelivery }
func (DeliveryAgent) Dependencies() []model.Stage { return []model.Stage{model.StageCheck} }
func (DeliveryAgent) RequiresHITLReview() bool    { return false }
func (DeliveryAgent) Description() string         { return "start a preview of the finished project" }

func (a DeliveryAgent) Execute(c stage.Context) stage.Result {
	codingEnv, ok, err := c.Artifacts.Latest(c.SessionID, model.StageCoding)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDelivery, Err: err}
	}
	var entryFiles []string
	if ok {
		if change, err := artifact.DecodeData[model.CodeChange](codingEnv); err == nil {
			for _, f := range change.Files {
				entryFiles = append(entryFiles, f.Path)
			}
		}
	}

	report := model.DeliveryReport{WorkspacePath: c.WorkingDir, EntryFiles: entryFiles}

	cfg := runtime.Detect(c.WorkingDir)
	switch cfg.Type {
	case runtime.TypeVanillaHTML:
		info, err := c.StaticServer.Start(c.IterationID, c.WorkingDir)
		if err != nil {
			report.Notes = append(report.Notes, fmt.Sprintf("static preview failed to start: %v", err))
		} else {
			report.PreviewURL = info.URL
		}
	case runtime.TypeFullstack:
		info, err := c.Runner.StartFullstack(c.Ctx, c.IterationID,
			cfg.Fullstack.BackendDevCommand, cfg.Fullstack.FrontendDevCommand, c.WorkingDir,
			"", cfg.Fullstack.FrontendPort, cfg.Fullstack.BackendPort, c.Backend, nil)
		if err != nil {
			report.Notes = append(report.Notes, fmt.Sprintf("fullstack preview failed to start: %v", err))
		} else {
			report.PreviewURL = info.URL
		}
	case runtime.TypeUnknown:
		report.Notes = append(report.Notes, "unrecognized project shape; no preview started")
	default:
		info, startErr := startSinglePreview(c, cfg)
		if startErr != nil {
			report.Notes = append(report.Notes, fmt.Sprintf("preview failed to start: %v", startErr))
		} else {
			report.PreviewURL = info.URL
		}
	}

	version, err := c.Artifacts.NextVersion(c.SessionID, model.StageDelivery)
	if err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDelivery, Err: err}
	}
	var prev []string
	if ok {
		prev = []string{codingEnv.Meta.ArtifactID}
	}
	env := artifact.NewEnvelope(c.SessionID, model.StageDelivery, version, []string{report.PreviewURL}, prev, report)
	if _, err := c.Artifacts.Put(c.SessionID, model.StageDelivery, env); err != nil {
		return stage.Result{Kind: stage.ResultFailed, Stage: model.StageDelivery, Err: err}
	}

	return stage.Result{
		Kind:       stage.ResultCompleted,
		ArtifactID: env.Meta.ArtifactID,
		Stage:      model.StageDelivery,
		Verified:   report.PreviewURL != "",
		Summary:    fmt.Sprintf("preview at %s", report.PreviewURL),
	}
}

func startSinglePreview(c stage.Context, cfg runtime.Config) (runner.Info, error) {
	if cfg.Frontend != nil {
		return c.Runner.Start(c.Ctx, c.IterationID, cfg.Frontend.DevCommand, c.WorkingDir, "", cfg.Frontend.DevPort, c.Backend, nil)
	}
	if cfg.Backend != nil {
		return c.Runner.Start(c.Ctx, c.IterationID, cfg.Backend.StartCommand, c.WorkingDir, "", cfg.Backend.Port, c.Backend, nil)
	}
	return runner.Info{}, fmt.Errorf("no launch command detected for runtime type %s", cfg.Type)
}
