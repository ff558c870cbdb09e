package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cowork-forge/forge/internal/artifact"
	"github.com/cowork-forge/forge/internal/forgeconfig"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/llm"
	"github.com/cowork-forge/forge/internal/memory"
	"github.com/cowork-forge/forge/internal/model"
	"github.com/cowork-forge/forge/internal/orchestrator"
	"github.com/cowork-forge/forge/internal/runner"
	"github.com/cowork-forge/forge/internal/sessionstore"
	"github.com/cowork-forge/forge/internal/staticserver"
)

var iterationCmd = &cobra.Command{
	Use:   "iteration",
	Short: "Start, resume, and inspect iterations",
}

var iterationStartCmd = &cobra.Command{
	Use:   "start [idea]",
	Short: "Start a new iteration",
	Long: `Starts a new iteration, running it from Idea through Delivery
(or until a HITL stage pauses for review, or the run is cancelled).

Examples:
  forge iteration start "build a static page that says hello"
  forge iteration start "add CSV export" --evolution-of iter-1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIterationStart,
}

var iterationResumeCmd = &cobra.Command{
	Use:   "resume <iteration-id>",
	Short: "Resume a paused or partially-completed iteration",
	Args:  cobra.ExactArgs(1),
	RunE:  runIterationResume,
}

var iterationStatusCmd = &cobra.Command{
	Use:   "status <iteration-id>",
	Short: "Show an iteration's stage-by-stage status",
	Args:  cobra.ExactArgs(1),
	RunE:  runIterationStatus,
}

var iterationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all iterations in the workspace",
	RunE:  runIterationList,
}

// buildOrchestrator assembles every component an Orchestrator needs from the
// resolved workspace and persisted state, grounded on cmd/nerd's
// cmd_campaign.go component-wiring order (kernel, executor, stores, then
// orchestrator last).
func buildOrchestrator(ws string, it *model.Iteration, meta *model.SessionMeta) (*orchestrator.Orchestrator, error) {
	cfg, err := forgeconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	artifacts := artifact.New(storeRoot(ws))
	mem := memory.New(memoryRoot(ws))
	backend := interaction.NewCLIBackend(os.Stdin, os.Stdout)
	llmClient := llm.NewHTTPClient(llm.Config{
		BaseURL: cfg.LLM.APIBaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.ModelName,
	})
	runnerMgr := runner.New()
	staticServerMgr := staticserver.New()
	registry := orchestrator.DefaultRegistry()

	orc := orchestrator.New(
		orchestrator.DefaultConfig(),
		artifacts,
		mem,
		backend,
		llmClient,
		runnerMgr,
		staticServerMgr,
		registry,
		it,
		meta,
		ws,
	)
	return orc, nil
}

func runIterationStart(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	idea := strings.Join(args, " ")
	evolutionOf, _ := cmd.Flags().GetString("evolution-of")
	inheritanceFlag, _ := cmd.Flags().GetString("inheritance")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	store := sessionstore.New(storeRoot(ws))
	id := "iter-" + uuid.New().String()
	number, err := nextIterationNumber(store)
	if err != nil {
		return err
	}

	var it *model.Iteration
	if evolutionOf != "" {
		mode := model.InheritancePartial
		if inheritanceFlag == "full" {
			mode = model.InheritanceFull
		}
		it = model.NewEvolution(id, number, firstWords(idea, 8), idea, evolutionOf, mode, time.Now())
	} else {
		it = model.NewGenesis(id, number, firstWords(idea, 8), idea, time.Now())
	}
	it.Tags = tags

	meta := model.NewSessionMeta(id, time.Now().Unix())

	orc, err := buildOrchestrator(ws, it, meta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	installSignalCancel(cancel)

	fmt.Printf("Starting iteration %s (%s)\n", it.ID, it.Title)
	outcome := orc.Run(ctx, idea)

	if err := store.SaveIteration(it); err != nil {
		return fmt.Errorf("saving iteration record: %w", err)
	}
	if err := store.SaveMeta(meta); err != nil {
		return fmt.Errorf("saving session meta: %w", err)
	}

	return reportOutcome(outcome)
}

func runIterationResume(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	iterationID := args[0]

	store := sessionstore.New(storeRoot(ws))
	it, err := store.LoadIteration(iterationID)
	if err != nil {
		return fmt.Errorf("loading iteration %s: %w", iterationID, err)
	}
	meta, err := store.LoadMeta(iterationID)
	if err != nil {
		return fmt.Errorf("loading session state for %s: %w", iterationID, err)
	}

	fromFlag, _ := cmd.Flags().GetString("from")
	from := model.Stage(fromFlag)
	if fromFlag == "" {
		from = nextIncompleteStage(meta)
	}
	if !from.Valid() || from.Index() < 0 {
		return fmt.Errorf("invalid resume stage %q", fromFlag)
	}

	orc, err := buildOrchestrator(ws, it, meta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	installSignalCancel(cancel)

	fmt.Printf("Resuming iteration %s from %s\n", it.ID, from)
	outcome := orc.Resume(ctx, from)

	if err := store.SaveIteration(it); err != nil {
		return fmt.Errorf("saving iteration record: %w", err)
	}
	if err := store.SaveMeta(meta); err != nil {
		return fmt.Errorf("saving session meta: %w", err)
	}

	return reportOutcome(outcome)
}

func runIterationStatus(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	store := sessionstore.New(storeRoot(ws))

	it, err := store.LoadIteration(args[0])
	if err != nil {
		return fmt.Errorf("loading iteration %s: %w", args[0], err)
	}
	meta, err := store.LoadMeta(args[0])
	if err != nil {
		return fmt.Errorf("loading session state for %s: %w", args[0], err)
	}

	fmt.Printf("%s  %q  status=%s\n", it.ID, it.Title, it.Status)
	for _, s := range model.CanonicalOrder {
		status := meta.StatusOf(s)
		fmt.Printf("  %-13s %-12s verified=%v\n", s, status.Kind, status.Verified)
	}
	return nil
}

func runIterationList(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	store := sessionstore.New(storeRoot(ws))

	ids, err := store.List()
	if err != nil {
		return fmt.Errorf("listing iterations: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No iterations found. Run 'forge iteration start' to create one.")
		return nil
	}
	for _, id := range ids {
		it, err := store.LoadIteration(id)
		if err != nil {
			continue
		}
		s := it.ToSummary()
		fmt.Printf("%-20s #%-4d %-10s %q\n", s.ID, s.Number, s.Status, s.Title)
	}
	return nil
}

// reportOutcome prints the terminal Outcome and maps it to a process exit
// intent: failed outcomes return an error (nonzero exit), paused/completed
// ones don't (resuming is a normal next step, not a failure).
func reportOutcome(outcome orchestrator.Outcome) error {
	switch outcome.Status {
	case model.IterationCompleted:
		fmt.Println("Iteration completed.")
		return nil
	case model.IterationPaused:
		fmt.Printf("Iteration paused at %s. Resume with 'forge iteration resume'.\n", outcome.LastStage)
		return nil
	default:
		if outcome.Err != nil {
			return fmt.Errorf("iteration failed at %s: %w", outcome.LastStage, outcome.Err)
		}
		return fmt.Errorf("iteration failed at %s", outcome.LastStage)
	}
}

// nextIncompleteStage picks the earliest canonical stage not yet
// Completed{verified:true}, the natural default for a bare "resume" with no
// --from flag.
func nextIncompleteStage(meta *model.SessionMeta) model.Stage {
	for _, s := range model.CanonicalOrder {
		if !meta.StatusOf(s).IsCompletedVerified() {
			return s
		}
	}
	return model.StageDelivery
}

func nextIterationNumber(store *sessionstore.Store) (int, error) {
	ids, err := store.List()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, id := range ids {
		it, err := store.LoadIteration(id)
		if err != nil {
			continue
		}
		if it.Number > max {
			max = it.Number
		}
	}
	return max + 1, nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func installSignalCancel(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ncancelling...")
		cancel()
	}()
}
