// Package main implements the forge CLI, the entry point wiring together
// config, logging, the artifact/memory stores, the interaction backend,
// the safety checker, the runner/static-server, and the orchestrator
// (spec.md §4.8). Command implementations are split across cmd_*.go files,
// grounded on cmd/nerd/main.go's file-index convention.
//
// # File Index
//
//   - main.go           - entry point, rootCmd, global flags, init()
//   - cmd_iteration.go  - start/resume/status/list for iterations
//   - cmd_config.go     - config show/path
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cowork-forge/forge/internal/flog"
)

var (
	workspace  string
	configPath string
	debug      bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - an AI-driven software engineering pipeline",
	Long: `forge takes an idea through requirements, design, plan, coding,
check, and delivery, one iteration at a time, pausing for human review
at the stages that need it (spec.md §4.8).

Run "forge iteration start <idea>" to begin a genesis iteration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		flog.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Iteration workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: ./config.toml or OS config dir)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall iteration run timeout")

	var evolutionOf, inheritance string
	var tags []string
	iterationStartCmd.Flags().StringVar(&evolutionOf, "evolution-of", "", "Base iteration ID (makes this an evolution iteration)")
	iterationStartCmd.Flags().StringVar(&inheritance, "inheritance", "full", "Inheritance mode for evolution iterations: full, partial")
	iterationStartCmd.Flags().StringSliceVar(&tags, "tags", nil, "Free-form labels for this iteration")

	iterationResumeCmd.Flags().String("from", "", "Stage to resume from (idea, requirements, design, plan, coding, check, delivery)")

	iterationCmd.AddCommand(
		iterationStartCmd,
		iterationResumeCmd,
		iterationStatusCmd,
		iterationListCmd,
	)

	configCmd.AddCommand(
		configShowCmd,
		configPathCmd,
	)

	rootCmd.AddCommand(iterationCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the workspace directory, defaulting to cwd and
// making --workspace absolute, matching cmd/nerd/main.go's handling.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	return abs, nil
}

func storeRoot(ws string) string {
	return filepath.Join(ws, ".cowork-v2", "iterations")
}

func memoryRoot(ws string) string {
	return filepath.Join(ws, ".cowork-v2", "memory")
}
