// Package flog provides config-driven categorized logging for forge,
// grounded on the teacher's internal/logging package — same Category
// taxonomy idea, one Logger per Category — but backed by
// go.uber.org/zap.SugaredLogger instead of hand-rolled per-category log
// files, since zap is a real dependency of the retrieval pack that the
// teacher's own logging package oddly avoids.
package flog

import (
	"sync"

	"go.uber.org/zap"
)

// Category names a subsystem, mirroring internal/logging's Category
// constants in the teacher, narrowed to THE CORE's nine components.
type Category string

const (
	CategoryOrchestrator  Category = "orchestrator"
	CategoryArtifact      Category = "artifact"
	CategoryMemory        Category = "memory"
	CategoryInteraction   Category = "interaction"
	CategorySafety        Category = "safety"
	CategoryRunner        Category = "runner"
	CategoryStaticServer  Category = "staticserver"
	CategoryStage         Category = "stage"
	CategoryIteration     Category = "iteration"
)

var (
	mu      sync.RWMutex
	base    *zap.SugaredLogger
	loggers = map[Category]*zap.SugaredLogger{}
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l.Sugar()
}

// SetLogger replaces the base zap logger (e.g. cmd/forge installs a
// debug-level logger when --debug is passed), matching the teacher's
// cmd/nerd/main.go pattern of configuring zap at the entry point.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l.Sugar()
	loggers = map[Category]*zap.SugaredLogger{}
}

// Get returns the logger for category, named so log lines are tagged by
// subsystem without needing separate log files per category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	l, ok := loggers[category]
	b := base
	mu.RUnlock()
	if ok {
		return l
	}
	named := b.Named(string(category))
	mu.Lock()
	loggers[category] = named
	mu.Unlock()
	return named
}

// Sync flushes all category loggers; call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
	for _, l := range loggers {
		_ = l.Sync()
	}
}
