// Package iteration implements the keyword-based start-stage classifier
// for evolution iterations (spec.md §4.8 Step 1), grounded on
// original_source/crates/cowork-core/src/domain/iteration.rs's
// determine_start_stage/analyze_change_scope. Iteration lifecycle mutators
// live directly on model.Iteration, matching the original's
// Iteration::start/pause/resume/complete/fail methods.
package iteration

import (
	"strings"

	"github.com/cowork-forge/forge/internal/model"
)

var architectureKeywords = []string{"architecture", "rewrite", "redesign", "架构", "重构", "重新设计"}
var requirementKeywords = []string{"requirement", "feature", "add", "需求", "功能", "添加"}
var designKeywords = []string{"design", "database", "api", "设计", "数据库", "接口"}

// DetermineStartStage picks the earliest stage an evolution iteration needs
// to re-run, based on its description. Genesis iterations (InheritanceNone)
// always start at Idea; Full/Partial inheritance classifies the description
// by keyword, falling back to Plan (code-only change) when nothing matches.
func DetermineStartStage(it *model.Iteration) model.Stage {
	if it.Inheritance == model.InheritanceNone {
		return model.StageIdea
	}
	return classifyChangeScope(it.Description)
}

func classifyChangeScope(description string) model.Stage {
	lower := strings.ToLower(description)
	if containsAny(lower, architectureKeywords) {
		return model.StageIdea
	}
	if containsAny(lower, requirementKeywords) {
		return model.StageRequirements
	}
	if containsAny(lower, designKeywords) {
		return model.StageDesign
	}
	return model.StagePlan
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
