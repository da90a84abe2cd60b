// Package rules validates scheduling rules against the current data set and
// detects pairwise contradictions between active rules.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// Context exposes the entity collections a rule is validated against.
type Context interface {
	ClientRecords() []domain.Record
	WorkerRecords() []domain.Record
	TaskRecords() []domain.Record
}

// Validate checks one rule structurally and referentially against the data
// context. It returns a list of human-readable problems; an empty list means
// the rule is acceptable. The caller decides whether problems are fatal (they
// are on add/update) — conflict detection is separate and advisory.
func Validate(r domain.Rule, data Context) []string {
	if !r.Type.Valid() {
		return []string{fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	var problems []string
	switch r.Type {
	case domain.RuleCoRun:
		problems = validateCoRun(r.CoRun, data)
	case domain.RuleSlotRestriction:
		problems = validateSlotRestriction(r.SlotRestriction, data)
	case domain.RuleLoadLimit:
		problems = validateLoadLimit(r.LoadLimit, data)
	case domain.RulePhaseWindow:
		problems = validatePhaseWindow(r.PhaseWindow, data)
	case domain.RulePatternMatch:
		problems = validatePatternMatch(r.PatternMatch)
	case domain.RulePrecedenceOverride:
		problems = validatePrecedenceOverride(r.PrecedenceOverride)
	}
	return problems
}

func validateCoRun(p *domain.CoRunRule, data Context) []string {
	var problems []string
	if p == nil || len(p.Tasks) < 2 {
		return []string{"coRun needs at least two tasks"}
	}
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if seen[t] {
			problems = append(problems, fmt.Sprintf("task %q listed twice", t))
		}
		seen[t] = true
	}
	ids := taskIDs(data)
	for _, t := range p.Tasks {
		if !ids[t] {
			problems = append(problems, fmt.Sprintf("task %q does not exist", t))
		}
	}
	return problems
}

func validateSlotRestriction(p *domain.SlotRestrictionRule, data Context) []string {
	var problems []string
	if p == nil || p.TargetGroup == "" {
		problems = append(problems, "targetGroup is required")
	} else if !workerGroups(data)[p.TargetGroup] {
		problems = append(problems, fmt.Sprintf("worker group %q does not exist", p.TargetGroup))
	}
	if p == nil || p.MinCommonSlots < 1 {
		problems = append(problems, "minCommonSlots must be at least 1")
	}
	return problems
}

func validateLoadLimit(p *domain.LoadLimitRule, data Context) []string {
	var problems []string
	if p == nil || p.WorkerGroup == "" {
		problems = append(problems, "workerGroup is required")
	} else if !workerGroups(data)[p.WorkerGroup] {
		problems = append(problems, fmt.Sprintf("worker group %q does not exist", p.WorkerGroup))
	}
	if p == nil || p.MaxSlotsPerPhase < 1 {
		problems = append(problems, "maxSlotsPerPhase must be at least 1")
	}
	return problems
}

func validatePhaseWindow(p *domain.PhaseWindowRule, data Context) []string {
	var problems []string
	if p == nil || p.Task == "" {
		problems = append(problems, "task is required")
	} else if !taskIDs(data)[p.Task] {
		problems = append(problems, fmt.Sprintf("task %q does not exist", p.Task))
	}
	if p == nil || len(p.AllowedPhases) == 0 {
		problems = append(problems, "allowedPhases must not be empty")
	} else {
		for _, ph := range p.AllowedPhases {
			if ph < 1 {
				problems = append(problems, fmt.Sprintf("phase %d is invalid; phases start at 1", ph))
			}
		}
	}
	return problems
}

func validatePatternMatch(p *domain.PatternMatchRule) []string {
	var problems []string
	if p == nil || p.Regex == "" {
		problems = append(problems, "regex is required")
	} else if _, err := regexp.Compile(p.Regex); err != nil {
		problems = append(problems, fmt.Sprintf("regex does not compile: %v", err))
	}
	if p == nil || !domain.RuleType(p.RuleTemplate).Valid() {
		problems = append(problems, "ruleTemplate must name one of the six rule types")
	}
	return problems
}

func validatePrecedenceOverride(p *domain.PrecedenceOverrideRule) []string {
	if p == nil || len(p.PriorityOrder) == 0 {
		return []string{"priorityOrder must not be empty"}
	}
	var problems []string
	for _, name := range p.PriorityOrder {
		if !domain.RuleType(name).Valid() {
			problems = append(problems, fmt.Sprintf("priorityOrder entry %q is not a rule type", name))
		}
	}
	return problems
}

func taskIDs(data Context) map[string]bool {
	out := map[string]bool{}
	for _, rec := range data.TaskRecords() {
		if id := coerce.String(rec[domain.TaskIDField]); id != "" {
			out[id] = true
		}
	}
	return out
}

func workerGroups(data Context) map[string]bool {
	out := map[string]bool{}
	for _, rec := range data.WorkerRecords() {
		if g := strings.TrimSpace(coerce.String(rec["WorkerGroup"])); g != "" {
			out[g] = true
		}
	}
	return out
}
