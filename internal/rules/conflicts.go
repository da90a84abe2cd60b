package rules

import (
	"fmt"

	"crewplan/internal/domain"
)

// DetectConflicts runs the pairwise checks over the active rule set. Three
// contradictions are recognized: a coRun rule and a phaseWindow rule sharing
// a task, two loadLimit rules capping the same worker group differently, and
// two slotRestriction rules demanding different minima from the same target
// group. Quadratic in rule count; rule sets are small.
func DetectConflicts(all []domain.Rule) []domain.Conflict {
	var active []domain.Rule
	for _, r := range all {
		if r.IsActive {
			active = append(active, r)
		}
	}
	var out []domain.Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if c := conflictBetween(active[i], active[j]); c != nil {
				out = append(out, *c)
			}
		}
	}
	return out
}

func conflictBetween(a, b domain.Rule) *domain.Conflict {
	if c := coRunPhaseWindow(a, b); c != nil {
		return c
	}
	if c := coRunPhaseWindow(b, a); c != nil {
		c.RuleA, c.RuleB = a.ID, b.ID
		return c
	}
	if a.LoadLimit != nil && b.LoadLimit != nil &&
		a.LoadLimit.WorkerGroup == b.LoadLimit.WorkerGroup &&
		a.LoadLimit.MaxSlotsPerPhase != b.LoadLimit.MaxSlotsPerPhase {
		return &domain.Conflict{
			RuleA: a.ID,
			RuleB: b.ID,
			Kind:  "load_limit_mismatch",
			Message: fmt.Sprintf("rules %s and %s cap group %q at different loads (%d vs %d)",
				a.ID, b.ID, a.LoadLimit.WorkerGroup, a.LoadLimit.MaxSlotsPerPhase, b.LoadLimit.MaxSlotsPerPhase),
		}
	}
	if a.SlotRestriction != nil && b.SlotRestriction != nil &&
		a.SlotRestriction.TargetGroup == b.SlotRestriction.TargetGroup &&
		a.SlotRestriction.MinCommonSlots != b.SlotRestriction.MinCommonSlots {
		return &domain.Conflict{
			RuleA: a.ID,
			RuleB: b.ID,
			Kind:  "slot_restriction_mismatch",
			Message: fmt.Sprintf("rules %s and %s demand different common slots from group %q (%d vs %d)",
				a.ID, b.ID, a.SlotRestriction.TargetGroup, a.SlotRestriction.MinCommonSlots, b.SlotRestriction.MinCommonSlots),
		}
	}
	return nil
}

func coRunPhaseWindow(a, b domain.Rule) *domain.Conflict {
	if a.CoRun == nil || b.PhaseWindow == nil {
		return nil
	}
	for _, t := range a.CoRun.Tasks {
		if t == b.PhaseWindow.Task {
			return &domain.Conflict{
				RuleA: a.ID,
				RuleB: b.ID,
				Kind:  "corun_phase_window",
				Message: fmt.Sprintf("task %q is pinned to phases by rule %s while rule %s co-runs it with other tasks",
					t, b.ID, a.ID),
			}
		}
	}
	return nil
}
