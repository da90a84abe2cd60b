package validate

import (
	"fmt"
	"sort"
	"strings"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// PhaseSaturation compares, for every phase, the aggregate task demand
// against the aggregate worker capacity. A worker contributes MaxLoadPerPhase
// to each phase in its AvailableSlots; a task contributes Duration to each
// phase in its PreferredPhases. Records whose relevant fields do not coerce
// are skipped here; the entity stage already reported them.
func PhaseSaturation(workers, tasks []domain.Record) []domain.Finding {
	capacity := map[int]int{}
	for _, rec := range workers {
		slots, ok := coerce.IntList(rec["AvailableSlots"])
		if !ok {
			continue
		}
		load, ok := coerce.Int(rec["MaxLoadPerPhase"])
		if !ok || load < 0 {
			continue
		}
		for _, p := range slots {
			if p >= 1 {
				capacity[p] += load
			}
		}
	}

	demand := map[int]int{}
	phaseTasks := map[int][]string{}
	for _, rec := range tasks {
		phases, ok := coerce.IntList(rec["PreferredPhases"])
		if !ok {
			continue
		}
		dur, ok := coerce.Int(rec["Duration"])
		if !ok || dur < 1 {
			continue
		}
		id := coerce.String(rec[domain.TaskIDField])
		for _, p := range phases {
			if p < 1 {
				continue
			}
			demand[p] += dur
			phaseTasks[p] = append(phaseTasks[p], id)
		}
	}

	phases := make([]int, 0, len(demand))
	for p := range demand {
		phases = append(phases, p)
	}
	sort.Ints(phases)

	var out []domain.Finding
	for _, p := range phases {
		if demand[p] <= capacity[p] {
			continue
		}
		out = append(out, domain.Finding{
			Type:            domain.FindingSaturation,
			Severity:        domain.SeverityError,
			Entity:          domain.EntityTask,
			Field:           "PreferredPhases",
			Message:         fmt.Sprintf("phase %d is oversubscribed: demand %d exceeds capacity %d", p, demand[p], capacity[p]),
			SuggestedFix:    "spread PreferredPhases or raise worker capacity for the phase",
			AffectedRecords: phaseTasks[p],
		})
	}
	return out
}

// Concurrency checks, for each task carrying both MaxConcurrent and
// RequiredSkills, that enough qualified workers exist: a worker qualifies
// when its skill set is a superset of the task's required skills
// (case-insensitive, trimmed) and it has at least one available phase.
// Shortfalls are warnings, not errors.
func Concurrency(workers, tasks []domain.Record) []domain.Finding {
	type pool struct{ skills map[string]bool }
	pools := make([]pool, 0, len(workers))
	for _, rec := range workers {
		skills, ok := coerce.StringList(rec["Skills"])
		if !ok {
			continue
		}
		slots, ok := coerce.IntList(rec["AvailableSlots"])
		if !ok || len(slots) == 0 {
			continue
		}
		set := make(map[string]bool, len(skills))
		for _, s := range skills {
			set[strings.ToLower(strings.TrimSpace(s))] = true
		}
		pools = append(pools, pool{skills: set})
	}

	var out []domain.Finding
	for i, rec := range tasks {
		v, ok := rec["MaxConcurrent"]
		if !ok || coerce.IsEmpty(v) {
			continue
		}
		want, ok := coerce.Int(v)
		if !ok || want < 1 {
			continue
		}
		required, ok := coerce.StringList(rec["RequiredSkills"])
		if !ok || len(required) == 0 {
			continue
		}
		qualified := 0
		for _, w := range pools {
			match := true
			for _, s := range required {
				if !w.skills[strings.ToLower(strings.TrimSpace(s))] {
					match = false
					break
				}
			}
			if match {
				qualified++
			}
		}
		if want <= qualified {
			continue
		}
		id := coerce.String(rec[domain.TaskIDField])
		out = append(out, domain.Finding{
			Type:         domain.FindingConcurrency,
			Severity:     domain.SeverityWarning,
			Entity:       domain.EntityTask,
			Field:        "MaxConcurrent",
			RecordID:     id,
			Row:          i + 1,
			Message:      fmt.Sprintf("task %s wants %d concurrent workers but only %d qualify (short by %d)", id, want, qualified, want-qualified),
			SuggestedFix: "lower MaxConcurrent or train more workers in the required skills",
		})
	}
	return out
}
