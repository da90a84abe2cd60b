package validate

import (
	"fmt"
	"strings"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// References runs the cross-entity checks: every RequestedTaskIDs entry must
// name an existing task (one finding per missing ID, not per client), and
// every RequiredSkills entry must be possessed by at least one worker (one
// finding per missing skill per task). Skill matching here is case-sensitive
// on trimmed names.
func References(clients, workers, tasks []domain.Record) []domain.Finding {
	var out []domain.Finding

	taskIDs := make(map[string]bool, len(tasks))
	for _, rec := range tasks {
		if id := coerce.String(rec[domain.TaskIDField]); id != "" {
			taskIDs[id] = true
		}
	}

	for i, rec := range clients {
		id := coerce.String(rec[domain.ClientIDField])
		requested, ok := coerce.StringList(rec["RequestedTaskIDs"])
		if !ok {
			continue // malformed list already reported by the entity stage
		}
		for _, tid := range requested {
			if taskIDs[tid] {
				continue
			}
			out = append(out, domain.Finding{
				Type:         domain.FindingUnknownRef,
				Severity:     domain.SeverityError,
				Entity:       domain.EntityClient,
				Field:        "RequestedTaskIDs",
				RecordID:     id,
				Row:          i + 1,
				Message:      fmt.Sprintf("client %s requests unknown task %q", id, tid),
				SuggestedFix: "remove the reference or add the task",
			})
		}
	}

	skillUniverse := make(map[string]bool)
	for _, rec := range workers {
		skills, ok := coerce.StringList(rec["Skills"])
		if !ok {
			continue
		}
		for _, s := range skills {
			skillUniverse[strings.TrimSpace(s)] = true
		}
	}

	for i, rec := range tasks {
		id := coerce.String(rec[domain.TaskIDField])
		required, ok := coerce.StringList(rec["RequiredSkills"])
		if !ok {
			continue
		}
		for _, s := range required {
			s = strings.TrimSpace(s)
			if skillUniverse[s] {
				continue
			}
			out = append(out, domain.Finding{
				Type:         domain.FindingSkillGap,
				Severity:     domain.SeverityError,
				Entity:       domain.EntityTask,
				Field:        "RequiredSkills",
				RecordID:     id,
				Row:          i + 1,
				Message:      fmt.Sprintf("no worker has skill %q required by task %s", s, id),
				SuggestedFix: "add the skill to a worker or drop it from the task",
			})
		}
	}
	return out
}
