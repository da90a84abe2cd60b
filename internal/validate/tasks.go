package validate

import (
	"fmt"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// Tasks runs the structural checks for task records: required columns,
// duplicate TaskIDs, Duration >= 1 with a malformed/out-of-range split,
// RequiredSkills and PreferredPhases list shapes, and MaxConcurrent >= 1
// when present.
func Tasks(records []domain.Record) []domain.Finding {
	var out []domain.Finding
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		row := i + 1
		id := coerce.String(rec[domain.TaskIDField])
		out = append(out, requiredColumns(domain.EntityTask, rec, row, id, requiredTaskColumns)...)
		if id != "" {
			if seen[id] {
				out = append(out, duplicateID(domain.EntityTask, domain.TaskIDField, id, row))
			}
			seen[id] = true
		}

		if v, ok := rec["Duration"]; ok && !coerce.IsEmpty(v) {
			switch _, status := coerce.BoundedInt(v, 1, int(^uint(0)>>1)); status {
			case coerce.Malformed:
				out = append(out, domain.Finding{
					Type:         domain.FindingMalformed,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityTask,
					Field:        "Duration",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("Duration %q is not an integer", coerce.String(v)),
					SuggestedFix: "use an integer number of phase-slots, at least 1",
				})
			case coerce.OutOfRange:
				out = append(out, domain.Finding{
					Type:         domain.FindingOutOfRange,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityTask,
					Field:        "Duration",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("Duration must be at least 1, got %s", coerce.String(v)),
					SuggestedFix: "use an integer number of phase-slots, at least 1",
				})
			}
		}

		if v, ok := rec["RequiredSkills"]; ok && !coerce.IsEmpty(v) {
			if _, ok := coerce.StringList(v); !ok {
				out = append(out, domain.Finding{
					Type:     domain.FindingMalformed,
					Severity: domain.SeverityError,
					Entity:   domain.EntityTask,
					Field:    "RequiredSkills",
					RecordID: id,
					Row:      row,
					Message:  "RequiredSkills cannot be read as a list of skill names",
				})
			}
		}

		if v, ok := rec["PreferredPhases"]; ok && !coerce.IsEmpty(v) {
			phases, ok := coerce.IntList(v)
			if !ok {
				out = append(out, domain.Finding{
					Type:         domain.FindingMalformed,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityTask,
					Field:        "PreferredPhases",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("PreferredPhases %q cannot be read as a list of phase numbers", coerce.String(v)),
					SuggestedFix: `use a JSON array, a comma list, or a range like "2-4"`,
				})
			}
			for _, p := range phases {
				if p < 1 {
					out = append(out, domain.Finding{
						Type:     domain.FindingOutOfRange,
						Severity: domain.SeverityError,
						Entity:   domain.EntityTask,
						Field:    "PreferredPhases",
						RecordID: id,
						Row:      row,
						Message:  fmt.Sprintf("PreferredPhases contains phase %d; phases start at 1", p),
					})
					break
				}
			}
		}

		if v, ok := rec["MaxConcurrent"]; ok && !coerce.IsEmpty(v) {
			switch _, status := coerce.BoundedInt(v, 1, int(^uint(0)>>1)); status {
			case coerce.Malformed:
				out = append(out, domain.Finding{
					Type:     domain.FindingMalformed,
					Severity: domain.SeverityError,
					Entity:   domain.EntityTask,
					Field:    "MaxConcurrent",
					RecordID: id,
					Row:      row,
					Message:  fmt.Sprintf("MaxConcurrent %q is not an integer", coerce.String(v)),
				})
			case coerce.OutOfRange:
				out = append(out, domain.Finding{
					Type:     domain.FindingOutOfRange,
					Severity: domain.SeverityError,
					Entity:   domain.EntityTask,
					Field:    "MaxConcurrent",
					RecordID: id,
					Row:      row,
					Message:  fmt.Sprintf("MaxConcurrent must be at least 1, got %s", coerce.String(v)),
				})
			}
		}
	}
	return out
}
