package validate

import (
	"fmt"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// Workers runs the structural checks for worker records: required columns,
// duplicate WorkerIDs, Skills and AvailableSlots list shapes, phase numbers
// >= 1, non-negative MaxLoadPerPhase, and the soft overload invariant
// |AvailableSlots| >= MaxLoadPerPhase (warning only).
func Workers(records []domain.Record) []domain.Finding {
	var out []domain.Finding
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		row := i + 1
		id := coerce.String(rec[domain.WorkerIDField])
		out = append(out, requiredColumns(domain.EntityWorker, rec, row, id, requiredWorkerColumns)...)
		if id != "" {
			if seen[id] {
				out = append(out, duplicateID(domain.EntityWorker, domain.WorkerIDField, id, row))
			}
			seen[id] = true
		}

		if v, ok := rec["Skills"]; ok && !coerce.IsEmpty(v) {
			if _, ok := coerce.StringList(v); !ok {
				out = append(out, domain.Finding{
					Type:     domain.FindingMalformed,
					Severity: domain.SeverityError,
					Entity:   domain.EntityWorker,
					Field:    "Skills",
					RecordID: id,
					Row:      row,
					Message:  "Skills cannot be read as a list of skill names",
				})
			}
		}

		slots, slotsOK := []int(nil), false
		if v, ok := rec["AvailableSlots"]; ok && !coerce.IsEmpty(v) {
			slots, slotsOK = coerce.IntList(v)
			if !slotsOK {
				out = append(out, domain.Finding{
					Type:         domain.FindingMalformed,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityWorker,
					Field:        "AvailableSlots",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("AvailableSlots %q cannot be read as a list of phase numbers", coerce.String(v)),
					SuggestedFix: `use a JSON array, a comma list, or a range like "1-3"`,
				})
			}
			for _, p := range slots {
				if p < 1 {
					out = append(out, domain.Finding{
						Type:     domain.FindingOutOfRange,
						Severity: domain.SeverityError,
						Entity:   domain.EntityWorker,
						Field:    "AvailableSlots",
						RecordID: id,
						Row:      row,
						Message:  fmt.Sprintf("AvailableSlots contains phase %d; phases start at 1", p),
					})
					break
				}
			}
		}

		maxLoad, loadOK := 0, false
		if v, ok := rec["MaxLoadPerPhase"]; ok && !coerce.IsEmpty(v) {
			switch n, status := coerce.BoundedInt(v, 0, int(^uint(0)>>1)); status {
			case coerce.Malformed:
				out = append(out, domain.Finding{
					Type:     domain.FindingMalformed,
					Severity: domain.SeverityError,
					Entity:   domain.EntityWorker,
					Field:    "MaxLoadPerPhase",
					RecordID: id,
					Row:      row,
					Message:  fmt.Sprintf("MaxLoadPerPhase %q is not an integer", coerce.String(v)),
				})
			case coerce.OutOfRange:
				out = append(out, domain.Finding{
					Type:     domain.FindingOutOfRange,
					Severity: domain.SeverityError,
					Entity:   domain.EntityWorker,
					Field:    "MaxLoadPerPhase",
					RecordID: id,
					Row:      row,
					Message:  fmt.Sprintf("MaxLoadPerPhase must not be negative, got %s", coerce.String(v)),
				})
			case coerce.OK:
				maxLoad, loadOK = n, true
			}
		}

		if slotsOK && loadOK && len(slots) < maxLoad {
			out = append(out, domain.Finding{
				Type:         domain.FindingWorkerOverload,
				Severity:     domain.SeverityWarning,
				Entity:       domain.EntityWorker,
				Field:        "MaxLoadPerPhase",
				RecordID:     id,
				Row:          row,
				Message:      fmt.Sprintf("worker %s has %d available phases but a per-phase load of %d", id, len(slots), maxLoad),
				SuggestedFix: "lower MaxLoadPerPhase or add phases to AvailableSlots",
			})
		}
	}
	return out
}
