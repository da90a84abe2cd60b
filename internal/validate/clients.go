package validate

import (
	"fmt"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// Mandatory columns per entity. Optional columns (GroupTag, AttributesJSON,
// WorkerGroup, MaxConcurrent, and the may-be-empty list columns) are checked
// only when present.
var (
	requiredClientColumns = []string{"ClientID", "ClientName", "PriorityLevel"}
	requiredWorkerColumns = []string{"WorkerID", "WorkerName", "Skills", "AvailableSlots", "MaxLoadPerPhase"}
	requiredTaskColumns   = []string{"TaskID", "TaskName", "Duration", "RequiredSkills"}
)

// Bounds for coerced numeric columns.
const (
	priorityMin = 1
	priorityMax = 5
)

// Clients runs the structural checks for client records: required columns,
// duplicate ClientIDs (second and later occurrences), PriorityLevel bounds,
// RequestedTaskIDs list shape, and AttributesJSON well-formedness. Malformed
// values produce findings, never errors.
func Clients(records []domain.Record) []domain.Finding {
	var out []domain.Finding
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		row := i + 1
		id := coerce.String(rec[domain.ClientIDField])
		out = append(out, requiredColumns(domain.EntityClient, rec, row, id, requiredClientColumns)...)
		if id != "" {
			if seen[id] {
				out = append(out, duplicateID(domain.EntityClient, domain.ClientIDField, id, row))
			}
			seen[id] = true
		}
		if v, ok := rec["PriorityLevel"]; ok && !coerce.IsEmpty(v) {
			switch _, status := coerce.BoundedInt(v, priorityMin, priorityMax); status {
			case coerce.Malformed:
				out = append(out, domain.Finding{
					Type:         domain.FindingMalformed,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityClient,
					Field:        "PriorityLevel",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("PriorityLevel %q is not an integer", coerce.String(v)),
					SuggestedFix: "use an integer between 1 and 5",
				})
			case coerce.OutOfRange:
				out = append(out, domain.Finding{
					Type:         domain.FindingOutOfRange,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityClient,
					Field:        "PriorityLevel",
					RecordID:     id,
					Row:          row,
					Message:      fmt.Sprintf("PriorityLevel %s is outside [1,5]", coerce.String(v)),
					SuggestedFix: "use an integer between 1 and 5",
				})
			}
		}
		if v, ok := rec["RequestedTaskIDs"]; ok && !coerce.IsEmpty(v) {
			if _, ok := coerce.StringList(v); !ok {
				out = append(out, domain.Finding{
					Type:     domain.FindingMalformed,
					Severity: domain.SeverityError,
					Entity:   domain.EntityClient,
					Field:    "RequestedTaskIDs",
					RecordID: id,
					Row:      row,
					Message:  "RequestedTaskIDs cannot be read as a list of task IDs",
				})
			}
		}
		if v, ok := rec["AttributesJSON"]; ok {
			if s, isStr := v.(string); isStr && !coerce.WellFormedJSON(s) {
				out = append(out, domain.Finding{
					Type:         domain.FindingMalformed,
					Severity:     domain.SeverityError,
					Entity:       domain.EntityClient,
					Field:        "AttributesJSON",
					RecordID:     id,
					Row:          row,
					Message:      "AttributesJSON is not well-formed JSON",
					SuggestedFix: "fix the JSON syntax or clear the cell",
				})
			}
		}
	}
	return out
}

// requiredColumns emits one missing_required_column finding per absent
// mandatory column (missing key, nil, or blank string).
func requiredColumns(entity string, rec domain.Record, row int, id string, columns []string) []domain.Finding {
	var out []domain.Finding
	for _, col := range columns {
		v, ok := rec[col]
		if ok && !coerce.IsEmpty(v) {
			continue
		}
		out = append(out, domain.Finding{
			Type:         domain.FindingMissingField,
			Severity:     domain.SeverityError,
			Entity:       entity,
			Field:        col,
			RecordID:     id,
			Row:          row,
			Message:      fmt.Sprintf("required column %s is missing or empty", col),
			SuggestedFix: fmt.Sprintf("provide a value for %s", col),
		})
	}
	return out
}

// duplicateID flags the second and later occurrence of an identifier; the
// first occurrence is never flagged.
func duplicateID(entity, field, id string, row int) domain.Finding {
	return domain.Finding{
		Type:         domain.FindingDuplicateID,
		Severity:     domain.SeverityError,
		Entity:       entity,
		Field:        field,
		RecordID:     id,
		Row:          row,
		Message:      fmt.Sprintf("%s %q appears more than once", field, id),
		SuggestedFix: "remove or rename the duplicate row",
	}
}
