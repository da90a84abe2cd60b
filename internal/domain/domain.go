package domain

// Record is one ingested row. Keys are the canonical column names from the
// source sheets (ClientID, PriorityLevel, AvailableSlots, ...). Values keep
// whatever shape ingestion produced: plain strings from CSV, or JSON-decoded
// values (float64, []any, map) from the API. Coercion to typed values happens
// in the validators, never at ingestion time, so malformed cells survive long
// enough to be reported.
type Record map[string]any

// Entity kinds as they appear in findings, API paths, and the CLI. The three
// record entities carry their data-set names; rule and system only occur as
// finding/event subjects.
const (
	EntityClient = "clients"
	EntityWorker = "workers"
	EntityTask   = "tasks"
	EntityRule   = "rule"
	EntitySystem = "system"
)

// ID columns per entity kind.
const (
	ClientIDField = "ClientID"
	WorkerIDField = "WorkerID"
	TaskIDField   = "TaskID"
)

// IDField returns the identifier column for an entity kind, or "".
func IDField(entity string) string {
	switch entity {
	case EntityClient:
		return ClientIDField
	case EntityWorker:
		return WorkerIDField
	case EntityTask:
		return TaskIDField
	}
	return ""
}
