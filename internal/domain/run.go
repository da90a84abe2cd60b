package domain

// ValidationRun is one archived validation pass.
type ValidationRun struct {
	ID          string           `json:"id"`
	TS          string           `json:"ts" format:"date-time"`
	ContentHash string           `json:"content_hash"`
	IsValid     bool             `json:"is_valid"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
	Result      ValidationResult `json:"result"`
}

// Event is one row of the append-only change log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
