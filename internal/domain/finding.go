package domain

// Severity of a validation finding. Only error severity affects IsValid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding type codes. These are stable identifiers consumed by the CLI and
// API clients; renaming one is a breaking change.
const (
	FindingMissingField   = "missing_required_column"
	FindingMalformed      = "malformed_data"
	FindingOutOfRange     = "out_of_range"
	FindingDuplicateID    = "duplicate_id"
	FindingUnknownRef     = "unknown_reference"
	FindingSkillGap       = "skill_coverage_gap"
	FindingWorkerOverload = "worker_overload"
	FindingSaturation     = "phase_slot_saturation"
	FindingConcurrency    = "max_concurrency_infeasible"
	FindingCircularCoRun  = "circular_corun"
	FindingRuleConflict   = "rule_conflict"
	FindingSystemError    = "system_error"
)

// Finding is one validation result item. Findings are values: produced once,
// never mutated, and deterministic for identical inputs (the ID is derived
// from the finding's position and subject, not from a random source).
type Finding struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Severity        Severity `json:"severity"`
	Entity          string   `json:"entity"`
	Field           string   `json:"field,omitempty"`
	RecordID        string   `json:"record_id,omitempty"`
	Row             int      `json:"row,omitempty"`
	Message         string   `json:"message"`
	SuggestedFix    string   `json:"suggested_fix,omitempty"`
	AffectedRecords []string `json:"affected_records,omitempty"`
}

// ValidationSummary aggregates finding counts.
type ValidationSummary struct {
	TotalFindings int            `json:"total_findings"`
	Errors        int            `json:"errors"`
	Warnings      int            `json:"warnings"`
	Info          int            `json:"info"`
	ByType        map[string]int `json:"by_type"`
}

// ValidationResult is the orchestrator output. Warnings carries both warning
// and info severity findings; the summary keeps them apart.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []Finding         `json:"errors"`
	Warnings []Finding         `json:"warnings"`
	Summary  ValidationSummary `json:"summary"`
}

// Conflict reports two rules that contradict each other. Conflicts are
// advisory: they never block rule storage.
type Conflict struct {
	RuleA   string `json:"rule_a"`
	RuleB   string `json:"rule_b"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
