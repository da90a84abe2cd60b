package validate

import (
	"fmt"

	"crewplan/internal/domain"
	"crewplan/internal/rules"
)

// All runs the full pipeline in fixed order — entity validators, referential
// checks, business arithmetic, then the operational stage (circular co-run
// detection and rule-conflict advisories, both gated on a non-empty rule
// set) — and aggregates every finding into one categorized result.
//
// All never panics past this boundary: an internal fault is recovered and
// converted into a single system_error finding with IsValid=false.
func All(snap Snapshot) (result domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = faultResult(fmt.Sprintf("validation aborted: %v", r))
		}
	}()

	var findings []domain.Finding
	findings = append(findings, Clients(snap.Clients)...)
	findings = append(findings, Workers(snap.Workers)...)
	findings = append(findings, Tasks(snap.Tasks)...)
	findings = append(findings, References(snap.Clients, snap.Workers, snap.Tasks)...)
	findings = append(findings, PhaseSaturation(snap.Workers, snap.Tasks)...)
	findings = append(findings, Concurrency(snap.Workers, snap.Tasks)...)
	if len(snap.Rules) > 0 {
		if f := CircularCoRuns(snap.Tasks, snap.Rules); f != nil {
			findings = append(findings, *f)
		}
		for _, c := range rules.DetectConflicts(snap.Rules) {
			findings = append(findings, domain.Finding{
				Type:            domain.FindingRuleConflict,
				Severity:        domain.SeverityWarning,
				Entity:          domain.EntityRule,
				Message:         c.Message,
				AffectedRecords: []string{c.RuleA, c.RuleB},
			})
		}
	}
	return aggregate(findings)
}

// aggregate assigns deterministic per-type sequence IDs and splits findings
// by severity.
func aggregate(findings []domain.Finding) domain.ValidationResult {
	result := domain.ValidationResult{
		IsValid:  true,
		Errors:   []domain.Finding{},
		Warnings: []domain.Finding{},
		Summary: domain.ValidationSummary{
			ByType: map[string]int{},
		},
	}
	seq := map[string]int{}
	for _, f := range findings {
		seq[f.Type]++
		f.ID = fmt.Sprintf("%s-%d", f.Type, seq[f.Type])
		result.Summary.TotalFindings++
		result.Summary.ByType[f.Type]++
		switch f.Severity {
		case domain.SeverityError:
			result.Summary.Errors++
			result.IsValid = false
			result.Errors = append(result.Errors, f)
		case domain.SeverityWarning:
			result.Summary.Warnings++
			result.Warnings = append(result.Warnings, f)
		default:
			result.Summary.Info++
			result.Warnings = append(result.Warnings, f)
		}
	}
	return result
}

func faultResult(msg string) domain.ValidationResult {
	f := domain.Finding{
		ID:       domain.FindingSystemError + "-1",
		Type:     domain.FindingSystemError,
		Severity: domain.SeverityError,
		Entity:   domain.EntitySystem,
		Message:  msg,
	}
	return domain.ValidationResult{
		IsValid:  false,
		Errors:   []domain.Finding{f},
		Warnings: []domain.Finding{},
		Summary: domain.ValidationSummary{
			TotalFindings: 1,
			Errors:        1,
			ByType:        map[string]int{domain.FindingSystemError: 1},
		},
	}
}
