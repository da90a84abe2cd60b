// Package validate implements the multi-stage validation pipeline: per-entity
// structural checks, cross-entity referential checks, resource-feasibility
// arithmetic, and rule-induced dependency analysis, aggregated by All into a
// single categorized result.
//
// The pipeline is pure: it reads the snapshot, returns findings, and never
// mutates records or rules. Two calls with identical snapshots produce
// identical results.
package validate

import "crewplan/internal/domain"

// Snapshot is the full input to one validation pass. The caller owns the
// collections; validators only read them.
type Snapshot struct {
	Clients []domain.Record
	Workers []domain.Record
	Tasks   []domain.Record
	Rules   []domain.Rule
}

// ClientRecords implements rules.Context.
func (s Snapshot) ClientRecords() []domain.Record { return s.Clients }

// WorkerRecords implements rules.Context.
func (s Snapshot) WorkerRecords() []domain.Record { return s.Workers }

// TaskRecords implements rules.Context.
func (s Snapshot) TaskRecords() []domain.Record { return s.Tasks }
