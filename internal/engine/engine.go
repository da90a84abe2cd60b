package engine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crewplan/internal/cache"
	"crewplan/internal/config"
	"crewplan/internal/domain"
	"crewplan/internal/events"
	"crewplan/internal/graph"
	"crewplan/internal/repo"
	"crewplan/internal/rules"
	"crewplan/internal/validate"
)

// Engine mediates every mutation of the store and owns the validation entry
// point. It never mutates records during validation; findings are returned,
// not applied.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Cache  *cache.Cache
	Log    *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    zap.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RuleValidationError carries the per-problem detail of a rejected rule.
type RuleValidationError struct {
	Problems []string
}

func (e RuleValidationError) Error() string {
	return "rule validation failed: " + strings.Join(e.Problems, "; ")
}

// --- records ---

// Ingest stores a batch of records for one entity. With replace=true the
// existing records for that entity are dropped first; otherwise the batch is
// appended after the current rows. Records are stored as-is — structural
// problems are validation findings, not ingest failures.
func (e Engine) Ingest(ctx context.Context, entity string, records []domain.Record, replace bool, actorID string) (int, error) {
	if !repo.ValidEntity(entity) {
		return 0, fmt.Errorf("unknown entity %q", entity)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	start := 1
	if replace {
		if err := e.Repo.ClearEntityTx(ctx, tx, entity); err != nil {
			return 0, err
		}
	} else {
		max, err := e.Repo.MaxRowTx(ctx, tx, entity)
		if err != nil {
			return 0, err
		}
		start = max + 1
	}
	if err := e.Repo.InsertRecordsTx(ctx, tx, entity, records, start); err != nil {
		return 0, err
	}
	mode := "append"
	if replace {
		mode = "replace"
	}
	if err := e.Events.Append(ctx, tx, "ingest.completed", entity, "", actorID, events.EventPayload{
		"count": len(records),
		"mode":  mode,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.Log.Info("ingest completed",
		zap.String("entity", entity),
		zap.Int("count", len(records)),
		zap.String("mode", mode))
	return len(records), nil
}

// CreateRecord appends a single record; the entity's ID column must be set.
func (e Engine) CreateRecord(ctx context.Context, entity string, rec domain.Record, actorID string) (domain.Record, error) {
	if !repo.ValidEntity(entity) {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	idField := domain.IDField(entity)
	id := recordID(rec, idField)
	if id == "" {
		return nil, fmt.Errorf("%s is required", idField)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	max, err := e.Repo.MaxRowTx(ctx, tx, entity)
	if err != nil {
		return nil, err
	}
	if err := e.Repo.InsertRecordsTx(ctx, tx, entity, []domain.Record{rec}, max+1); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "record.created", entity, id, actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecord overlays patch onto the stored record. A nil patch value
// removes the key; everything else replaces it. Changing the ID column is
// allowed and re-keys the record.
func (e Engine) UpdateRecord(ctx context.Context, entity, id string, patch domain.Record, actorID string) (domain.Record, error) {
	if !repo.ValidEntity(entity) {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	rec, err := e.Repo.GetRecord(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	merged := make(domain.Record, len(rec)+len(patch))
	for k, v := range rec {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRecordTx(ctx, tx, entity, id, merged); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "record.updated", entity, id, actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return merged, nil
}

func (e Engine) DeleteRecord(ctx context.Context, entity, id, actorID string) error {
	if !repo.ValidEntity(entity) {
		return fmt.Errorf("unknown entity %q", entity)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteRecordTx(ctx, tx, entity, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "record.deleted", entity, id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearEntity drops every record of one entity.
func (e Engine) ClearEntity(ctx context.Context, entity, actorID string) error {
	if !repo.ValidEntity(entity) {
		return fmt.Errorf("unknown entity %q", entity)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ClearEntityTx(ctx, tx, entity); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "entities.cleared", entity, "", actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// --- rules ---

// AddRule validates the rule against the current data set and stores it.
// Any validation problem rejects the rule atomically; conflict detection is
// advisory and never blocks storage.
func (e Engine) AddRule(ctx context.Context, rule domain.Rule, actorID string) (domain.Rule, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return domain.Rule{}, err
	}
	if problems := rules.Validate(rule, snap); len(problems) > 0 {
		return domain.Rule{}, RuleValidationError{Problems: problems}
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	if rule.Metadata.CreatedBy == "" {
		rule.Metadata.CreatedBy = actorID
	}
	rule.Metadata.CreatedAt = now
	rule.Metadata.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Rule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRuleTx(ctx, tx, rule); err != nil {
		return domain.Rule{}, err
	}
	if err := e.Events.Append(ctx, tx, "rule.added", domain.EntityRule, rule.ID, actorID, events.EventPayload{
		"type": string(rule.Type),
	}); err != nil {
		return domain.Rule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Rule{}, err
	}
	e.Log.Info("rule added", zap.String("rule_id", rule.ID), zap.String("type", string(rule.Type)))
	return rule, nil
}

// UpdateRule merges a partial patch (flat rule JSON) into the stored rule and
// revalidates the merged rule as a whole before persisting.
func (e Engine) UpdateRule(ctx context.Context, id string, patch json.RawMessage, actorID string) (domain.Rule, error) {
	existing, err := e.Repo.GetRule(ctx, id)
	if err != nil {
		return domain.Rule{}, err
	}
	merged, err := mergeRule(existing, patch)
	if err != nil {
		return domain.Rule{}, err
	}
	merged.ID = existing.ID
	merged.Metadata.CreatedBy = existing.Metadata.CreatedBy
	merged.Metadata.CreatedAt = existing.Metadata.CreatedAt
	merged.Metadata.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	snap, err := e.Snapshot(ctx)
	if err != nil {
		return domain.Rule{}, err
	}
	if problems := rules.Validate(merged, snap); len(problems) > 0 {
		return domain.Rule{}, RuleValidationError{Problems: problems}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Rule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRuleTx(ctx, tx, merged); err != nil {
		return domain.Rule{}, err
	}
	if err := e.Events.Append(ctx, tx, "rule.updated", domain.EntityRule, merged.ID, actorID, nil); err != nil {
		return domain.Rule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Rule{}, err
	}
	return merged, nil
}

// mergeRule overlays the patch onto the rule's flat wire form and re-decodes,
// so a patch only needs the fields it changes.
func mergeRule(existing domain.Rule, patch json.RawMessage) (domain.Rule, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return domain.Rule{}, err
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return domain.Rule{}, err
	}
	var p map[string]any
	if err := json.Unmarshal(patch, &p); err != nil {
		return domain.Rule{}, fmt.Errorf("invalid rule patch: %w", err)
	}
	for k, v := range p {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return domain.Rule{}, err
	}
	var merged domain.Rule
	if err := json.Unmarshal(raw, &merged); err != nil {
		return domain.Rule{}, fmt.Errorf("invalid merged rule: %w", err)
	}
	return merged, nil
}

func (e Engine) DeleteRule(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteRuleTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rule.deleted", domain.EntityRule, id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// RuleConflicts runs the advisory pairwise conflict detection over the
// stored rule set.
func (e Engine) RuleConflicts(ctx context.Context) ([]domain.Conflict, error) {
	stored, err := e.Repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return rules.DetectConflicts(stored), nil
}

// --- validation ---

// Snapshot loads the full data set for one validation pass.
func (e Engine) Snapshot(ctx context.Context) (validate.Snapshot, error) {
	var snap validate.Snapshot
	var err error
	if snap.Clients, err = e.Repo.ListRecords(ctx, domain.EntityClient); err != nil {
		return snap, err
	}
	if snap.Workers, err = e.Repo.ListRecords(ctx, domain.EntityWorker); err != nil {
		return snap, err
	}
	if snap.Tasks, err = e.Repo.ListRecords(ctx, domain.EntityTask); err != nil {
		return snap, err
	}
	if snap.Rules, err = e.Repo.ListRules(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// ContentHash fingerprints a snapshot. Record maps marshal with sorted keys,
// so the hash is stable for identical content.
func ContentHash(snap validate.Snapshot) string {
	raw, err := json.Marshal(struct {
		Clients []domain.Record `json:"clients"`
		Workers []domain.Record `json:"workers"`
		Tasks   []domain.Record `json:"tasks"`
		Rules   []domain.Rule   `json:"rules"`
	}{snap.Clients, snap.Workers, snap.Tasks, snap.Rules})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// RunValidation executes one validation pass over the current store and
// archives the outcome. The cache is consulted by content hash first; a hit
// still archives a run, so history stays complete. Cache absence or failure
// changes nothing but latency.
func (e Engine) RunValidation(ctx context.Context, actorID string) (domain.ValidationRun, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return domain.ValidationRun{}, err
	}
	hash := ContentHash(snap)

	result, hit := e.Cache.GetResult(ctx, hash)
	if !hit {
		result = validate.All(snap)
		e.Cache.PutResult(ctx, hash, result)
	}

	run := domain.ValidationRun{
		ID:          uuid.New().String(),
		TS:          e.now().UTC().Format(time.RFC3339),
		ContentHash: hash,
		IsValid:     result.IsValid,
		Errors:      result.Summary.Errors,
		Warnings:    result.Summary.Warnings + result.Summary.Info,
		Result:      result,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ValidationRun{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertValidationRunTx(ctx, tx, run); err != nil {
		return domain.ValidationRun{}, err
	}
	if keep := e.historyKeep(); keep > 0 {
		if err := e.Repo.TrimValidationRunsTx(ctx, tx, keep); err != nil {
			return domain.ValidationRun{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "validation.completed", domain.EntitySystem, run.ID, actorID, events.EventPayload{
		"is_valid": run.IsValid,
		"errors":   run.Errors,
		"warnings": run.Warnings,
		"cached":   hit,
	}); err != nil {
		return domain.ValidationRun{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ValidationRun{}, err
	}
	e.Log.Info("validation completed",
		zap.String("run_id", run.ID),
		zap.Bool("is_valid", run.IsValid),
		zap.Int("errors", run.Errors),
		zap.Int("warnings", run.Warnings),
		zap.Bool("cached", hit))
	return run, nil
}

func (e Engine) historyKeep() int {
	if e.Config == nil {
		return 0
	}
	return e.Config.History.Keep
}

// CoRunGraph analyzes the task graph induced by the stored co-run rules.
func (e Engine) CoRunGraph(ctx context.Context) (graph.Analysis, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return graph.Analysis{}, err
	}
	return validate.BuildCoRunGraph(snap.Tasks, snap.Rules).Analyze(), nil
}

// --- helpers ---

func recordID(rec domain.Record, field string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return strings.TrimSpace(s)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(raw), `"`)
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
