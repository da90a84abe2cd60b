package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
)

// Repo is the authoritative store for entity records, rules, validation runs
// and the event log. Records keep their raw ingested shape: duplicate IDs and
// malformed cells are storable on purpose, so the validation pipeline can see
// and report them.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Entities accepted by the record store.
var entityKinds = map[string]bool{
	domain.EntityClient: true,
	domain.EntityWorker: true,
	domain.EntityTask:   true,
}

// ValidEntity reports whether kind names a record entity.
func ValidEntity(kind string) bool { return entityKinds[kind] }

// --- records ---

func (r Repo) ListRecords(ctx context.Context, entity string) ([]domain.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT fields_json FROM records WHERE entity=? ORDER BY row_num, seq`, entity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", entity, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r Repo) CountRecords(ctx context.Context, entity string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE entity=?`, entity).Scan(&n)
	return n, err
}

// GetRecord returns the first record with the given ID value. With duplicate
// IDs in the store this is the earliest row; validation reports the rest.
func (r Repo) GetRecord(ctx context.Context, entity, recordID string) (domain.Record, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT fields_json FROM records WHERE entity=? AND record_id=? ORDER BY row_num, seq LIMIT 1`,
		entity, recordID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", entity, err)
	}
	return rec, nil
}

// InsertRecordsTx appends records starting at row startRow.
func (r Repo) InsertRecordsTx(ctx context.Context, tx *sql.Tx, entity string, records []domain.Record, startRow int) error {
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", entity, err)
		}
		id := coerce.String(rec[domain.IDField(entity)])
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(entity,record_id,row_num,fields_json) VALUES (?,?,?,?)`,
			entity, id, startRow+i, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// MaxRowTx returns the highest row number for an entity, 0 when empty.
func (r Repo) MaxRowTx(ctx context.Context, tx *sql.Tx, entity string) (int, error) {
	var n sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(row_num) FROM records WHERE entity=?`, entity).Scan(&n); err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

func (r Repo) UpdateRecordTx(ctx context.Context, tx *sql.Tx, entity, recordID string, rec domain.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", entity, err)
	}
	newID := coerce.String(rec[domain.IDField(entity)])
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET fields_json=?, record_id=? WHERE seq IN (
			SELECT seq FROM records WHERE entity=? AND record_id=? ORDER BY row_num, seq LIMIT 1)`,
		string(raw), newID, entity, recordID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecordTx removes every row carrying the ID value.
func (r Repo) DeleteRecordTx(ctx context.Context, tx *sql.Tx, entity, recordID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE entity=? AND record_id=?`, entity, recordID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ClearEntityTx(ctx context.Context, tx *sql.Tx, entity string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM records WHERE entity=?`, entity)
	return err
}

// --- rules ---

func scanRule(raw string) (domain.Rule, error) {
	var rule domain.Rule
	if err := json.Unmarshal([]byte(raw), &rule); err != nil {
		return domain.Rule{}, fmt.Errorf("decode rule: %w", err)
	}
	return rule, nil
}

func (r Repo) ListRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT rule_json FROM rules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Rule
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rule, err := scanRule(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r Repo) GetRule(ctx context.Context, id string) (domain.Rule, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT rule_json FROM rules WHERE id=?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.Rule{}, ErrNotFound
	}
	if err != nil {
		return domain.Rule{}, err
	}
	return scanRule(raw)
}

func (r Repo) InsertRuleTx(ctx context.Context, tx *sql.Tx, rule domain.Rule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rules(id,type,is_active,priority,rule_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		rule.ID, string(rule.Type), boolInt(rule.IsActive), rule.Priority, string(raw), rule.Metadata.CreatedAt, rule.Metadata.UpdatedAt)
	return err
}

func (r Repo) UpdateRuleTx(ctx context.Context, tx *sql.Tx, rule domain.Rule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE rules SET type=?, is_active=?, priority=?, rule_json=?, updated_at=? WHERE id=?`,
		string(rule.Type), boolInt(rule.IsActive), rule.Priority, string(raw), rule.Metadata.UpdatedAt, rule.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteRuleTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- validation runs ---

func (r Repo) InsertValidationRunTx(ctx context.Context, tx *sql.Tx, run domain.ValidationRun) error {
	raw, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode validation result: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO validation_runs(id,ts,content_hash,is_valid,error_count,warning_count,result_json) VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.TS, run.ContentHash, boolInt(run.IsValid), run.Errors, run.Warnings, string(raw))
	return err
}

func scanRun(rows interface{ Scan(...any) error }) (domain.ValidationRun, error) {
	var run domain.ValidationRun
	var valid int
	var raw string
	if err := rows.Scan(&run.ID, &run.TS, &run.ContentHash, &valid, &run.Errors, &run.Warnings, &raw); err != nil {
		return run, err
	}
	run.IsValid = valid != 0
	if err := json.Unmarshal([]byte(raw), &run.Result); err != nil {
		return run, fmt.Errorf("decode validation result: %w", err)
	}
	return run, nil
}

func (r Repo) GetValidationRun(ctx context.Context, id string) (domain.ValidationRun, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,ts,content_hash,is_valid,error_count,warning_count,result_json FROM validation_runs WHERE id=?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return domain.ValidationRun{}, ErrNotFound
	}
	return run, err
}

func (r Repo) ListValidationRuns(ctx context.Context, limit int) ([]domain.ValidationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,content_hash,is_valid,error_count,warning_count,result_json FROM validation_runs ORDER BY ts DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ValidationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// TrimValidationRunsTx keeps the newest keep runs and deletes the rest.
func (r Repo) TrimValidationRunsTx(ctx context.Context, tx *sql.Tx, keep int) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM validation_runs WHERE id NOT IN (
		SELECT id FROM validation_runs ORDER BY ts DESC, id LIMIT ?)`, keep)
	return err
}

// --- events ---

func (r Repo) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
