// Package repo persists snapshots, generated reports, and the run event log
// in the workspace database.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealscope/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Report kinds stored in the reports table.
const (
	ReportHygiene   = "hygiene"
	ReportAging     = "aging"
	ReportQuarterly = "forecast_quarterly"
	ReportWeekly    = "forecast_weekly"
)

// StoredReport is a generated report with its storage envelope. Payload is
// the report's JSON rendering; callers unmarshal into the concrete type for
// the kind.
type StoredReport struct {
	ID          string          `json:"id"`
	SnapshotID  string          `json:"snapshot_id"`
	Kind        string          `json:"kind"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     json.RawMessage `json:"payload"`
}

// SnapshotInfo is the listing row for a stored snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
	DealCount int       `json:"deal_count"`
}

// SaveSnapshot stores a snapshot and its deals in one transaction.
func (r Repo) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	pipelines, err := json.Marshal(snap.Pipelines)
	if err != nil {
		return fmt.Errorf("marshal pipelines: %w", err)
	}
	owners, err := json.Marshal(snap.Owners)
	if err != nil {
		return fmt.Errorf("marshal owners: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(id,fetched_at,pipelines_json,owners_json,deal_count,created_at) VALUES (?,?,?,?,?,?)`,
		snap.ID, snap.FetchedAt.UTC().Format(time.RFC3339), string(pipelines), string(owners), len(snap.Deals), now); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	for _, d := range snap.Deals {
		props, err := json.Marshal(d.Properties)
		if err != nil {
			return fmt.Errorf("marshal deal %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_deals(snapshot_id,id,properties_json,created_at,updated_at) VALUES (?,?,?,?,?)`,
			snap.ID, d.ID, string(props), timeOrNull(d.CreatedAt), timeOrNull(d.UpdatedAt)); err != nil {
			return fmt.Errorf("insert deal %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// GetSnapshot loads a stored snapshot by id.
func (r Repo) GetSnapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var fetchedAt, pipelines, owners string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,fetched_at,pipelines_json,owners_json FROM snapshots WHERE id=?`, id).
		Scan(&snap.ID, &fetchedAt, &pipelines, &owners)
	if err == sql.ErrNoRows {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, err
	}
	if snap.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return snap, fmt.Errorf("snapshot %s fetched_at: %w", id, err)
	}
	if err := json.Unmarshal([]byte(pipelines), &snap.Pipelines); err != nil {
		return snap, fmt.Errorf("snapshot %s pipelines: %w", id, err)
	}
	if err := json.Unmarshal([]byte(owners), &snap.Owners); err != nil {
		return snap, fmt.Errorf("snapshot %s owners: %w", id, err)
	}
	snap.Deals, err = r.snapshotDeals(ctx, id)
	return snap, err
}

// LatestSnapshot loads the most recently fetched snapshot.
func (r Repo) LatestSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var id string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id FROM snapshots ORDER BY fetched_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	return r.GetSnapshot(ctx, id)
}

func (r Repo) snapshotDeals(ctx context.Context, snapshotID string) ([]domain.Deal, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,properties_json,created_at,updated_at FROM snapshot_deals WHERE snapshot_id=? ORDER BY id`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		var props string
		var createdAt, updatedAt sql.NullString
		if err := rows.Scan(&d.ID, &props, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &d.Properties); err != nil {
			return nil, fmt.Errorf("deal %s properties: %w", d.ID, err)
		}
		d.CreatedAt = parseTimeOrZero(createdAt)
		d.UpdatedAt = parseTimeOrZero(updatedAt)
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// ListSnapshots returns stored snapshots, newest first.
func (r Repo) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	query := `SELECT id,fetched_at,deal_count FROM snapshots ORDER BY fetched_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var fetchedAt string
		if err := rows.Scan(&info.ID, &fetchedAt, &info.DealCount); err != nil {
			return nil, err
		}
		info.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		res = append(res, info)
	}
	return res, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots. Deals, reports,
// and their rows cascade.
func (r Repo) PruneSnapshots(ctx context.Context, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("keep must be positive")
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM snapshots WHERE id NOT IN (
		SELECT id FROM snapshots ORDER BY fetched_at DESC, id DESC LIMIT ?)`, keep)
	return err
}

// SaveReport stores a generated report payload.
func (r Repo) SaveReport(ctx context.Context, rep StoredReport) error {
	if rep.ID == "" || rep.Kind == "" {
		return fmt.Errorf("report id and kind are required")
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO reports(id,snapshot_id,kind,generated_at,payload_json) VALUES (?,?,?,?,?)`,
		rep.ID, rep.SnapshotID, rep.Kind, rep.GeneratedAt.UTC().Format(time.RFC3339), string(rep.Payload))
	return err
}

// LatestReport loads the most recent report of a kind.
func (r Repo) LatestReport(ctx context.Context, kind string) (StoredReport, error) {
	var rep StoredReport
	var generatedAt, payload string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,snapshot_id,kind,generated_at,payload_json FROM reports WHERE kind=? ORDER BY generated_at DESC, id DESC LIMIT 1`, kind).
		Scan(&rep.ID, &rep.SnapshotID, &rep.Kind, &generatedAt, &payload)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	rep.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	rep.Payload = json.RawMessage(payload)
	return rep, nil
}

// LatestEvents returns recent run events, newest first. evtType filters when
// non-empty.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,ts,type,snapshot_id,actor,payload_json FROM events`
	var args []any
	if evtType != "" {
		query += ` WHERE type=?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var snapshotID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &snapshotID, &e.Actor, &payload); err != nil {
			return nil, err
		}
		if snapshotID.Valid {
			e.SnapshotID = snapshotID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func timeOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimeOrZero(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}
