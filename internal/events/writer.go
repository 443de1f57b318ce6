// Package events appends rows to the run log: one event per sync, analysis,
// or export, written in the same transaction as the work it records.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the CLI and server.
const (
	TypeSync     = "sync"
	TypeAnalysis = "analysis"
	TypeExport   = "export"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

// Append writes one event. When tx is nil the event is written outside any
// transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, snapshotID, actor string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	const query = `INSERT INTO events(ts,type,snapshot_id,actor,payload_json) VALUES (?,?,?,?,?)`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, ts, evtType, nullable(snapshotID), actor, string(data))
	} else {
		_, err = w.DB.ExecContext(ctx, query, ts, evtType, nullable(snapshotID), actor, string(data))
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
