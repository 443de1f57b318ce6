package domain

// Event is one row of the append-only run log: syncs, analyses, exports.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload,omitempty"`
}
