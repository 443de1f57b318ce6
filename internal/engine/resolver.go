package engine

import (
	"time"

	"dealscope/internal/domain"
)

// StageEntry is a resolved stage-entry timestamp plus the property name it
// came from, retained for auditability.
type StageEntry struct {
	Property string    `json:"property"`
	At       time.Time `json:"at"`
}

// ResolveStageEntry finds when a deal entered the given stage. CRM portals
// migrated the property naming convention, so the versioned name is tried
// first and the legacy name second; both may coexist on one portal. Returns
// false when neither holds a parseable timestamp, in which case the caller
// skips the deal with a diagnostic rather than failing the run.
func (e Engine) ResolveStageEntry(d domain.Deal, stageID string) (StageEntry, bool) {
	v2, legacy := e.Config.EntryPrefixes()
	for _, name := range []string{v2 + stageID, legacy + stageID} {
		v, ok := d.Property(name)
		if !ok || v.IsEmpty() {
			continue
		}
		if at, ok := v.AsTime(); ok {
			return StageEntry{Property: name, At: at}, true
		}
	}
	return StageEntry{}, false
}
