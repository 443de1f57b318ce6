package repo_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dealscope/internal/db"
	"dealscope/internal/domain"
	"dealscope/internal/events"
	"dealscope/internal/migrate"
	"dealscope/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func testSnapshot(id string, fetchedAt time.Time) domain.Snapshot {
	return domain.Snapshot{
		ID:        id,
		FetchedAt: fetchedAt,
		Pipelines: []domain.Pipeline{{
			ID:    "default",
			Label: "Sales Pipeline",
			Stages: []domain.Stage{
				{ID: "qualifiedtobuy", PipelineID: "default", Label: "SQL", Ordinal: 1, Probability: 0.2},
			},
		}},
		Owners: []domain.Owner{{ID: "owner-1", FirstName: "Ana", LastName: "Pereira"}},
		Deals: []domain.Deal{{
			ID: "d-1",
			Properties: domain.Properties{
				domain.PropName:   domain.StringValue("Acme Renewal"),
				domain.PropAmount: domain.NumberValue(12000),
				"hs_next_step":    domain.NullValue(),
			},
			CreatedAt: fetchedAt.AddDate(0, -1, 0),
			UpdatedAt: fetchedAt,
		}},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	fetched := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

	if err := r.SaveSnapshot(ctx, testSnapshot("snap-1", fetched)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	got, err := r.GetSnapshot(ctx, "snap-1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Fatalf("fetched_at = %v", got.FetchedAt)
	}
	if len(got.Pipelines) != 1 || got.Pipelines[0].Stages[0].Label != "SQL" {
		t.Fatalf("pipelines = %+v", got.Pipelines)
	}
	if len(got.Deals) != 1 {
		t.Fatalf("deals = %+v", got.Deals)
	}
	d := got.Deals[0]
	if name := d.Name(); name != "Acme Renewal" {
		t.Fatalf("deal name = %q", name)
	}
	if v, ok := d.Property("hs_next_step"); !ok || !v.IsNull() {
		t.Fatalf("null property lost: %+v ok=%v", v, ok)
	}
	if !d.UpdatedAt.Equal(fetched) {
		t.Fatalf("updated_at = %v", d.UpdatedAt)
	}
}

func TestLatestSnapshotOrdering(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	older := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)

	if err := r.SaveSnapshot(ctx, testSnapshot("snap-old", older)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.SaveSnapshot(ctx, testSnapshot("snap-new", newer)); err != nil {
		t.Fatalf("save: %v", err)
	}
	latest, err := r.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "snap-new" {
		t.Fatalf("latest = %s", latest.ID)
	}
	infos, err := r.ListSnapshots(ctx, 0)
	if err != nil || len(infos) != 2 || infos[0].ID != "snap-new" {
		t.Fatalf("list = %+v err=%v", infos, err)
	}
	if infos[0].DealCount != 1 {
		t.Fatalf("deal count = %d", infos[0].DealCount)
	}
}

func TestLatestSnapshotEmpty(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.LatestSnapshot(context.Background()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneSnapshots(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"snap-a", "snap-b", "snap-c"} {
		if err := r.SaveSnapshot(ctx, testSnapshot(id, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := r.PruneSnapshots(ctx, 2); err != nil {
		t.Fatalf("prune: %v", err)
	}
	infos, err := r.ListSnapshots(ctx, 0)
	if err != nil || len(infos) != 2 {
		t.Fatalf("after prune = %+v err=%v", infos, err)
	}
	if _, err := r.GetSnapshot(ctx, "snap-a"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("pruned snapshot still readable: %v", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	fetched := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	if err := r.SaveSnapshot(ctx, testSnapshot("snap-1", fetched)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	payload, _ := json.Marshal(map[string]any{"total_deals": 3})
	rep := repo.StoredReport{
		ID:          "rep-1",
		SnapshotID:  "snap-1",
		Kind:        repo.ReportHygiene,
		GeneratedAt: fetched,
		Payload:     payload,
	}
	if err := r.SaveReport(ctx, rep); err != nil {
		t.Fatalf("save report: %v", err)
	}
	got, err := r.LatestReport(ctx, repo.ReportHygiene)
	if err != nil {
		t.Fatalf("latest report: %v", err)
	}
	if got.ID != "rep-1" || got.SnapshotID != "snap-1" {
		t.Fatalf("report = %+v", got)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["total_deals"].(float64) != 3 {
		t.Fatalf("payload = %v", decoded)
	}
	if _, err := r.LatestReport(ctx, repo.ReportAging); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent kind, got %v", err)
	}
}

func TestEventLog(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	fixed := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	w := events.Writer{DB: r.DB, Now: func() time.Time { return fixed }}

	if err := w.Append(ctx, nil, events.TypeSync, "snap-1", "local-user", events.Payload{"deals": 42}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, nil, events.TypeAnalysis, "", "local-user", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	evts, err := r.LatestEvents(ctx, 10, "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(evts) != 2 || evts[0].Type != events.TypeAnalysis {
		t.Fatalf("events = %+v", evts)
	}
	if evts[1].SnapshotID != "snap-1" || evts[1].TS != "2025-10-15T12:00:00Z" {
		t.Fatalf("sync event = %+v", evts[1])
	}
	only, err := r.LatestEvents(ctx, 10, events.TypeSync)
	if err != nil || len(only) != 1 {
		t.Fatalf("filtered events = %+v err=%v", only, err)
	}
}
