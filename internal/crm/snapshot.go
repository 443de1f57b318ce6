package crm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

// FetchSnapshot pulls pipelines, owners, and deals in one pass and bundles
// them into a snapshot for offline analysis. The deal search requests every
// configured required property plus the stage-entry timestamp properties
// for each known stage, in both versioned and legacy spellings.
func FetchSnapshot(ctx context.Context, c *Client, cfg *config.Config, now func() time.Time) (domain.Snapshot, error) {
	if now == nil {
		now = time.Now
	}
	pipelines, err := c.ListPipelines(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	owners, err := c.ListOwners(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	deals, err := c.SearchDeals(ctx, cfg.Portal.PipelineID, snapshotProperties(cfg, pipelines))
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{
		ID:        uuid.NewString(),
		FetchedAt: now().UTC(),
		Pipelines: pipelines,
		Deals:     deals,
		Owners:    owners,
	}, nil
}

func snapshotProperties(cfg *config.Config, pipelines []domain.Pipeline) []string {
	seen := map[string]bool{}
	var props []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		props = append(props, name)
	}
	for _, p := range []string{
		domain.PropName, domain.PropAmount, domain.PropCloseDate,
		domain.PropStage, domain.PropPipeline, domain.PropOwner,
	} {
		add(p)
	}
	for _, rp := range cfg.Hygiene.RequiredProperties {
		add(rp.Name)
	}
	v2, legacy := cfg.EntryPrefixes()
	for _, pl := range pipelines {
		for _, s := range pl.Stages {
			add(v2 + s.ID)
			add(legacy + s.ID)
		}
	}
	return props
}
