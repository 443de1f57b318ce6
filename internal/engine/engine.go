// Package engine implements the deal analytics core: completeness scoring,
// stage aging, and revenue forecasting over an in-memory CRM snapshot. The
// engine is pure: it reads time through an injected clock, never mutates its
// inputs, and reports bad data as diagnostics instead of errors.
package engine

import (
	"errors"
	"time"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

type Engine struct {
	Config *config.Config
	Owners map[string]domain.Owner
	Stages map[string]domain.Stage
	Now    func() time.Time

	// stageLabels resolves a bare stage id when the deal carries no
	// pipeline property; first pipeline encountered wins.
	stageLabels map[string]string
}

// New validates the config and returns an engine with empty lookup tables.
// Configuration mistakes fail here, before any deal is touched.
func New(cfg *config.Config) (Engine, error) {
	if cfg == nil {
		return Engine{}, errors.New("config not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return Engine{
		Config:      cfg,
		Owners:      map[string]domain.Owner{},
		Stages:      map[string]domain.Stage{},
		Now:         time.Now,
		stageLabels: map[string]string{},
	}, nil
}

// FromSnapshot builds an engine preloaded with a snapshot's owner and stage
// lookup tables.
func FromSnapshot(cfg *config.Config, snap domain.Snapshot) (Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return e, err
	}
	e.LoadOwners(snap.Owners)
	e.LoadPipelines(snap.Pipelines)
	return e, nil
}

func (e *Engine) LoadOwners(owners []domain.Owner) {
	for _, o := range owners {
		e.Owners[o.ID] = o
	}
}

func (e *Engine) LoadPipelines(pipelines []domain.Pipeline) {
	for _, p := range pipelines {
		for _, s := range p.Stages {
			s.PipelineID = p.ID
			e.Stages[stageKey(p.ID, s.ID)] = s
			if _, ok := e.stageLabels[s.ID]; !ok {
				e.stageLabels[s.ID] = s.Label
			}
		}
	}
}

func stageKey(pipelineID, stageID string) string {
	return pipelineID + "/" + stageID
}

// StageLabel resolves a stage's display label, falling back to the raw
// stage id when the snapshot does not know it.
func (e Engine) StageLabel(pipelineID, stageID string) string {
	if s, ok := e.Stages[stageKey(pipelineID, stageID)]; ok {
		return s.Label
	}
	if label, ok := e.stageLabels[stageID]; ok {
		return label
	}
	return stageID
}

// OwnerName resolves an owner id for display; unknown ids pass through.
func (e Engine) OwnerName(id string) string {
	if o, ok := e.Owners[id]; ok {
		return o.FullName()
	}
	return id
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// dealStage returns the deal's pipeline and current stage ids from its own
// properties.
func (e Engine) dealStage(d domain.Deal) (pipelineID, stageID string) {
	if v, ok := d.Property(domain.PropPipeline); ok {
		pipelineID, _ = v.AsString()
	}
	if v, ok := d.Property(domain.PropStage); ok {
		stageID, _ = v.AsString()
	}
	return pipelineID, stageID
}

// dealStageLabel resolves the display label of the deal's current stage.
func (e Engine) dealStageLabel(d domain.Deal) string {
	pipelineID, stageID := e.dealStage(d)
	if stageID == "" {
		return ""
	}
	return e.StageLabel(pipelineID, stageID)
}

// dealOwnerName resolves the deal's owner for display enrichment.
func (e Engine) dealOwnerName(d domain.Deal) string {
	v, ok := d.Property(domain.PropOwner)
	if !ok {
		return ""
	}
	id, ok := v.AsString()
	if !ok || id == "" {
		return ""
	}
	return e.OwnerName(id)
}

// dealAmount parses the deal amount leniently: absent, null, or
// unparseable values count as zero, never as an error.
func dealAmount(d domain.Deal) float64 {
	v, ok := d.Property(domain.PropAmount)
	if !ok {
		return 0
	}
	f, ok := v.AsNumber()
	if !ok {
		return 0
	}
	return f
}
