package domain

import "time"

// Well-known deal property names used by the analyses. Stage entry
// timestamps are versioned per stage and resolved separately.
const (
	PropName      = "dealname"
	PropAmount    = "amount"
	PropCloseDate = "closedate"
	PropStage     = "dealstage"
	PropPipeline  = "pipeline"
	PropOwner     = "hubspot_owner_id"
)

// Deal is an immutable snapshot of a CRM deal record. The analyses never
// mutate a Deal, only derive report structures from it.
type Deal struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Property returns the named property and whether it exists at all.
func (d Deal) Property(name string) (Value, bool) {
	v, ok := d.Properties[name]
	return v, ok
}

// Name returns the deal's display name, falling back to the id.
func (d Deal) Name() string {
	if v, ok := d.Properties[PropName]; ok {
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	return d.ID
}

type Pipeline struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Stages []Stage `json:"stages"`
}

// Stage ids are unique only within their pipeline; lookups across
// pipelines must carry the pipeline id.
type Stage struct {
	ID          string  `json:"id"`
	PipelineID  string  `json:"pipeline_id"`
	Label       string  `json:"label"`
	Ordinal     int     `json:"ordinal"`
	Probability float64 `json:"probability"`
}

type Owner struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "First Last", falling back to email, then id.
func (o Owner) FullName() string {
	switch {
	case o.FirstName != "" && o.LastName != "":
		return o.FirstName + " " + o.LastName
	case o.FirstName != "":
		return o.FirstName
	case o.LastName != "":
		return o.LastName
	case o.Email != "":
		return o.Email
	}
	return o.ID
}

// Snapshot is one run's worth of CRM data, fetched once and analyzed
// offline.
type Snapshot struct {
	ID        string     `json:"id"`
	FetchedAt time.Time  `json:"fetched_at"`
	Pipelines []Pipeline `json:"pipelines"`
	Deals     []Deal     `json:"deals"`
	Owners    []Owner    `json:"owners"`
}
