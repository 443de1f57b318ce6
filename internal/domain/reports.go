package domain

import "time"

// Completeness tiers.
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierPoor      = "poor"
)

// Diagnostic records why a deal was left out of a report. Skipped deals are
// never fatal; they surface here.
type Diagnostic struct {
	DealID   string `json:"deal_id"`
	DealName string `json:"deal_name,omitempty"`
	Reason   string `json:"reason"`
}

// HygieneReport is the per-deal completeness result.
type HygieneReport struct {
	DealID   string   `json:"deal_id"`
	DealName string   `json:"deal_name"`
	Owner    string   `json:"owner,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Score    int      `json:"score"`
	Tier     string   `json:"tier"`
	Flagged  bool     `json:"flagged"`
}

// PropertyMissCount is a per-required-property miss tally, in the
// configured display order.
type PropertyMissCount struct {
	Label string  `json:"label"`
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Rate  float64 `json:"rate"`
}

type HygieneSummary struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	TotalDeals   int                 `json:"total_deals"`
	FlagPolicy   string              `json:"flag_policy"`
	FlaggedCount int                 `json:"flagged_count"`
	AverageScore float64             `json:"average_score"`
	TierCounts   map[string]int      `json:"tier_counts"`
	MissCounts   []PropertyMissCount `json:"miss_counts"`
	PastDue      []string            `json:"past_due,omitempty"`
	Deals        []HygieneReport     `json:"deals"`
}

// StageAgingRecord is the per-deal residency result.
type StageAgingRecord struct {
	DealID            string   `json:"deal_id"`
	DealName          string   `json:"deal_name"`
	Owner             string   `json:"owner,omitempty"`
	StageID           string   `json:"stage_id"`
	StageLabel        string   `json:"stage_label"`
	EntryProperty     string   `json:"entry_property"`
	DaysInStage       int      `json:"days_in_stage"`
	DaysSinceModified *int     `json:"days_since_modified,omitempty"`
	Flags             []string `json:"flags,omitempty"`
}

type StageAgingStage struct {
	StageID         string  `json:"stage_id"`
	StageLabel      string  `json:"stage_label"`
	DealCount       int     `json:"deal_count"`
	FlaggedCount    int     `json:"flagged_count"`
	MeanDays        float64 `json:"mean_days"`
	MedianDays      float64 `json:"median_days"`
	LongestDealID   string  `json:"longest_deal_id,omitempty"`
	LongestDealName string  `json:"longest_deal_name,omitempty"`
	LongestDays     int     `json:"longest_days"`
}

type StageAgingSummary struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	TotalDeals      int                `json:"total_deals"`
	FlaggedCount    int                `json:"flagged_count"`
	SkippedCount    int                `json:"skipped_count"`
	StalledCount    int                `json:"stalled_count"`
	NoActivityCount int                `json:"no_activity_count"`
	PastDueCount    int                `json:"past_due_count"`
	Stages          []StageAgingStage  `json:"stages"`
	Records         []StageAgingRecord `json:"records"`
	Skipped         []Diagnostic       `json:"skipped,omitempty"`
}

// StageBucket is one row of the weighted pipeline breakdown.
type StageBucket struct {
	Label          string  `json:"label"`
	DealCount      int     `json:"deal_count"`
	PipelineAmount float64 `json:"pipeline_amount"`
	Weight         float64 `json:"weight"`
	WeightedAmount float64 `json:"weighted_amount"`
	PercentOfTotal float64 `json:"percent_of_total"`
}

type OwnerBucket struct {
	OwnerID   string  `json:"owner_id"`
	OwnerName string  `json:"owner_name"`
	DealCount int     `json:"deal_count"`
	Amount    float64 `json:"amount"`
}

type MonthBucket struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Label     string  `json:"label"`
	DealCount int     `json:"deal_count"`
	Amount    float64 `json:"amount"`
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports range membership, inclusive on both ends. The zero time
// is never contained.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

type Quarter struct {
	Year   int `json:"year"`
	Number int `json:"number"`
	Window
}

type ForecastSummary struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Quarter      Quarter       `json:"quarter"`
	Months       []MonthBucket `json:"months"`
	Owners       []OwnerBucket `json:"owners"`
	TotalARR     float64       `json:"total_arr"`
	AverageARR   float64       `json:"average_arr"`
	TotalDeals   int           `json:"total_deals"`
	SkippedCount int           `json:"skipped_count"`
	Skipped      []Diagnostic  `json:"skipped,omitempty"`
}

type WeeklyForecastReport struct {
	GeneratedAt      time.Time     `json:"generated_at"`
	Week             Window        `json:"week"`
	Stages           []StageBucket `json:"stages"`
	TotalPipeline    float64       `json:"total_pipeline"`
	TotalWeighted    float64       `json:"total_weighted"`
	ClosedWonCount   int           `json:"closed_won_count"`
	ClosedWonAmount  float64       `json:"closed_won_amount"`
	ClosedLostCount  int           `json:"closed_lost_count"`
	ClosedLostAmount float64       `json:"closed_lost_amount"`
}
