package engine

import (
	"fmt"
	"time"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

// Flags appended by the aging analyzer, after any stage-specific stalled
// message.
const (
	FlagNoActivity = "No Recent Activity"
	FlagPastDue    = "Past-Due Close Date"
)

// AnalyzeAging computes stage residency for one deal. A nil diagnostic
// means the record is valid; otherwise the deal is skipped (unmonitored
// stage or no resolvable entry timestamp) and the run continues.
func (e Engine) AnalyzeAging(d domain.Deal) (domain.StageAgingRecord, *domain.Diagnostic) {
	_, stageID := e.dealStage(d)
	rule, ok := e.agingRule(stageID)
	if !ok {
		return domain.StageAgingRecord{}, &domain.Diagnostic{
			DealID:   d.ID,
			DealName: d.Name(),
			Reason:   fmt.Sprintf("stage %q is not monitored", stageID),
		}
	}
	entry, ok := e.ResolveStageEntry(d, stageID)
	if !ok {
		return domain.StageAgingRecord{}, &domain.Diagnostic{
			DealID:   d.ID,
			DealName: d.Name(),
			Reason:   fmt.Sprintf("no stage entry timestamp for stage %q", stageID),
		}
	}
	now := e.now()
	rec := domain.StageAgingRecord{
		DealID:        d.ID,
		DealName:      d.Name(),
		Owner:         e.dealOwnerName(d),
		StageID:       rule.StageID,
		StageLabel:    rule.Label,
		EntryProperty: entry.Property,
		DaysInStage:   wholeDays(now.Sub(entry.At)),
	}
	if !d.UpdatedAt.IsZero() {
		days := wholeDays(now.Sub(d.UpdatedAt))
		rec.DaysSinceModified = &days
	}
	// Flag order is fixed; every flag that applies is kept.
	if rec.DaysInStage > rule.ThresholdDays {
		rec.Flags = append(rec.Flags, rule.Flag)
	}
	if rec.DaysSinceModified != nil && *rec.DaysSinceModified > e.Config.Aging.NoActivityDays {
		rec.Flags = append(rec.Flags, FlagNoActivity)
	}
	if v, ok := d.Property(domain.PropCloseDate); ok {
		if at, ok := v.AsTime(); ok && at.Before(now) {
			rec.Flags = append(rec.Flags, FlagPastDue)
		}
	}
	return rec, nil
}

func (e Engine) agingRule(stageID string) (config.StageAgingRule, bool) {
	for _, rule := range e.Config.Aging.Stages {
		if rule.StageID == stageID {
			return rule, true
		}
	}
	return config.StageAgingRule{}, false
}

// SummarizeAging analyzes every deal and aggregates per monitored stage,
// in configured stage order. Unflagged deals still count toward stage
// averages; only flagged deals count as flagged.
func (e Engine) SummarizeAging(deals []domain.Deal) domain.StageAgingSummary {
	sum := domain.StageAgingSummary{GeneratedAt: e.now()}
	byStage := map[string][]domain.StageAgingRecord{}
	for _, d := range deals {
		rec, diag := e.AnalyzeAging(d)
		if diag != nil {
			sum.Skipped = append(sum.Skipped, *diag)
			continue
		}
		sum.Records = append(sum.Records, rec)
		byStage[rec.StageID] = append(byStage[rec.StageID], rec)
		sum.TotalDeals++
		if len(rec.Flags) > 0 {
			sum.FlaggedCount++
		}
		for _, f := range rec.Flags {
			switch f {
			case FlagNoActivity:
				sum.NoActivityCount++
			case FlagPastDue:
				sum.PastDueCount++
			default:
				sum.StalledCount++
			}
		}
	}
	sum.SkippedCount = len(sum.Skipped)
	for _, rule := range e.Config.Aging.Stages {
		recs := byStage[rule.StageID]
		if len(recs) == 0 {
			continue
		}
		stage := domain.StageAgingStage{
			StageID:     rule.StageID,
			StageLabel:  rule.Label,
			DealCount:   len(recs),
			LongestDays: -1,
		}
		days := make([]int, 0, len(recs))
		total := 0
		for _, rec := range recs {
			days = append(days, rec.DaysInStage)
			total += rec.DaysInStage
			if len(rec.Flags) > 0 {
				stage.FlaggedCount++
			}
			// Ties keep the first-encountered deal.
			if rec.DaysInStage > stage.LongestDays {
				stage.LongestDays = rec.DaysInStage
				stage.LongestDealID = rec.DealID
				stage.LongestDealName = rec.DealName
			}
		}
		stage.MeanDays = float64(total) / float64(len(recs))
		stage.MedianDays = median(days)
		sum.Stages = append(sum.Stages, stage)
	}
	return sum
}

// wholeDays truncates toward zero; a deal 47 hours into a stage has been
// there 1 day.
func wholeDays(dur time.Duration) int {
	return int(dur.Hours() / 24)
}
