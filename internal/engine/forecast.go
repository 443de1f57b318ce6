package engine

import (
	"strings"
	"time"

	"dealscope/internal/domain"
)

// QuarterlyForecast projects revenue for the calendar quarter containing
// the engine clock. Deals without a parseable close date or without an
// amount value are defective data: excluded and counted as skipped. Deals
// closing outside the quarter are simply out of scope and are excluded
// silently, not counted.
func (e Engine) QuarterlyForecast(deals []domain.Deal) domain.ForecastSummary {
	now := e.now()
	quarter := CurrentQuarter(now)
	sum := domain.ForecastSummary{
		GeneratedAt: now,
		Quarter:     quarter,
	}
	var kept []domain.Deal
	for _, d := range deals {
		closeAt, ok := dealCloseDate(d)
		if !ok {
			sum.Skipped = append(sum.Skipped, domain.Diagnostic{
				DealID:   d.ID,
				DealName: d.Name(),
				Reason:   "missing or unparseable close date",
			})
			continue
		}
		if !quarter.Contains(closeAt) {
			continue
		}
		if v, ok := d.Property(domain.PropAmount); !ok || v.IsNull() {
			sum.Skipped = append(sum.Skipped, domain.Diagnostic{
				DealID:   d.ID,
				DealName: d.Name(),
				Reason:   "missing amount",
			})
			continue
		}
		kept = append(kept, d)
		sum.TotalARR += dealAmount(d)
	}
	sum.TotalDeals = len(kept)
	sum.SkippedCount = len(sum.Skipped)
	if len(kept) > 0 {
		sum.AverageARR = sum.TotalARR / float64(len(kept))
	}
	sum.Months = e.AggregateByMonth(kept, quarter.Window)
	sum.Owners = e.AggregateByOwner(kept)
	return sum
}

// WeeklyForecast builds the weighted breakdown of the open pipeline and
// tallies closed-won/lost amounts for deals closing in the current
// Monday-to-Sunday week.
func (e Engine) WeeklyForecast(deals []domain.Deal) domain.WeeklyForecastReport {
	now := e.now()
	week := CurrentWeek(now)
	report := domain.WeeklyForecastReport{
		GeneratedAt: now,
		Week:        week,
	}
	var open []domain.Deal
	for _, d := range deals {
		won, lost := closedOutcome(e.dealStageLabel(d))
		if !won && !lost {
			open = append(open, d)
			continue
		}
		closeAt, ok := dealCloseDate(d)
		if !ok || !week.Contains(closeAt) {
			continue
		}
		if won {
			report.ClosedWonCount++
			report.ClosedWonAmount += dealAmount(d)
		} else {
			report.ClosedLostCount++
			report.ClosedLostAmount += dealAmount(d)
		}
	}
	report.Stages = e.AggregateByStage(open)
	for _, b := range report.Stages {
		report.TotalPipeline += b.PipelineAmount
		report.TotalWeighted += b.WeightedAmount
	}
	return report
}

func dealCloseDate(d domain.Deal) (closeAt time.Time, ok bool) {
	v, present := d.Property(domain.PropCloseDate)
	if !present {
		return time.Time{}, false
	}
	return v.AsTime()
}

// closedOutcome classifies terminal stage labels; "Closed Won" and
// "Closed Lost" in any casing or spacing.
func closedOutcome(label string) (won, lost bool) {
	l := strings.ToLower(label)
	if !strings.Contains(l, "closed") {
		return false, false
	}
	return strings.Contains(l, "won"), strings.Contains(l, "lost")
}
