package engine

import (
	"math"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

// ScoreDeal evaluates a deal against the configured required properties.
// Unknown property names evaluate to missing; the scorer never fails on
// schema drift.
func (e Engine) ScoreDeal(d domain.Deal) domain.HygieneReport {
	specs := e.Config.Hygiene.RequiredProperties
	var missing []string
	for _, spec := range specs {
		if e.propertyMissing(d, spec.Name) {
			missing = append(missing, spec.Label)
		}
	}
	score := 0
	if len(specs) > 0 {
		score = int(math.Round(100 * float64(len(specs)-len(missing)) / float64(len(specs))))
	}
	return domain.HygieneReport{
		DealID:   d.ID,
		DealName: d.Name(),
		Owner:    e.dealOwnerName(d),
		Missing:  missing,
		Score:    score,
		Tier:     tierFor(score),
		Flagged:  len(missing) >= e.Config.FlagThreshold(),
	}
}

// propertyMissing is the shared missing predicate: absent, null, blank
// string, or empty list. The amount property optionally treats numeric zero
// as missing, per config.
func (e Engine) propertyMissing(d domain.Deal, name string) bool {
	v, ok := d.Property(name)
	if !ok || v.IsEmpty() {
		return true
	}
	if name == domain.PropAmount && e.Config.Hygiene.ZeroAmountMissing {
		if f, ok := v.AsNumber(); ok && f == 0 {
			return true
		}
	}
	return false
}

func tierFor(score int) string {
	switch {
	case score >= 90:
		return domain.TierExcellent
	case score >= 70:
		return domain.TierGood
	}
	return domain.TierPoor
}

// SummarizeHygiene scores every deal and rolls the results up: tier
// buckets, per-property miss rates in configured display order, and the
// past-due close date list.
func (e Engine) SummarizeHygiene(deals []domain.Deal) domain.HygieneSummary {
	now := e.now()
	specs := e.Config.Hygiene.RequiredProperties
	policy := e.Config.Hygiene.FlagPolicy
	if policy == "" {
		policy = config.FlagPolicyAny
	}
	sum := domain.HygieneSummary{
		GeneratedAt: now,
		TotalDeals:  len(deals),
		FlagPolicy:  policy,
		TierCounts: map[string]int{
			domain.TierExcellent: 0,
			domain.TierGood:      0,
			domain.TierPoor:      0,
		},
	}
	missCounts := make([]domain.PropertyMissCount, len(specs))
	for i, spec := range specs {
		missCounts[i] = domain.PropertyMissCount{Label: spec.Label, Name: spec.Name}
	}
	var totalScore int
	for _, d := range deals {
		r := e.ScoreDeal(d)
		sum.Deals = append(sum.Deals, r)
		sum.TierCounts[r.Tier]++
		if r.Flagged {
			sum.FlaggedCount++
		}
		totalScore += r.Score
		for i, spec := range specs {
			if e.propertyMissing(d, spec.Name) {
				missCounts[i].Count++
			}
		}
		if v, ok := d.Property(domain.PropCloseDate); ok {
			if at, ok := v.AsTime(); ok && at.Before(now) {
				sum.PastDue = append(sum.PastDue, d.ID)
			}
		}
	}
	if len(deals) > 0 {
		sum.AverageScore = math.Round(100*float64(totalScore)/float64(len(deals))) / 100
		for i := range missCounts {
			missCounts[i].Rate = math.Round(10000*float64(missCounts[i].Count)/float64(len(deals))) / 100
		}
	}
	sum.MissCounts = missCounts
	return sum
}
