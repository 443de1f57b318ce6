package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"dealscope/internal/domain"
)

// UnclassifiedBucket collects deals whose stage label matches no entry of
// the weight table. They carry weight 0 but still count toward totals.
const UnclassifiedBucket = "Other"

// stageBucketFor matches a stage label against the configured keyword
// table, case-insensitively. Within one weight entry, each keyword
// alternative is a set of substrings that must all appear in the label.
// This is fuzzy business vocabulary and is kept in one place on purpose.
func (e Engine) stageBucketFor(label string) (string, float64) {
	l := strings.ToLower(label)
	for _, sw := range e.Config.Forecast.StageWeights {
		for _, alt := range sw.Keywords {
			matched := true
			for _, kw := range alt {
				if !strings.Contains(l, strings.ToLower(kw)) {
					matched = false
					break
				}
			}
			if matched {
				return sw.Bucket, sw.Weight
			}
		}
	}
	return UnclassifiedBucket, 0
}

// AggregateByStage buckets deals into the weighted pipeline breakdown.
// Output order is the canonical weight-table order, with the unclassified
// bucket last when occupied. Percentages are computed in a second pass once
// the total is known.
func (e Engine) AggregateByStage(deals []domain.Deal) []domain.StageBucket {
	buckets := make([]domain.StageBucket, 0, len(e.Config.Forecast.StageWeights)+1)
	index := map[string]int{}
	for _, sw := range e.Config.Forecast.StageWeights {
		index[sw.Bucket] = len(buckets)
		buckets = append(buckets, domain.StageBucket{Label: sw.Bucket, Weight: sw.Weight})
	}
	index[UnclassifiedBucket] = len(buckets)
	buckets = append(buckets, domain.StageBucket{Label: UnclassifiedBucket})

	for _, d := range deals {
		bucket, _ := e.stageBucketFor(e.dealStageLabel(d))
		b := &buckets[index[bucket]]
		b.DealCount++
		b.PipelineAmount += dealAmount(d)
	}

	var total float64
	for i := range buckets {
		total += buckets[i].PipelineAmount
	}
	for i := range buckets {
		b := &buckets[i]
		b.WeightedAmount = b.PipelineAmount * b.Weight
		if total > 0 {
			b.PercentOfTotal = math.Round(10000*b.PipelineAmount/total) / 100
		}
	}
	if buckets[len(buckets)-1].DealCount == 0 {
		buckets = buckets[:len(buckets)-1]
	}
	return buckets
}

// AggregateByOwner buckets deals by owner, sorted by descending amount with
// first-encountered insertion order breaking ties.
func (e Engine) AggregateByOwner(deals []domain.Deal) []domain.OwnerBucket {
	var buckets []domain.OwnerBucket
	index := map[string]int{}
	for _, d := range deals {
		ownerID := ""
		if v, ok := d.Property(domain.PropOwner); ok {
			ownerID, _ = v.AsString()
		}
		i, ok := index[ownerID]
		if !ok {
			i = len(buckets)
			index[ownerID] = i
			name := "Unassigned"
			if ownerID != "" {
				name = e.OwnerName(ownerID)
			}
			buckets = append(buckets, domain.OwnerBucket{OwnerID: ownerID, OwnerName: name})
		}
		buckets[i].DealCount++
		buckets[i].Amount += dealAmount(d)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Amount > buckets[j].Amount
	})
	return buckets
}

// AggregateByMonth buckets deals by close-date month across the whole
// window. Every month of the window is emitted, empty ones included, so
// month-over-month displays have no gaps.
func (e Engine) AggregateByMonth(deals []domain.Deal, w domain.Window) []domain.MonthBucket {
	var buckets []domain.MonthBucket
	index := map[string]int{}
	for cursor := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, w.Start.Location()); !cursor.After(w.End); cursor = cursor.AddDate(0, 1, 0) {
		label := fmt.Sprintf("%04d-%02d", cursor.Year(), int(cursor.Month()))
		index[label] = len(buckets)
		buckets = append(buckets, domain.MonthBucket{
			Year:  cursor.Year(),
			Month: int(cursor.Month()),
			Label: label,
		})
	}
	for _, d := range deals {
		v, ok := d.Property(domain.PropCloseDate)
		if !ok {
			continue
		}
		at, ok := v.AsTime()
		if !ok || !w.Contains(at) {
			continue
		}
		label := fmt.Sprintf("%04d-%02d", at.Year(), int(at.Month()))
		if i, ok := index[label]; ok {
			buckets[i].DealCount++
			buckets[i].Amount += dealAmount(d)
		}
	}
	return buckets
}

// median returns the standard median: the mean of the two middle values
// for even-sized populations.
func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
