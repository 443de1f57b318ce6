package engine_test

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"dealscope/internal/domain"
	"dealscope/internal/engine"
)

// agingDeal puts a deal in the SQL stage (threshold 14 days) with the given
// entry and last-modified times.
func agingDeal(id string, entered, modified time.Time) domain.Deal {
	d := deal(id, map[string]any{
		domain.PropName:                     "Deal " + id,
		domain.PropStage:                    "qualifiedtobuy",
		domain.PropPipeline:                 "default",
		"hs_v2_date_entered_qualifiedtobuy": entered,
	})
	d.UpdatedAt = modified
	return d
}

func TestAnalyzeAgingHealthyDeal(t *testing.T) {
	e := newTestEngine(t)
	d := agingDeal("d-1", testNow.AddDate(0, 0, -10), testNow.AddDate(0, 0, -2))
	rec, diag := e.AnalyzeAging(d)
	if diag != nil {
		t.Fatalf("unexpected skip: %+v", diag)
	}
	if rec.DaysInStage != 10 {
		t.Fatalf("days in stage = %d", rec.DaysInStage)
	}
	if rec.DaysSinceModified == nil || *rec.DaysSinceModified != 2 {
		t.Fatalf("days since modified = %v", rec.DaysSinceModified)
	}
	if rec.StageLabel != "SQL" {
		t.Fatalf("stage label = %q", rec.StageLabel)
	}
	if rec.EntryProperty != "hs_v2_date_entered_qualifiedtobuy" {
		t.Fatalf("entry property = %q", rec.EntryProperty)
	}
	if len(rec.Flags) != 0 {
		t.Fatalf("flags = %v", rec.Flags)
	}
}

func TestAnalyzeAgingTruncatesWholeDays(t *testing.T) {
	e := newTestEngine(t)
	// 47 hours in stage is 1 whole day, not 2.
	d := agingDeal("d-2", testNow.Add(-47*time.Hour), testNow)
	rec, diag := e.AnalyzeAging(d)
	if diag != nil {
		t.Fatalf("unexpected skip: %+v", diag)
	}
	if rec.DaysInStage != 1 {
		t.Fatalf("days in stage = %d", rec.DaysInStage)
	}
}

func TestAnalyzeAgingFlagOrder(t *testing.T) {
	e := newTestEngine(t)
	d := agingDeal("d-3", testNow.AddDate(0, 0, -40), testNow.AddDate(0, 0, -20))
	d.Properties[domain.PropCloseDate] = domain.TimeValue(testNow.AddDate(0, 0, -1))
	rec, diag := e.AnalyzeAging(d)
	if diag != nil {
		t.Fatalf("unexpected skip: %+v", diag)
	}
	want := []string{"Stalled in SQL", engine.FlagNoActivity, engine.FlagPastDue}
	if !reflect.DeepEqual(rec.Flags, want) {
		t.Fatalf("flags = %v, want %v", rec.Flags, want)
	}
}

func TestAnalyzeAgingThresholdIsExclusive(t *testing.T) {
	e := newTestEngine(t)
	// Exactly at the threshold is not stalled; one day past is.
	at := agingDeal("d-4", testNow.AddDate(0, 0, -14), testNow)
	rec, _ := e.AnalyzeAging(at)
	if len(rec.Flags) != 0 {
		t.Fatalf("at-threshold flags = %v", rec.Flags)
	}
	past := agingDeal("d-5", testNow.AddDate(0, 0, -15), testNow)
	rec, _ = e.AnalyzeAging(past)
	if !reflect.DeepEqual(rec.Flags, []string{"Stalled in SQL"}) {
		t.Fatalf("past-threshold flags = %v", rec.Flags)
	}
}

func TestAnalyzeAgingSkipsUnmonitoredStage(t *testing.T) {
	e := newTestEngine(t)
	d := deal("d-6", map[string]any{
		domain.PropStage:    "closedwon",
		domain.PropPipeline: "default",
	})
	_, diag := e.AnalyzeAging(d)
	if diag == nil {
		t.Fatalf("expected skip for unmonitored stage")
	}
}

func TestAnalyzeAgingSkipsWithoutEntryTimestamp(t *testing.T) {
	e := newTestEngine(t)
	d := deal("d-7", map[string]any{
		domain.PropStage:    "qualifiedtobuy",
		domain.PropPipeline: "default",
	})
	_, diag := e.AnalyzeAging(d)
	if diag == nil {
		t.Fatalf("expected skip without entry timestamp")
	}
}

func TestSummarizeAging(t *testing.T) {
	e := newTestEngine(t)
	deals := []domain.Deal{
		agingDeal("d-1", testNow.AddDate(0, 0, -2), testNow),
		agingDeal("d-2", testNow.AddDate(0, 0, -4), testNow),
		agingDeal("d-3", testNow.AddDate(0, 0, -6), testNow),
		agingDeal("d-4", testNow.AddDate(0, 0, -8), testNow.AddDate(0, 0, -20)),
		deal("d-5", map[string]any{domain.PropStage: "closedwon"}),
	}
	sum := e.SummarizeAging(deals)
	if sum.TotalDeals != 4 || sum.SkippedCount != 1 {
		t.Fatalf("total=%d skipped=%d", sum.TotalDeals, sum.SkippedCount)
	}
	if sum.FlaggedCount != 1 || sum.NoActivityCount != 1 || sum.StalledCount != 0 {
		t.Fatalf("flag counts = %+v", sum)
	}
	if len(sum.Stages) != 1 {
		t.Fatalf("stages = %+v", sum.Stages)
	}
	st := sum.Stages[0]
	if st.DealCount != 4 || st.FlaggedCount != 1 {
		t.Fatalf("stage = %+v", st)
	}
	// Days [2,4,6,8]: mean 5.0, even-count median 5.0.
	if st.MeanDays != 5.0 || st.MedianDays != 5.0 {
		t.Fatalf("mean=%v median=%v", st.MeanDays, st.MedianDays)
	}
	if st.LongestDealID != "d-4" || st.LongestDays != 8 {
		t.Fatalf("longest = %+v", st)
	}
}

func TestSummarizeAgingMedianSmallStages(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name   string
		days   []int
		median float64
	}{
		{"single deal", []int{6}, 6},
		{"two deals", []int{2, 9}, 5.5},
		{"three deals", []int{9, 2, 5}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var deals []domain.Deal
			for i, days := range tc.days {
				deals = append(deals, agingDeal(fmt.Sprintf("d-%d", i), testNow.AddDate(0, 0, -days), testNow))
			}
			sum := e.SummarizeAging(deals)
			if got := sum.Stages[0].MedianDays; got != tc.median {
				t.Fatalf("median = %v, want %v", got, tc.median)
			}
		})
	}
}

func TestSummarizeAgingLongestTieKeepsFirst(t *testing.T) {
	e := newTestEngine(t)
	deals := []domain.Deal{
		agingDeal("first", testNow.AddDate(0, 0, -9), testNow),
		agingDeal("second", testNow.AddDate(0, 0, -9), testNow),
	}
	sum := e.SummarizeAging(deals)
	if sum.Stages[0].LongestDealID != "first" {
		t.Fatalf("tie should keep first-encountered deal, got %s", sum.Stages[0].LongestDealID)
	}
}
