package engine_test

import (
	"reflect"
	"testing"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

func TestScoreDealComplete(t *testing.T) {
	e := newTestEngine(t)
	r := e.ScoreDeal(completeDeal("d-1"))
	if r.Score != 100 || r.Tier != domain.TierExcellent {
		t.Fatalf("score=%d tier=%s", r.Score, r.Tier)
	}
	if len(r.Missing) != 0 || r.Flagged {
		t.Fatalf("complete deal reported missing=%v flagged=%v", r.Missing, r.Flagged)
	}
	if r.Owner != "Ana Pereira" {
		t.Fatalf("owner enrichment = %q", r.Owner)
	}
}

func TestScoreDealMissingPredicate(t *testing.T) {
	e := newTestEngine(t)
	d := completeDeal("d-2")
	d.Properties[domain.PropAmount] = domain.NullValue()      // null
	d.Properties["hs_next_step"] = domain.StringValue("   ") // whitespace-only
	delete(d.Properties, domain.PropCloseDate)               // absent
	r := e.ScoreDeal(d)
	// 6 required, 3 missing -> round(100*3/6) = 50.
	if r.Score != 50 || r.Tier != domain.TierPoor {
		t.Fatalf("score=%d tier=%s", r.Score, r.Tier)
	}
	want := []string{"Amount", "Close Date", "Next Step"}
	if !reflect.DeepEqual(r.Missing, want) {
		t.Fatalf("missing = %v, want %v", r.Missing, want)
	}
}

func TestScoreDealEmptyListIsMissing(t *testing.T) {
	e := newTestEngine(t)
	d := completeDeal("d-3")
	d.Properties["hs_next_step"] = domain.ListValue()
	r := e.ScoreDeal(d)
	// 1 of 6 missing -> round(100*5/6) = 83.
	if r.Score != 83 || r.Tier != domain.TierGood {
		t.Fatalf("score=%d tier=%s", r.Score, r.Tier)
	}
}

func TestScoreDealZeroAmountPolicy(t *testing.T) {
	e := newTestEngine(t)
	d := completeDeal("d-4")
	d.Properties[domain.PropAmount] = domain.NumberValue(0)

	r := e.ScoreDeal(d)
	if r.Score != 100 {
		t.Fatalf("zero amount should be present by default, score=%d", r.Score)
	}

	e.Config.Hygiene.ZeroAmountMissing = true
	r = e.ScoreDeal(d)
	if r.Score != 83 {
		t.Fatalf("zero amount should be missing under policy, score=%d", r.Score)
	}
}

func TestScoreDealIdempotent(t *testing.T) {
	e := newTestEngine(t)
	d := completeDeal("d-5")
	delete(d.Properties, domain.PropOwner)
	first := e.ScoreDeal(d)
	second := e.ScoreDeal(d)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring is not idempotent: %+v vs %+v", first, second)
	}
}

func TestFlagPolicies(t *testing.T) {
	e := newTestEngine(t)
	d := completeDeal("d-6")
	delete(d.Properties, "hs_next_step")

	if r := e.ScoreDeal(d); !r.Flagged {
		t.Fatalf("any-issue policy should flag one missing property")
	}

	e.Config.Hygiene.FlagPolicy = config.FlagPolicyCritical
	if r := e.ScoreDeal(d); r.Flagged {
		t.Fatalf("critical policy should not flag one missing property")
	}
	delete(d.Properties, domain.PropAmount)
	delete(d.Properties, domain.PropCloseDate)
	if r := e.ScoreDeal(d); !r.Flagged {
		t.Fatalf("critical policy should flag three missing properties")
	}
}

func TestSummarizeHygiene(t *testing.T) {
	e := newTestEngine(t)
	good := completeDeal("d-7")
	pastDue := completeDeal("d-8")
	pastDue.Properties[domain.PropCloseDate] = domain.TimeValue(testNow.AddDate(0, 0, -3))
	incomplete := completeDeal("d-9")
	delete(incomplete.Properties, domain.PropAmount)
	delete(incomplete.Properties, "hs_next_step")

	sum := e.SummarizeHygiene([]domain.Deal{good, pastDue, incomplete})
	if sum.TotalDeals != 3 {
		t.Fatalf("total = %d", sum.TotalDeals)
	}
	if sum.FlaggedCount != 1 {
		t.Fatalf("flagged = %d", sum.FlaggedCount)
	}
	if sum.TierCounts[domain.TierExcellent] != 2 || sum.TierCounts[domain.TierPoor] != 1 {
		t.Fatalf("tier counts = %v", sum.TierCounts)
	}
	if !reflect.DeepEqual(sum.PastDue, []string{"d-8"}) {
		t.Fatalf("past due = %v", sum.PastDue)
	}
	// Miss counts stay in configured display order.
	if sum.MissCounts[0].Label != "Deal Name" || sum.MissCounts[1].Label != "Amount" {
		t.Fatalf("miss count order = %+v", sum.MissCounts)
	}
	if sum.MissCounts[1].Count != 1 {
		t.Fatalf("amount miss count = %d", sum.MissCounts[1].Count)
	}
	if got := sum.MissCounts[1].Rate; got != 33.33 {
		t.Fatalf("amount miss rate = %v", got)
	}
	// Scores 100, 100, 67.
	if sum.AverageScore != 89 {
		t.Fatalf("average score = %v", sum.AverageScore)
	}
}

func TestSummarizeHygieneEmptyPopulation(t *testing.T) {
	e := newTestEngine(t)
	sum := e.SummarizeHygiene(nil)
	if sum.TotalDeals != 0 || sum.FlaggedCount != 0 || sum.AverageScore != 0 {
		t.Fatalf("empty summary = %+v", sum)
	}
	for _, mc := range sum.MissCounts {
		if mc.Rate != 0 {
			t.Fatalf("empty population rate = %v", mc.Rate)
		}
	}
}
