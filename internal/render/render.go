// Package render draws reports as console tables.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dealscope/internal/domain"
)

func newWriter(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	return tw
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Hygiene renders the per-deal completeness table and its summary footer.
func Hygiene(out io.Writer, sum domain.HygieneSummary) {
	tw := newWriter(out)
	tw.AppendHeader(table.Row{"Deal", "Owner", "Score", "Tier", "Missing"})
	for _, d := range sum.Deals {
		mark := ""
		if d.Flagged {
			mark = " !"
		}
		tw.AppendRow(table.Row{
			d.DealName,
			d.Owner,
			fmt.Sprintf("%d%s", d.Score, mark),
			d.Tier,
			strings.Join(d.Missing, ", "),
		})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%.2f", sum.AverageScore), "", fmt.Sprintf("%d flagged of %d", sum.FlaggedCount, sum.TotalDeals)})
	tw.Render()

	if len(sum.MissCounts) > 0 {
		mt := newWriter(out)
		mt.AppendHeader(table.Row{"Property", "Missing", "Rate"})
		for _, mc := range sum.MissCounts {
			mt.AppendRow(table.Row{mc.Label, mc.Count, fmt.Sprintf("%.2f%%", mc.Rate)})
		}
		mt.Render()
	}
	if len(sum.PastDue) > 0 {
		fmt.Fprintf(out, "Past-due close dates: %s\n", strings.Join(sum.PastDue, ", "))
	}
}

// Aging renders per-deal residency, per-stage stats, and the skip list.
func Aging(out io.Writer, sum domain.StageAgingSummary) {
	tw := newWriter(out)
	tw.AppendHeader(table.Row{"Deal", "Stage", "Days", "Idle", "Flags"})
	for _, rec := range sum.Records {
		idle := ""
		if rec.DaysSinceModified != nil {
			idle = fmt.Sprintf("%d", *rec.DaysSinceModified)
		}
		tw.AppendRow(table.Row{
			rec.DealName,
			rec.StageLabel,
			rec.DaysInStage,
			idle,
			strings.Join(rec.Flags, "; "),
		})
	}
	tw.Render()

	st := newWriter(out)
	st.AppendHeader(table.Row{"Stage", "Deals", "Flagged", "Mean", "Median", "Longest"})
	for _, s := range sum.Stages {
		longest := ""
		if s.LongestDealID != "" {
			longest = fmt.Sprintf("%s (%dd)", s.LongestDealName, s.LongestDays)
		}
		st.AppendRow(table.Row{s.StageLabel, s.DealCount, s.FlaggedCount,
			fmt.Sprintf("%.1f", s.MeanDays), fmt.Sprintf("%.1f", s.MedianDays), longest})
	}
	st.Render()

	if sum.SkippedCount > 0 {
		fmt.Fprintf(out, "Skipped %d deal(s):\n", sum.SkippedCount)
		for _, d := range sum.Skipped {
			fmt.Fprintf(out, "  - %s: %s\n", d.DealID, d.Reason)
		}
	}
}

// QuarterlyForecast renders the monthly and per-owner breakdowns.
func QuarterlyForecast(out io.Writer, sum domain.ForecastSummary) {
	fmt.Fprintf(out, "Q%d %d forecast\n", sum.Quarter.Number, sum.Quarter.Year)

	mt := newWriter(out)
	mt.AppendHeader(table.Row{"Month", "Deals", "Amount"})
	for _, m := range sum.Months {
		mt.AppendRow(table.Row{m.Label, m.DealCount, money(m.Amount)})
	}
	mt.AppendFooter(table.Row{"Total", sum.TotalDeals, money(sum.TotalARR)})
	mt.Render()

	ot := newWriter(out)
	ot.AppendHeader(table.Row{"Owner", "Deals", "Amount"})
	ot.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	for _, o := range sum.Owners {
		ot.AppendRow(table.Row{o.OwnerName, o.DealCount, money(o.Amount)})
	}
	ot.Render()

	fmt.Fprintf(out, "Average deal: %s\n", money(sum.AverageARR))
	if sum.SkippedCount > 0 {
		fmt.Fprintf(out, "Skipped %d deal(s):\n", sum.SkippedCount)
		for _, d := range sum.Skipped {
			fmt.Fprintf(out, "  - %s: %s\n", d.DealID, d.Reason)
		}
	}
}

// WeeklyForecast renders the weighted stage breakdown and closed tallies.
func WeeklyForecast(out io.Writer, rep domain.WeeklyForecastReport) {
	fmt.Fprintf(out, "Week of %s\n", rep.Week.Start.Format("2006-01-02"))

	tw := newWriter(out)
	tw.AppendHeader(table.Row{"Stage", "Deals", "Pipeline", "Weight", "Weighted", "%"})
	for _, b := range rep.Stages {
		tw.AppendRow(table.Row{b.Label, b.DealCount, money(b.PipelineAmount),
			fmt.Sprintf("%.2f", b.Weight), money(b.WeightedAmount), fmt.Sprintf("%.2f", b.PercentOfTotal)})
	}
	tw.AppendFooter(table.Row{"Total", "", money(rep.TotalPipeline), "", money(rep.TotalWeighted), ""})
	tw.Render()

	fmt.Fprintf(out, "Closed won: %d (%s)  Closed lost: %d (%s)\n",
		rep.ClosedWonCount, money(rep.ClosedWonAmount),
		rep.ClosedLostCount, money(rep.ClosedLostAmount))
}
