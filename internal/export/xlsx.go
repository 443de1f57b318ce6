// Package export writes reports as XLSX workbooks.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"dealscope/internal/domain"
)

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func newWorkbook(sheet string) *excelize.File {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheet)
	return f
}

// Hygiene writes the completeness report workbook.
func Hygiene(path string, sum domain.HygieneSummary) error {
	f := newWorkbook("Deals")
	defer f.Close()

	rows := [][]any{{"Deal ID", "Deal", "Owner", "Score", "Tier", "Flagged", "Missing"}}
	for _, d := range sum.Deals {
		rows = append(rows, []any{d.DealID, d.DealName, d.Owner, d.Score, d.Tier, d.Flagged, strings.Join(d.Missing, ", ")})
	}
	if err := writeRows(f, "Deals", rows); err != nil {
		return err
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return err
	}
	summary := [][]any{
		{"Generated", sum.GeneratedAt.Format("2006-01-02 15:04")},
		{"Total deals", sum.TotalDeals},
		{"Average score", sum.AverageScore},
		{"Flagged", sum.FlaggedCount},
		{"Flag policy", sum.FlagPolicy},
		{},
		{"Property", "Missing", "Rate %"},
	}
	for _, mc := range sum.MissCounts {
		summary = append(summary, []any{mc.Label, mc.Count, mc.Rate})
	}
	if err := writeRows(f, "Summary", summary); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// Aging writes the stage-aging report workbook.
func Aging(path string, sum domain.StageAgingSummary) error {
	f := newWorkbook("Deals")
	defer f.Close()

	rows := [][]any{{"Deal ID", "Deal", "Stage", "Days In Stage", "Days Idle", "Flags"}}
	for _, rec := range sum.Records {
		idle := any("")
		if rec.DaysSinceModified != nil {
			idle = *rec.DaysSinceModified
		}
		rows = append(rows, []any{rec.DealID, rec.DealName, rec.StageLabel, rec.DaysInStage, idle, strings.Join(rec.Flags, "; ")})
	}
	if err := writeRows(f, "Deals", rows); err != nil {
		return err
	}

	if _, err := f.NewSheet("Stages"); err != nil {
		return err
	}
	stages := [][]any{{"Stage", "Deals", "Flagged", "Mean Days", "Median Days", "Longest Deal", "Longest Days"}}
	for _, s := range sum.Stages {
		stages = append(stages, []any{s.StageLabel, s.DealCount, s.FlaggedCount, s.MeanDays, s.MedianDays, s.LongestDealName, s.LongestDays})
	}
	if err := writeRows(f, "Stages", stages); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// QuarterlyForecast writes the quarterly forecast workbook.
func QuarterlyForecast(path string, sum domain.ForecastSummary) error {
	sheet := fmt.Sprintf("Q%d %d", sum.Quarter.Number, sum.Quarter.Year)
	f := newWorkbook(sheet)
	defer f.Close()

	rows := [][]any{{"Month", "Deals", "Amount"}}
	for _, m := range sum.Months {
		rows = append(rows, []any{m.Label, m.DealCount, m.Amount})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total ARR", sum.TotalDeals, sum.TotalARR},
		[]any{"Average ARR", "", sum.AverageARR},
		[]any{"Skipped", sum.SkippedCount, ""},
	)
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet("Owners"); err != nil {
		return err
	}
	owners := [][]any{{"Owner", "Deals", "Amount"}}
	for _, o := range sum.Owners {
		owners = append(owners, []any{o.OwnerName, o.DealCount, o.Amount})
	}
	if err := writeRows(f, "Owners", owners); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// WeeklyForecast writes the weekly pipeline workbook.
func WeeklyForecast(path string, rep domain.WeeklyForecastReport) error {
	f := newWorkbook("Pipeline")
	defer f.Close()

	rows := [][]any{{"Stage", "Deals", "Pipeline", "Weight", "Weighted", "% Of Total"}}
	for _, b := range rep.Stages {
		rows = append(rows, []any{b.Label, b.DealCount, b.PipelineAmount, b.Weight, b.WeightedAmount, b.PercentOfTotal})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total", "", rep.TotalPipeline, "", rep.TotalWeighted, ""},
		[]any{"Closed won", rep.ClosedWonCount, rep.ClosedWonAmount, "", "", ""},
		[]any{"Closed lost", rep.ClosedLostCount, rep.ClosedLostAmount, "", "", ""},
	)
	if err := writeRows(f, "Pipeline", rows); err != nil {
		return err
	}
	return f.SaveAs(path)
}
