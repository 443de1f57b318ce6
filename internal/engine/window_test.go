package engine_test

import (
	"testing"
	"time"

	"dealscope/internal/engine"
)

func TestCurrentQuarterBoundaries(t *testing.T) {
	q := engine.CurrentQuarter(time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC))
	if q.Year != 2025 || q.Number != 4 {
		t.Fatalf("quarter = %d Q%d", q.Year, q.Number)
	}
	wantStart := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 12, 31, 23, 59, 59, 999000000, time.UTC)
	if !q.Start.Equal(wantStart) {
		t.Fatalf("start = %v", q.Start)
	}
	if !q.End.Equal(wantEnd) {
		t.Fatalf("end = %v", q.End)
	}
}

func TestCurrentQuarterFirstAndLast(t *testing.T) {
	q1 := engine.CurrentQuarter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if q1.Number != 1 || !q1.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("q1 = %+v", q1)
	}
	q4 := engine.CurrentQuarter(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC))
	if q4.Number != 4 {
		t.Fatalf("q4 number = %d", q4.Number)
	}
	if !q4.Contains(time.Date(2025, 12, 31, 23, 59, 59, 999000000, time.UTC)) {
		t.Fatalf("quarter end should be inclusive")
	}
}

func TestCurrentWeekOnSunday(t *testing.T) {
	// 2025-10-19 is a Sunday; the week starts the preceding Monday, six
	// days earlier, not the same day.
	w := engine.CurrentWeek(time.Date(2025, 10, 19, 15, 0, 0, 0, time.UTC))
	if !w.Start.Equal(time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", w.Start)
	}
	if !w.End.Equal(time.Date(2025, 10, 19, 23, 59, 59, 999000000, time.UTC)) {
		t.Fatalf("week end = %v", w.End)
	}
}

func TestCurrentWeekOnMonday(t *testing.T) {
	w := engine.CurrentWeek(time.Date(2025, 10, 13, 0, 30, 0, 0, time.UTC))
	if !w.Start.Equal(time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", w.Start)
	}
}

func TestWindowContains(t *testing.T) {
	w := engine.CurrentWeek(testNow)
	if !w.Contains(w.Start) || !w.Contains(w.End) {
		t.Fatalf("window must be inclusive on both ends")
	}
	if w.Contains(time.Time{}) {
		t.Fatalf("zero time must not be contained")
	}
	if w.Contains(w.End.Add(time.Millisecond)) {
		t.Fatalf("past the end must not be contained")
	}
}
