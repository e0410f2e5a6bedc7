package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(6500), decimal.NewFromInt(5))
	if !got.Equal(decimal.NewFromInt(325)) {
		t.Fatalf("Percent(6500, 5) = %s, want 325", got)
	}
}

func TestRoundMoney_HalfUp(t *testing.T) {
	got := RoundMoney(decimal.RequireFromString("10.005"))
	if !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("RoundMoney(10.005) = %s, want 10.01", got)
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		period time.Time
		days   int
	}{
		{date(2025, time.June, 15), 30},
		{date(2025, time.July, 1), 31},
		{date(2025, time.February, 28), 28},
		{date(2024, time.February, 1), 29},
	}
	for _, c := range cases {
		if got := DaysInMonth(c.period); got != c.days {
			t.Errorf("DaysInMonth(%s) = %d, want %d", c.period.Format("2006-01"), got, c.days)
		}
	}
}

func TestClipToMonth(t *testing.T) {
	period := date(2025, time.June, 1)

	// Unbounded both sides: the whole month.
	start, end := ClipToMonth(period, nil, nil)
	if !start.Equal(date(2025, time.June, 1)) || !end.Equal(date(2025, time.June, 30)) {
		t.Fatalf("unbounded clip = [%s, %s]", start, end)
	}

	// Mid-month start, end past the month.
	from := date(2025, time.June, 16)
	to := date(2025, time.July, 10)
	start, end = ClipToMonth(period, &from, &to)
	if !start.Equal(from) || !end.Equal(date(2025, time.June, 30)) {
		t.Fatalf("clip = [%s, %s]", start, end)
	}
	if got := InclusiveDays(start, end); got != 15 {
		t.Fatalf("InclusiveDays = %d, want 15", got)
	}
}

func TestInclusiveDays(t *testing.T) {
	d := date(2025, time.June, 10)
	if got := InclusiveDays(d, d); got != 1 {
		t.Fatalf("same-day InclusiveDays = %d, want 1", got)
	}
	if got := InclusiveDays(d, date(2025, time.June, 9)); got != 0 {
		t.Fatalf("reversed InclusiveDays = %d, want 0", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 {
		t.Fatalf("UniqueSlice = %v", got)
	}
}
