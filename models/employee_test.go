package models

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestEmployedWithinPeriod(t *testing.T) {
	june := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		employee Employee
		period   time.Time
		want     bool
	}{
		{"open ended", Employee{}, june, true},
		{"hired mid month", Employee{StartDate: day(2025, time.June, 16)}, june, true},
		{"hired after period", Employee{StartDate: day(2025, time.July, 1)}, june, false},
		{"terminated mid month", Employee{StartDate: day(2024, time.January, 1), EndDate: day(2025, time.June, 15)}, june, true},
		{"terminated before period", Employee{StartDate: day(2024, time.January, 1), EndDate: day(2025, time.May, 31)}, june, false},
		{"terminated last month not payable next", Employee{StartDate: day(2024, time.January, 1), EndDate: day(2025, time.June, 15)}, july, false},
		{"ends on first of period", Employee{EndDate: day(2025, time.June, 1)}, june, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.employee.EmployedWithinPeriod(tc.period); got != tc.want {
				t.Fatalf("EmployedWithinPeriod(%s) = %v, want %v", tc.period.Format("2006-01"), got, tc.want)
			}
		})
	}
}
