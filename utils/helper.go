package utils

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func ProcessValidationErrors(err error) map[string]string {
	errorsMap := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errorsMap["error"] = err.Error()
		return errorsMap
	}
	for _, fieldError := range validationErrors {
		errorsMap[fieldError.Field()] = fieldError.Tag()
	}
	return errorsMap
}

/* Money */

// RoundMoney rounds a monetary amount to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * rate / 100.
func Percent(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(decimal.NewFromInt(100))
}

/* Calendar-month arithmetic */

// MonthRange returns the first instant of period's month and the first instant
// of the next month, in period's location.
func MonthRange(period time.Time) (time.Time, time.Time) {
	year, month, _ := period.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, period.Location())
	return start, start.AddDate(0, 1, 0)
}

// DaysInMonth returns the number of calendar days in period's month.
func DaysInMonth(period time.Time) int {
	start, end := MonthRange(period)
	return int(end.Sub(start).Hours() / 24)
}

// ClipToMonth clips [from, to] to period's month (inclusive day bounds).
// Nil from/to mean unbounded on that side.
func ClipToMonth(period time.Time, from *time.Time, to *time.Time) (time.Time, time.Time) {
	start, end := MonthRange(period)
	lastDay := end.AddDate(0, 0, -1)
	clippedStart := start
	clippedEnd := lastDay
	if from != nil && from.After(start) {
		clippedStart = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, period.Location())
	}
	if to != nil && to.Before(lastDay) {
		clippedEnd = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, period.Location())
	}
	return clippedStart, clippedEnd
}

// InclusiveDays returns the inclusive day count between two dates
// (1 when from == to, 0 when to precedes from).
func InclusiveDays(from time.Time, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}
