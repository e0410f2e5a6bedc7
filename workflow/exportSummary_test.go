package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"github.com/shopspring/decimal"
)

func TestDisplayAmountConvertsThroughProvider(t *testing.T) {
	provider := &models.StaticRateProvider{Rates: map[string]decimal.Decimal{
		"USD:EUR": decimal.RequireFromString("0.9"),
	}}

	got := displayAmount(context.Background(), provider, decimal.RequireFromString("6500"), "USD", "EUR")
	if got != "5850" {
		t.Fatalf("displayAmount = %s, want 5850", got)
	}
}

func TestDisplayAmountSameOrEmptyCurrencyIsVerbatim(t *testing.T) {
	provider := &models.StaticRateProvider{Rates: map[string]decimal.Decimal{}}
	amount := decimal.RequireFromString("123.4567")

	if got := displayAmount(context.Background(), provider, amount, "USD", ""); got != "123.4567" {
		t.Fatalf("empty display currency changed the cell: %s", got)
	}
	if got := displayAmount(context.Background(), provider, amount, "USD", "USD"); got != "123.4567" {
		t.Fatalf("same display currency changed the cell: %s", got)
	}
}
