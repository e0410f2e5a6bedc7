package models

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseEntityLabel(t *testing.T) {
	cases := []struct {
		label    string
		name     string
		currency string
	}{
		{"Acme GmbH|EUR", "Acme GmbH", "EUR"},
		{"Acme GmbH|eur", "Acme GmbH", "EUR"},
		{"Acme", "Acme", "USD"},
		{"Acme|", "Acme", "USD"},
		{"Pipes|R|Us|THB", "Pipes|R|Us", "THB"},
		{"  Acme  |  jpy ", "Acme", "JPY"},
	}
	for _, c := range cases {
		name, currency := ParseEntityLabel(c.label)
		if name != c.name || currency != c.currency {
			t.Errorf("ParseEntityLabel(%q) = (%q, %q), want (%q, %q)",
				c.label, name, currency, c.name, c.currency)
		}
	}
}

func TestFormatEntityLabel_RoundTrip(t *testing.T) {
	label := FormatEntityLabel("Acme GmbH", "eur")
	if label != "Acme GmbH|EUR" {
		t.Fatalf("FormatEntityLabel = %q", label)
	}
	name, currency := ParseEntityLabel(label)
	if name != "Acme GmbH" || currency != "EUR" {
		t.Fatalf("round trip = (%q, %q)", name, currency)
	}
}

func staticRates(pairs map[string]string) *StaticRateProvider {
	rates := make(map[string]decimal.Decimal, len(pairs))
	for k, v := range pairs {
		rates[k] = decimal.RequireFromString(v)
	}
	return &StaticRateProvider{Rates: rates}
}

func TestConvertAmount_DirectRate(t *testing.T) {
	provider := staticRates(map[string]string{"USD:EUR": "0.9"})

	got := ConvertAmount(context.Background(), provider, decimal.RequireFromString("100"), "USD", "EUR")
	if !got.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("ConvertAmount = %s, want 90", got)
	}
}

func TestConvertAmount_ReciprocalFallback(t *testing.T) {
	// Only EUR->USD is known; USD->EUR uses the reciprocal.
	provider := staticRates(map[string]string{"EUR:USD": "1.25"})

	got := ConvertAmount(context.Background(), provider, decimal.RequireFromString("100"), "USD", "EUR")
	if !got.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("ConvertAmount = %s, want 80", got)
	}
}

func TestConvertAmount_NoRateIsNoOp(t *testing.T) {
	provider := staticRates(nil)

	got := ConvertAmount(context.Background(), provider, decimal.RequireFromString("123.456"), "USD", "THB")
	if !got.Equal(decimal.RequireFromString("123.46")) {
		t.Fatalf("ConvertAmount = %s, want 123.46 (rounded no-op)", got)
	}
}

func TestConvertAmount_SameCurrency(t *testing.T) {
	provider := staticRates(map[string]string{"USD:USD": "2"})

	got := ConvertAmount(context.Background(), provider, decimal.RequireFromString("50"), "usd", "USD")
	if !got.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("ConvertAmount = %s, want 50", got)
	}
}

func TestRunCurrencyFromEntityLabel(t *testing.T) {
	run := &PayrollRun{EntityLabel: "Acme GmbH|EUR"}
	if run.Currency() != "EUR" {
		t.Fatalf("Currency() = %q, want EUR", run.Currency())
	}
	run.EntityLabel = "Acme"
	if run.Currency() != "USD" {
		t.Fatalf("Currency() = %q, want USD default", run.Currency())
	}
}

func TestDBRateProviderWithoutBackingStores(t *testing.T) {
	provider := &DBRateProvider{}
	if _, ok := provider.Rate(context.Background(), "USD", "EUR"); ok {
		t.Fatal("expected no rate when neither redis nor the database is configured")
	}
}
