package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"github.com/shopspring/decimal"
)

const DefaultCurrencyCode = "USD"

type Currency struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Symbol       string    `gorm:"size:10;not null" json:"symbol" binding:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" binding:"required"`
	DecimalPlace int       `gorm:"default:2" json:"decimal_place"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ExchangeRate struct {
	ID           int             `gorm:"primary_key" json:"id"`
	FromCurrency string          `gorm:"size:10;index:idx_rate_pair;not null" json:"from_currency" binding:"required"`
	ToCurrency   string          `gorm:"size:10;index:idx_rate_pair;not null" json:"to_currency" binding:"required"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"rate"`
	ExchangeDate time.Time       `gorm:"index" json:"exchange_date"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ParseEntityLabel splits "<name>|<ISO-code>" into the entity name and its
// currency code. Labels without a delimiter default to USD.
func ParseEntityLabel(label string) (name string, currency string) {
	idx := strings.LastIndex(label, "|")
	if idx < 0 {
		return strings.TrimSpace(label), DefaultCurrencyCode
	}
	name = strings.TrimSpace(label[:idx])
	currency = strings.ToUpper(strings.TrimSpace(label[idx+1:]))
	if currency == "" {
		currency = DefaultCurrencyCode
	}
	return name, currency
}

func FormatEntityLabel(name string, currency string) string {
	if currency == "" {
		currency = DefaultCurrencyCode
	}
	return name + "|" + strings.ToUpper(currency)
}

// ExchangeRateProvider abstracts the rate source so display conversion can be
// backed by the exchange_rates table in production and a fixed table in tests.
type ExchangeRateProvider interface {
	// Rate returns the direct from->to rate, or ok=false when no direct rate
	// is known.
	Rate(ctx context.Context, from string, to string) (decimal.Decimal, bool)
}

// StaticRateProvider serves rates from an in-memory table keyed "FROM:TO".
type StaticRateProvider struct {
	Rates map[string]decimal.Decimal
}

func (p *StaticRateProvider) Rate(ctx context.Context, from string, to string) (decimal.Decimal, bool) {
	rate, ok := p.Rates[strings.ToUpper(from)+":"+strings.ToUpper(to)]
	if !ok || rate.IsZero() {
		return decimal.Zero, false
	}
	return rate, true
}

// DBRateProvider reads the latest stored rate per pair, cached in redis.
type DBRateProvider struct{}

func (p *DBRateProvider) Rate(ctx context.Context, from string, to string) (decimal.Decimal, bool) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	redisKey := "fxRate:" + from + ":" + to
	var cached string
	cachedRate, ok, err := config.GetRedisValue(redisKey)
	if err == nil && ok {
		cached = cachedRate
	}
	if cached != "" {
		rate, err := decimal.NewFromString(cached)
		if err == nil && !rate.IsZero() {
			return rate, true
		}
	}

	db := config.GetDB()
	if db == nil {
		return decimal.Zero, false
	}
	var record ExchangeRate
	err = db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		Order("exchange_date desc, id desc").
		First(&record).Error
	if err != nil || record.Rate.IsZero() {
		return decimal.Zero, false
	}
	_ = config.SetRedisValue(redisKey, record.Rate.String(), 10*time.Minute)
	return record.Rate, true
}

// ConvertAmount converts between currencies: direct rate first, then the
// reciprocal of the reverse rate, then a logged 1.0 no-op. Result is rounded
// to 2 decimal places.
func ConvertAmount(ctx context.Context, provider ExchangeRateProvider, amount decimal.Decimal, from string, to string) decimal.Decimal {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return amount.Round(2)
	}

	if rate, ok := provider.Rate(ctx, from, to); ok {
		return amount.Mul(rate).Round(2)
	}
	if reverse, ok := provider.Rate(ctx, to, from); ok && !reverse.IsZero() {
		return amount.Div(reverse).Round(2)
	}

	logger := config.GetLogger()
	if logger != nil {
		config.LogError(logger, "currency.go", "ConvertAmount", from+"->"+to, amount,
			errors.New("no exchange rate found, returning amount unconverted"))
	}
	return amount.Round(2)
}
