package currency

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
)

const (
	HomeCurrency      = enums.CurrencyZAR
	SandboxCurrency   = enums.CurrencyUSD
	homePerUSDDivisor = 18
)

var (
	fixedRate  = decimal.NewFromInt(homePerUSDDivisor)
	minCharge  = decimal.RequireFromString("0.01")
	tolerance  = decimal.RequireFromString("0.01")
	priceTable = map[string]decimal.Decimal{
		"0":    decimal.RequireFromString("0.00"),
		"99":   decimal.RequireFromString("5.50"),
		"149":  decimal.RequireFromString("8.28"),
		"999":  decimal.RequireFromString("55.50"),
		"2499": decimal.RequireFromString("138.83"),
	}
)

// Amount is a processor-acceptable amount and currency pair.
type Amount struct {
	Value     decimal.Decimal
	Currency  enums.Currency
	Original  decimal.Decimal
	Converted bool
}

// String renders the value with two decimals.
func (a Amount) String() string {
	return a.Value.StringFixed(2)
}

// Normalize maps a home-currency amount to what the processor accepts in env.
// Sandbox cannot bill the home currency, so home or unspecified requests are
// converted to the sandbox currency; published price points use fixed values.
func Normalize(amount float64, requested string, env enums.Environment) (Amount, error) {
	if err := ValidateAmount(amount); err != nil {
		return Amount{}, err
	}

	cur := HomeCurrency
	if requested != "" {
		parsed, err := enums.ParseCurrency(requested)
		if err != nil {
			return Amount{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency").
				WithDetails(map[string]any{"field": "currency", "value": requested})
		}
		cur = parsed
	}

	original := decimal.NewFromFloat(amount)
	if !env.IsLive() && cur == HomeCurrency {
		return Amount{
			Value:     clamp(Convert(original), original),
			Currency:  SandboxCurrency,
			Original:  original,
			Converted: true,
		}, nil
	}

	return Amount{
		Value:    clamp(original.Round(2), original),
		Currency: cur,
		Original: original,
	}, nil
}

// ValidateAmount rejects non-finite and negative amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a finite number").
			WithDetails(map[string]any{"field": "amount"})
	}
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative").
			WithDetails(map[string]any{"field": "amount", "value": amount})
	}
	return nil
}

// Convert maps a home-currency amount to the sandbox currency. Canonical price
// points come from a fixed table so repeated conversions never drift.
func Convert(home decimal.Decimal) decimal.Decimal {
	if home.Equal(home.Truncate(0)) {
		if v, ok := priceTable[home.Truncate(0).String()]; ok {
			return v
		}
	}
	return home.DivRound(fixedRate, 2)
}

// clamp keeps any positive input billable; only a zero input stays zero.
func clamp(v, original decimal.Decimal) decimal.Decimal {
	if original.IsZero() {
		return decimal.Zero
	}
	if v.LessThan(minCharge) {
		return minCharge
	}
	return v
}

// SameAmount reports whether two processor amounts are within one cent.
func SameAmount(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tolerance)
}
