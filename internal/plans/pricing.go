package plans

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
)

const defaultTierWord = "standard"

// Tier is a parsed plan token such as "sme-pro-monthly".
type Tier struct {
	Token   string
	Role    enums.Role
	Words   []string
	Cadence enums.Cadence
}

// Label renders the tier words and cadence in title case, e.g. "Pro Monthly".
func (t Tier) Label() string {
	words := append(append([]string{}, t.Words...), t.Cadence.String())
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// ParseTier splits a role-tier-cadence token. The cadence must be the last
// token; without one the whole token is treated as the tier and billed
// monthly. A leading role token is stripped.
func ParseTier(token string) Tier {
	token = strings.ToLower(strings.TrimSpace(token))
	parts := strings.FieldsFunc(token, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	tier := Tier{Token: token, Cadence: enums.CadenceMonthly}
	if len(parts) == 0 {
		tier.Words = []string{defaultTierWord}
		return tier
	}

	cadence, err := enums.ParseCadence(parts[len(parts)-1])
	if err != nil {
		tier.Words = parts
		return tier
	}
	tier.Cadence = cadence
	parts = parts[:len(parts)-1]

	if len(parts) > 0 {
		if role, err := enums.ParseRole(parts[0]); err == nil {
			tier.Role = role
			parts = parts[1:]
		}
	}
	if len(parts) == 0 {
		parts = []string{defaultTierWord}
	}
	tier.Words = parts
	return tier
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// listPrices are the published home-currency prices per role and cadence.
var listPrices = map[enums.Role]map[enums.Cadence]decimal.Decimal{
	enums.RoleSDP: {
		enums.CadenceMonthly: decimal.NewFromInt(99),
		enums.CadenceAnnual:  decimal.NewFromInt(999),
	},
	enums.RoleSME: {
		enums.CadenceMonthly: decimal.NewFromInt(149),
		enums.CadenceAnnual:  decimal.NewFromInt(2499),
	},
}

// ListPrice returns the published home-currency price for role and cadence.
func ListPrice(role enums.Role, cadence enums.Cadence) (decimal.Decimal, bool) {
	byCadence, ok := listPrices[role]
	if !ok {
		return decimal.Zero, false
	}
	price, ok := byCadence[cadence]
	return price, ok
}

// postTrialHomeAmount picks the post-trial price: explicit override, then a
// nonzero request amount, then the list price.
func postTrialHomeAmount(override *float64, requested float64, role enums.Role, cadence enums.Cadence) (float64, bool) {
	if override != nil && *override > 0 {
		return *override, true
	}
	if requested > 0 {
		return requested, true
	}
	price, ok := ListPrice(role, cadence)
	if !ok {
		return 0, false
	}
	f, _ := price.Float64()
	return f, true
}
