package plans

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/skillbridge-billing/internal/currency"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
)

const (
	maxNameLength    = 127
	ellipsis         = "..."
	uniqueSuffixTime = "20060102150405.000"
	uniqueSuffixSep  = " #"
)

// PlanName encodes role, tier, currency, and amount so that differently
// priced plans never share a name. Trials encode their post-trial price.
func PlanName(brand string, role enums.Role, label string, billing enums.BillingType, regular currency.Amount) string {
	marker := ""
	switch billing {
	case enums.BillingTypeTrial:
		marker = " Trial"
	case enums.BillingTypeOnceOff:
		marker = " Once-off"
	}
	name := fmt.Sprintf("%s %s %s%s - %s %s (%s %s)",
		brand,
		role.Label(),
		label,
		marker,
		regular.Currency,
		regular.Value.StringFixed(2),
		currency.HomeCurrency,
		regular.Original.StringFixed(2),
	)
	return truncate(name, maxNameLength)
}

// UniqueName appends a timestamp so the processor sees a distinct name. The
// base is trimmed so the suffix always survives truncation.
func UniqueName(base string, now time.Time) string {
	return uniquePrefix(base) + now.UTC().Format(uniqueSuffixTime)
}

// uniquePrefix is the part UniqueName keeps constant for a base name.
func uniquePrefix(base string) string {
	return truncate(base, maxNameLength-len(uniqueSuffixSep)-len(uniqueSuffixTime)) + uniqueSuffixSep
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := strings.TrimRight(s[:limit-len(ellipsis)], " ")
	return cut + ellipsis
}
