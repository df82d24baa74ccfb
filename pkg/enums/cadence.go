package enums

import (
	"fmt"
	"strings"
	"time"
)

// Cadence is the recurring billing frequency of a tier.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceAnnual  Cadence = "annual"
)

var validCadences = []Cadence{
	CadenceMonthly,
	CadenceAnnual,
}

// String implements fmt.Stringer.
func (c Cadence) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Cadence.
func (c Cadence) IsValid() bool {
	for _, candidate := range validCadences {
		if candidate == c {
			return true
		}
	}
	return false
}

// IntervalUnit returns the processor frequency unit for the cadence.
func (c Cadence) IntervalUnit() string {
	if c == CadenceAnnual {
		return "YEAR"
	}
	return "MONTH"
}

// Advance moves t forward by one billing period.
func (c Cadence) Advance(t time.Time) time.Time {
	if c == CadenceAnnual {
		return t.AddDate(1, 0, 0)
	}
	return t.Add(30 * 24 * time.Hour)
}

// ParseCadence converts raw input into a Cadence; "yearly" is an alias for annual.
func ParseCadence(value string) (Cadence, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "yearly" {
		return CadenceAnnual, nil
	}
	for _, candidate := range validCadences {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cadence %q", value)
}
