package enums

import (
	"fmt"
	"strings"
)

// BillingType selects how a payment initiation is billed.
type BillingType string

const (
	BillingTypeTrial        BillingType = "trial"
	BillingTypeSubscription BillingType = "subscription"
	BillingTypeOnceOff      BillingType = "once_off"
)

var validBillingTypes = []BillingType{
	BillingTypeTrial,
	BillingTypeSubscription,
	BillingTypeOnceOff,
}

// String implements fmt.Stringer.
func (b BillingType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingType.
func (b BillingType) IsValid() bool {
	for _, candidate := range validBillingTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingType converts raw input into a BillingType. Empty input means subscription.
func ParseBillingType(value string) (BillingType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return BillingTypeSubscription, nil
	}
	for _, candidate := range validBillingTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing type %q", value)
}
