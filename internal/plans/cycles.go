package plans

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/skillbridge-billing/internal/currency"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

const (
	setupFeeFailureAction   = "CONTINUE"
	paymentFailureThreshold = 3
	infiniteCycles          = 0
)

// BuildCycles lays out the billing phases of a plan. Day-granular trials are
// not supported by the processor, so a trial is one free month.
func BuildCycles(billing enums.BillingType, cadence enums.Cadence, regular currency.Amount) []paypal.BillingCycle {
	regularCycle := paypal.BillingCycle{
		Frequency:   paypal.Frequency{IntervalUnit: cadence.IntervalUnit(), IntervalCount: 1},
		TenureType:  paypal.TenureRegular,
		Sequence:    1,
		TotalCycles: infiniteCycles,
		PricingScheme: paypal.PricingScheme{
			FixedPrice: paypal.NewMoney(regular.Currency.String(), regular.Value),
		},
	}

	switch billing {
	case enums.BillingTypeTrial:
		trial := paypal.BillingCycle{
			Frequency:   paypal.Frequency{IntervalUnit: enums.CadenceMonthly.IntervalUnit(), IntervalCount: 1},
			TenureType:  paypal.TenureTrial,
			Sequence:    1,
			TotalCycles: 1,
			PricingScheme: paypal.PricingScheme{
				FixedPrice: paypal.NewMoney(regular.Currency.String(), decimal.Zero),
			},
		}
		regularCycle.Sequence = 2
		return []paypal.BillingCycle{trial, regularCycle}
	case enums.BillingTypeOnceOff:
		regularCycle.TotalCycles = 1
	}
	return []paypal.BillingCycle{regularCycle}
}

func paymentPreferences() *paypal.PaymentPreferences {
	return &paypal.PaymentPreferences{
		AutoBillOutstanding:     true,
		SetupFeeFailureAction:   setupFeeFailureAction,
		PaymentFailureThreshold: paymentFailureThreshold,
	}
}
