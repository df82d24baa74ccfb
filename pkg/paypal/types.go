package paypal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tenure types and plan states as reported by the billing API.
const (
	TenureTrial   = "TRIAL"
	TenureRegular = "REGULAR"

	PlanStatusActive   = "ACTIVE"
	PlanStatusInactive = "INACTIVE"
	PlanStatusCreated  = "CREATED"

	RelApprove = "approve"
)

// Money is the wire form of an amount: a decimal string plus ISO currency.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// NewMoney formats amount with exactly two decimals.
func NewMoney(currency string, amount decimal.Decimal) Money {
	return Money{CurrencyCode: currency, Value: amount.StringFixed(2)}
}

// Decimal parses Value, returning zero for malformed input.
func (m Money) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(m.Value))
	if err != nil {
		return decimal.Zero
	}
	return d
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// FindLink returns the href of the first link with the given relation.
func FindLink(links []Link, rel string) string {
	for _, l := range links {
		if strings.EqualFold(l.Rel, rel) {
			return l.Href
		}
	}
	return ""
}

type Product struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
}

type ProductList struct {
	Products   []Product `json:"products"`
	TotalItems int       `json:"total_items"`
	TotalPages int       `json:"total_pages"`
}

type Frequency struct {
	IntervalUnit  string `json:"interval_unit"`
	IntervalCount int    `json:"interval_count"`
}

type PricingScheme struct {
	FixedPrice Money `json:"fixed_price"`
}

type BillingCycle struct {
	Frequency     Frequency     `json:"frequency"`
	TenureType    string        `json:"tenure_type"`
	Sequence      int           `json:"sequence"`
	TotalCycles   int           `json:"total_cycles"`
	PricingScheme PricingScheme `json:"pricing_scheme"`
}

type PaymentPreferences struct {
	AutoBillOutstanding     bool   `json:"auto_bill_outstanding"`
	SetupFeeFailureAction   string `json:"setup_fee_failure_action,omitempty"`
	PaymentFailureThreshold int    `json:"payment_failure_threshold"`
}

type Plan struct {
	ID                 string              `json:"id,omitempty"`
	ProductID          string              `json:"product_id"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	Status             string              `json:"status,omitempty"`
	BillingCycles      []BillingCycle      `json:"billing_cycles,omitempty"`
	PaymentPreferences *PaymentPreferences `json:"payment_preferences,omitempty"`
}

// RegularCycle returns the first REGULAR billing cycle, if any.
func (p Plan) RegularCycle() (BillingCycle, bool) {
	for _, c := range p.BillingCycles {
		if c.TenureType == TenureRegular {
			return c, true
		}
	}
	return BillingCycle{}, false
}

type PlanList struct {
	Plans      []Plan `json:"plans"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}

type Name struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
}

type Subscriber struct {
	EmailAddress string `json:"email_address"`
	Name         *Name  `json:"name,omitempty"`
}

type ApplicationContext struct {
	BrandName   string `json:"brand_name"`
	UserAction  string `json:"user_action"`
	LandingPage string `json:"landing_page"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
}

type SubscriptionRequest struct {
	PlanID             string             `json:"plan_id"`
	CustomID           string             `json:"custom_id,omitempty"`
	Subscriber         *Subscriber        `json:"subscriber,omitempty"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

type BillingInfo struct {
	NextBillingTime string `json:"next_billing_time,omitempty"`
}

type Subscription struct {
	ID          string       `json:"id"`
	PlanID      string       `json:"plan_id"`
	Status      string       `json:"status"`
	CustomID    string       `json:"custom_id,omitempty"`
	Subscriber  *Subscriber  `json:"subscriber,omitempty"`
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
	Links       []Link       `json:"links,omitempty"`
}

// NextBillingTime returns the processor's next billing timestamp when present.
func (s Subscription) NextBillingTime() string {
	if s.BillingInfo == nil {
		return ""
	}
	return strings.TrimSpace(s.BillingInfo.NextBillingTime)
}
