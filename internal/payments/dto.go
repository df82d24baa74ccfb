package payments

import "time"

// PlanRequest is the inbound payment-initiation contract.
type PlanRequest struct {
	Amount      *float64        `json:"amount" validate:"required"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,iso4217"`
	PlanID      string          `json:"planId" validate:"required,max=120"`
	BillingType string          `json:"billingType,omitempty" validate:"omitempty,oneof=trial subscription once_off"`
	Role        string          `json:"role,omitempty" validate:"omitempty,oneof=sme sdp SME SDP"`
	Customer    CustomerPayload `json:"customer"`
	ReturnURL   string          `json:"returnUrl,omitempty" validate:"omitempty,url"`
	CancelURL   string          `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	Metadata    PlanMetadata    `json:"metadata"`
}

type CustomerPayload struct {
	Name  string `json:"name,omitempty" validate:"max=200"`
	Email string `json:"email,omitempty" validate:"max=254"`
}

type PlanMetadata struct {
	PlanDurationDays int      `json:"planDurationDays,omitempty" validate:"gte=0,lte=3660"`
	PlanLabel        string   `json:"planLabel,omitempty" validate:"max=80"`
	CustomID         string   `json:"customId,omitempty" validate:"max=127"`
	PostTrialAmount  *float64 `json:"postTrialAmount,omitempty"`
}

// Initiation is returned to the client that must redirect the payer.
type Initiation struct {
	OrderID       string          `json:"orderId"`
	ApprovalURL   string          `json:"approvalUrl"`
	PaymentStatus string          `json:"paymentStatus"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	BillingType   string          `json:"billingType"`
	Role          string          `json:"role"`
	PlanID        string          `json:"planId"`
	Customer      CustomerPayload `json:"customer"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}
