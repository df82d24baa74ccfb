package subscriptions

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

const (
	userActionSubscribeNow = "SUBSCRIBE_NOW"
	landingPageLogin       = "LOGIN"
)

type subscriptionAPI interface {
	CreateSubscription(ctx context.Context, req paypal.SubscriptionRequest) (*paypal.Subscription, error)
}

// Input describes the subscription to open against a provisioned plan.
type Input struct {
	PlanID    string
	CustomID  string
	Customer  Customer
	ReturnURL string
	CancelURL string
}

// Result is the created subscription plus the URL the payer must visit.
type Result struct {
	SubscriptionID string
	Status         string
	ApprovalURL    string
}

// Creator opens processor subscriptions for verified plans.
type Creator interface {
	Create(ctx context.Context, in Input) (*Result, error)
}

type CreatorParams struct {
	Client           subscriptionAPI
	Logger           *logger.Logger
	Metrics          *metrics.BillingMetrics
	BrandName        string
	DefaultReturnURL string
	DefaultCancelURL string
}

type creator struct {
	client    subscriptionAPI
	logg      *logger.Logger
	metrics   *metrics.BillingMetrics
	brand     string
	returnURL string
	cancelURL string
}

func NewCreator(params CreatorParams) (Creator, error) {
	if params.Client == nil {
		return nil, errors.New("paypal client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(params.BrandName) == "" {
		return nil, errors.New("brand name required")
	}
	return &creator{
		client:    params.Client,
		logg:      params.Logger,
		metrics:   params.Metrics,
		brand:     strings.TrimSpace(params.BrandName),
		returnURL: strings.TrimSpace(params.DefaultReturnURL),
		cancelURL: strings.TrimSpace(params.DefaultCancelURL),
	}, nil
}

func (c *creator) Create(ctx context.Context, in Input) (*Result, error) {
	planID := strings.TrimSpace(in.PlanID)
	if planID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}

	req := paypal.SubscriptionRequest{
		PlanID:     planID,
		CustomID:   strings.TrimSpace(in.CustomID),
		Subscriber: BuildSubscriber(in.Customer),
		ApplicationContext: paypal.ApplicationContext{
			BrandName:   c.brand,
			UserAction:  userActionSubscribeNow,
			LandingPage: landingPageLogin,
			ReturnURL:   firstNonEmpty(in.ReturnURL, c.returnURL),
			CancelURL:   firstNonEmpty(in.CancelURL, c.cancelURL),
		},
	}
	ctx = c.logg.WithField(ctx, "plan_id", planID)
	if req.Subscriber == nil && strings.TrimSpace(in.Customer.Email) != "" {
		c.logg.Warn(ctx, "customer email rejected; payer details left to approval page")
	}

	sub, err := c.client.CreateSubscription(ctx, req)
	if err != nil {
		c.metrics.IncSubscription(metrics.OutcomeFailed)
		return nil, subscriptionError(err)
	}
	if sub == nil || sub.ID == "" {
		c.metrics.IncSubscription(metrics.OutcomeFailed)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal returned a subscription without id")
	}
	c.metrics.IncSubscription(metrics.OutcomeCreated)

	approval := paypal.FindLink(sub.Links, paypal.RelApprove)
	ctx = c.logg.WithFields(ctx, map[string]any{"subscription_id": sub.ID, "subscription_status": sub.Status})
	if approval == "" {
		c.logg.Warn(ctx, "paypal subscription has no approve link")
	} else {
		c.logg.Info(ctx, "paypal subscription created")
	}
	return &Result{SubscriptionID: sub.ID, Status: sub.Status, ApprovalURL: approval}, nil
}

func subscriptionError(err error) error {
	procErr := paypal.AsProcessorError(err)
	if procErr == nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal subscription creation failed")
	}
	details := map[string]any{"status": procErr.StatusCode}
	if procErr.DebugID != "" {
		details["debugId"] = procErr.DebugID
	}
	if field, location := procErr.FieldHint(); field != "" {
		details["field"] = field
		details["location"] = location
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, procErr.UserMessage()).WithDetails(details)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
