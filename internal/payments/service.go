package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/internal/plans"
	"github.com/angelmondragon/skillbridge-billing/internal/profiles"
	"github.com/angelmondragon/skillbridge-billing/internal/subscriptions"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

const (
	providerPayPal       = "paypal"
	paymentStatusPending = "pending"
)

// Service starts processor subscriptions for marketplace users.
type Service interface {
	Initiate(ctx context.Context, userID uuid.UUID, req PlanRequest) (*Initiation, error)
}

type ServiceParams struct {
	Credentials   paypal.CredentialProvider
	Plans         plans.Service
	Subscriptions subscriptions.Creator
	Profiles      profiles.Repository
	Alerts        alerts.Sink
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	credentials   paypal.CredentialProvider
	plans         plans.Service
	subscriptions subscriptions.Creator
	profiles      profiles.Repository
	alerts        alerts.Sink
	logg          *logger.Logger
	validate      *validator.Validate
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Credentials == nil:
		return nil, errors.New("credential provider required")
	case params.Plans == nil:
		return nil, errors.New("plan provisioner required")
	case params.Subscriptions == nil:
		return nil, errors.New("subscription creator required")
	case params.Profiles == nil:
		return nil, errors.New("profile repository required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	sink := params.Alerts
	if sink == nil {
		sink = alerts.NewLogSink(params.Logger)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		credentials:   params.Credentials,
		plans:         params.Plans,
		subscriptions: params.Subscriptions,
		profiles:      params.Profiles,
		alerts:        sink,
		logg:          params.Logger,
		validate:      validator.New(),
		now:           now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, userID uuid.UUID, req PlanRequest) (*Initiation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan request")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	role, billing, err := resolveKinds(req, profile)
	if err != nil {
		return nil, err
	}

	creds := s.credentials.Resolve(ctx)
	if err := creds.Validate(); err != nil {
		s.alert(ctx, alerts.KindConfigurationMissing, userID, err)
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"paypal_env": creds.Environment.String(),
		"role":       role.String(),
		"plan_token": req.PlanID,
	})

	plan, err := s.plans.Provision(ctx, plans.Request{
		Environment:     creds.Environment,
		Account:         creds.Account(),
		Role:            role,
		PlanToken:       req.PlanID,
		BillingType:     billing,
		Amount:          *req.Amount,
		Currency:        req.Currency,
		PostTrialAmount: req.Metadata.PostTrialAmount,
		PlanLabel:       req.Metadata.PlanLabel,
	})
	if err != nil {
		s.alert(ctx, alerts.KindProvisioningFailed, userID, err)
		return nil, err
	}

	customer := subscriptions.Customer{Name: req.Customer.Name, Email: req.Customer.Email}
	if strings.TrimSpace(customer.Email) == "" {
		customer = subscriptions.Customer{Name: profile.FullName, Email: profile.Email}
	}
	customID := strings.TrimSpace(req.Metadata.CustomID)
	if customID == "" {
		customID = userID.String()
	}
	sub, err := s.subscriptions.Create(ctx, subscriptions.Input{
		PlanID:    plan.PlanID,
		CustomID:  customID,
		Customer:  customer,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		s.alert(ctx, alerts.KindSubscriptionFailed, userID, err)
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := ExpiresAt(now, req.Metadata.PlanDurationDays, billing, plan.Tier.Cadence)
	planType := planTypeFor(plan.Tier.Cadence)
	var state models.PlanState
	if holdsLivePlan(profile) {
		state = heldState(profile, sub.SubscriptionID, plan.PlanID, planType, now)
		s.logg.Info(s.logg.WithField(ctx, "active_reference", profile.PlanReference), "live subscription kept until the new one activates")
	} else {
		state = models.PlanState{
			PlanType:        planType,
			Status:          enums.PlanStatusPending,
			ExpiresAt:       &expiresAt,
			RequiresPayment: true,
			Reference:       sub.SubscriptionID,
			BillingProfile: &models.BillingProfile{
				Provider:           providerPayPal,
				Environment:        creds.Environment.String(),
				PlanID:             plan.PlanID,
				SubscriptionID:     sub.SubscriptionID,
				SubscriptionStatus: sub.Status,
			},
			SyncedAt: &now,
		}
	}
	if err := s.profiles.SavePlanState(ctx, userID, state); err != nil {
		// The processor subscription already exists; operators reconcile from the alert.
		s.logg.Error(s.logg.WithField(ctx, "subscription_id", sub.SubscriptionID), "failed to record pending plan state", err)
		s.alert(ctx, alerts.KindReconciliationFailed, userID, err)
	}

	s.logg.Info(s.logg.WithField(ctx, "subscription_id", sub.SubscriptionID), "payment initiated")
	return &Initiation{
		OrderID:       sub.SubscriptionID,
		ApprovalURL:   sub.ApprovalURL,
		PaymentStatus: paymentStatusPending,
		Amount:        plan.Charge.String(),
		Currency:      plan.Charge.Currency.String(),
		BillingType:   billing.String(),
		Role:          role.String(),
		PlanID:        plan.PlanID,
		Customer:      CustomerPayload{Name: customer.Name, Email: subscriptions.NormalizeEmail(customer.Email)},
		ExpiresAt:     expiresAt,
	}, nil
}

// ExpiresAt anchors the pending plan window at now. An explicit duration wins;
// otherwise trials and monthly plans get 30 days and annual plans one year.
func ExpiresAt(now time.Time, durationDays int, billing enums.BillingType, cadence enums.Cadence) time.Time {
	if durationDays > 0 {
		return now.AddDate(0, 0, durationDays)
	}
	if billing == enums.BillingTypeTrial {
		return enums.CadenceMonthly.Advance(now)
	}
	return cadence.Advance(now)
}

func resolveKinds(req PlanRequest, profile *models.UserProfile) (enums.Role, enums.BillingType, error) {
	rawRole := req.Role
	if strings.TrimSpace(rawRole) == "" {
		if tier := plans.ParseTier(req.PlanID); tier.Role != "" {
			rawRole = tier.Role.String()
		} else if profile != nil {
			rawRole = profile.Role.String()
		}
	}
	role, err := enums.ParseRole(rawRole)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").WithDetails(map[string]any{"field": "role"})
	}
	billing, err := enums.ParseBillingType(req.BillingType)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing type").WithDetails(map[string]any{"field": "billingType"})
	}
	return role, billing, nil
}

// holdsLivePlan reports whether the profile is paying through an active
// subscription that a new checkout must not displace before approval.
func holdsLivePlan(profile *models.UserProfile) bool {
	return profile != nil &&
		profile.PlanType.IsPaid() &&
		profile.PlanStatus == enums.PlanStatusActive &&
		strings.TrimSpace(profile.PlanReference) != ""
}

// heldState keeps the live plan and parks the new subscription as pending.
func heldState(profile *models.UserProfile, subscriptionID, planID string, planType enums.PlanType, now time.Time) models.PlanState {
	state := profile.PlanState()
	billing := models.BillingProfile{Provider: providerPayPal, SubscriptionID: profile.PlanReference}
	if profile.BillingProfile != nil {
		billing = *profile.BillingProfile
	}
	billing.PendingSubscriptionID = subscriptionID
	billing.PendingPlanID = planID
	billing.PendingPlanType = planType
	state.BillingProfile = &billing
	state.SyncedAt = &now
	return state
}

func planTypeFor(cadence enums.Cadence) enums.PlanType {
	if cadence == enums.CadenceAnnual {
		return enums.PlanTypeAnnual
	}
	return enums.PlanTypeMonthly
}

func (s *service) alert(ctx context.Context, kind string, userID uuid.UUID, err error) {
	event := alerts.Event{
		Kind:       kind,
		UserID:     userID.String(),
		Message:    err.Error(),
		OccurredAt: s.now().UTC(),
	}
	if typed := pkgerrors.As(err); typed != nil {
		event.Code = string(typed.Code())
		if details, ok := typed.Details().(map[string]any); ok {
			event.Details = details
		}
	}
	if notifyErr := s.alerts.Notify(ctx, event); notifyErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "alert_error", notifyErr.Error()), "billing alert delivery failed")
	}
}
