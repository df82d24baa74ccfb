package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/internal/currency"
	"github.com/angelmondragon/skillbridge-billing/internal/plans"
	"github.com/angelmondragon/skillbridge-billing/internal/subscriptions"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

type stubCredentials struct{ creds paypal.Credentials }

func (s stubCredentials) Resolve(context.Context) paypal.Credentials { return s.creds }

type stubPlans struct {
	got   plans.Request
	calls int
	err   error
}

func (s *stubPlans) Provision(ctx context.Context, req plans.Request) (*plans.Result, error) {
	s.calls++
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	charge, _ := currency.Normalize(req.Amount, req.Currency, req.Environment)
	return &plans.Result{PlanID: "P-1", Tier: plans.ParseTier(req.PlanToken), Charge: charge, Regular: charge}, nil
}

type stubCreator struct {
	got subscriptions.Input
	err error
}

func (s *stubCreator) Create(ctx context.Context, in subscriptions.Input) (*subscriptions.Result, error) {
	s.got = in
	if s.err != nil {
		return nil, s.err
	}
	return &subscriptions.Result{SubscriptionID: "I-1", Status: "APPROVAL_PENDING", ApprovalURL: "https://approve.example.com/I-1"}, nil
}

type stubProfiles struct {
	profile *models.UserProfile
	saved   []models.PlanState
	saveErr error
}

func (s *stubProfiles) FindByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	if s.profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user profile not found")
	}
	return s.profile, nil
}

func (s *stubProfiles) ListExpired(context.Context, time.Time, uuid.UUID, int) ([]models.UserProfile, error) {
	return nil, nil
}

func (s *stubProfiles) SavePlanState(ctx context.Context, userID uuid.UUID, state models.PlanState) error {
	s.saved = append(s.saved, state)
	return s.saveErr
}

type recordingSink struct{ events []alerts.Event }

func (r *recordingSink) Notify(ctx context.Context, e alerts.Event) error {
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	svc      Service
	plans    *stubPlans
	creator  *stubCreator
	profiles *stubProfiles
	sink     *recordingSink
	now      time.Time
}

func newFixture(t *testing.T, creds paypal.Credentials) *fixture {
	t.Helper()
	f := &fixture{
		plans:   &stubPlans{},
		creator: &stubCreator{},
		profiles: &stubProfiles{profile: &models.UserProfile{
			Role:     enums.RoleSME,
			Email:    "owner@example.com",
			FullName: "Lerato Dlamini",
			PlanType: enums.PlanTypeFree,
		}},
		sink: &recordingSink{},
		now:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Credentials:   stubCredentials{creds: creds},
		Plans:         f.plans,
		Subscriptions: f.creator,
		Profiles:      f.profiles,
		Alerts:        f.sink,
		Logger:        logger.Nop(),
		Now:           func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func sandboxCreds() paypal.Credentials {
	return paypal.Credentials{ClientID: "client-id-123456", ClientSecret: "secret", Environment: enums.EnvironmentSandbox, APIBase: paypal.SandboxAPIBase}
}

func amount(v float64) *float64 { return &v }

func TestInitiateRecordsPendingState(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	userID := uuid.New()

	out, err := f.svc.Initiate(context.Background(), userID, PlanRequest{
		Amount:   amount(149),
		PlanID:   "sme-pro-monthly",
		Customer: CustomerPayload{Name: "Thandi Mokoena", Email: " Thandi@Example.com "},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.OrderID != "I-1" || out.ApprovalURL != "https://approve.example.com/I-1" || out.PaymentStatus != "pending" {
		t.Fatalf("unexpected initiation %+v", out)
	}
	if out.Amount != "8.28" || out.Currency != "USD" || out.Role != "sme" || out.BillingType != "subscription" {
		t.Fatalf("unexpected amounts %+v", out)
	}
	if out.Customer.Email != "thandi@example.com" {
		t.Fatalf("expected normalized email, got %q", out.Customer.Email)
	}
	if want := f.now.Add(30 * 24 * time.Hour); !out.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, out.ExpiresAt)
	}
	if f.creator.got.CustomID != userID.String() {
		t.Fatalf("expected user id as custom id, got %q", f.creator.got.CustomID)
	}

	if len(f.profiles.saved) != 1 {
		t.Fatalf("expected one plan state write, got %d", len(f.profiles.saved))
	}
	state := f.profiles.saved[0]
	if state.Status != enums.PlanStatusPending || !state.RequiresPayment || state.Reference != "I-1" || state.PlanType != enums.PlanTypeMonthly {
		t.Fatalf("unexpected plan state %+v", state)
	}
	if state.BillingProfile == nil || state.BillingProfile.SubscriptionStatus != "APPROVAL_PENDING" {
		t.Fatalf("unexpected billing profile %+v", state.BillingProfile)
	}
}

func TestInitiateUsesDurationAndProfileDefaults(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	out, err := f.svc.Initiate(context.Background(), uuid.New(), PlanRequest{
		Amount:      amount(0),
		PlanID:      "pro-annual",
		BillingType: "trial",
		Metadata:    PlanMetadata{PlanDurationDays: 14, CustomID: "order-77"},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if f.plans.got.Role != enums.RoleSME {
		t.Fatalf("expected role from profile, got %q", f.plans.got.Role)
	}
	if f.creator.got.Customer.Email != "owner@example.com" || f.creator.got.CustomID != "order-77" {
		t.Fatalf("expected profile customer and custom id, got %+v", f.creator.got)
	}
	if want := f.now.AddDate(0, 0, 14); !out.ExpiresAt.Equal(want) {
		t.Fatalf("expected explicit duration expiry, got %s", out.ExpiresAt)
	}
	if f.profiles.saved[0].PlanType != enums.PlanTypeAnnual {
		t.Fatalf("expected annual plan type, got %q", f.profiles.saved[0].PlanType)
	}
}

func TestInitiateFailsBeforeNetworkWithoutCredentials(t *testing.T) {
	f := newFixture(t, paypal.Credentials{Environment: enums.EnvironmentSandbox})
	_, err := f.svc.Initiate(context.Background(), uuid.New(), PlanRequest{Amount: amount(149), PlanID: "sme-pro-monthly"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if f.plans.calls != 0 {
		t.Fatalf("expected no provisioning")
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Kind != alerts.KindConfigurationMissing {
		t.Fatalf("expected configuration alert, got %+v", f.sink.events)
	}
}

func TestInitiateAlertsOnProvisioningFailure(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	f.plans.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("boom"), "paypal plan provisioning failed").
		WithDetails(map[string]any{"step": "create plan"})

	_, err := f.svc.Initiate(context.Background(), uuid.New(), PlanRequest{Amount: amount(149), PlanID: "sme-pro-monthly"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Details["step"] != "create plan" {
		t.Fatalf("expected provisioning alert with details, got %+v", f.sink.events)
	}
	if len(f.profiles.saved) != 0 {
		t.Fatalf("plan state must not change on failure")
	}
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	cases := []PlanRequest{
		{PlanID: "sme-pro-monthly"},
		{Amount: amount(10)},
		{Amount: amount(10), PlanID: "sme-pro-monthly", BillingType: "weekly"},
		{Amount: amount(10), PlanID: "sme-pro-monthly", Role: "admin"},
		{Amount: amount(10), PlanID: "sme-pro-monthly", ReturnURL: "not a url"},
	}
	for i, req := range cases {
		if _, err := f.svc.Initiate(context.Background(), uuid.New(), req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if f.plans.calls != 0 {
		t.Fatalf("invalid requests must not reach the provisioner")
	}
}

func TestInitiateKeepsApprovalWhenStateWriteFails(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	f.profiles.saveErr = errors.New("db down")
	out, err := f.svc.Initiate(context.Background(), uuid.New(), PlanRequest{Amount: amount(149), PlanID: "sme-pro-monthly"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.ApprovalURL == "" {
		t.Fatal("expected approval url")
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Kind != alerts.KindReconciliationFailed {
		t.Fatalf("expected reconciliation alert, got %+v", f.sink.events)
	}
}

func TestInitiateKeepsLiveSubscriptionReference(t *testing.T) {
	f := newFixture(t, sandboxCreds())
	expires := f.now.Add(10 * 24 * time.Hour)
	f.profiles.profile = &models.UserProfile{
		Role:          enums.RoleSME,
		Email:         "owner@example.com",
		PlanType:      enums.PlanTypeMonthly,
		PlanStatus:    enums.PlanStatusActive,
		PlanExpiresAt: &expires,
		PlanReference: "I-LIVE",
		BillingProfile: &models.BillingProfile{
			Provider:           "paypal",
			PlanID:             "P-OLD",
			SubscriptionID:     "I-LIVE",
			SubscriptionStatus: "ACTIVE",
		},
	}

	out, err := f.svc.Initiate(context.Background(), uuid.New(), PlanRequest{Amount: amount(2499), PlanID: "sme-pro-annual"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.OrderID != "I-1" || out.ApprovalURL == "" {
		t.Fatalf("new checkout should still be returned, got %+v", out)
	}

	state := f.profiles.saved[0]
	if state.Status != enums.PlanStatusActive || state.RequiresPayment || state.Reference != "I-LIVE" || state.PlanType != enums.PlanTypeMonthly {
		t.Fatalf("live plan must be kept, got %+v", state)
	}
	if state.ExpiresAt == nil || !state.ExpiresAt.Equal(expires) {
		t.Fatalf("live expiry must be kept, got %v", state.ExpiresAt)
	}
	bp := state.BillingProfile
	if bp == nil || bp.SubscriptionID != "I-LIVE" || bp.PendingSubscriptionID != "I-1" || bp.PendingPlanID != "P-1" || bp.PendingPlanType != enums.PlanTypeAnnual {
		t.Fatalf("expected pending checkout beside live subscription, got %+v", bp)
	}
	if f.profiles.profile.BillingProfile.PendingSubscriptionID != "" {
		t.Fatalf("stored profile must not be mutated in place")
	}
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := ExpiresAt(now, 0, enums.BillingTypeSubscription, enums.CadenceAnnual); !got.Equal(now.AddDate(1, 0, 0)) {
		t.Fatalf("annual expiry mismatch: %s", got)
	}
	if got := ExpiresAt(now, 0, enums.BillingTypeTrial, enums.CadenceAnnual); !got.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("trial expiry mismatch: %s", got)
	}
	if got := ExpiresAt(now, 7, enums.BillingTypeTrial, enums.CadenceAnnual); !got.Equal(now.AddDate(0, 0, 7)) {
		t.Fatalf("explicit expiry mismatch: %s", got)
	}
}
