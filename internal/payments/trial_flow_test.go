package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/internal/catalog"
	"github.com/angelmondragon/skillbridge-billing/internal/plans"
	"github.com/angelmondragon/skillbridge-billing/internal/subscriptions"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

// memoryProcessor serves the catalog, plan and subscription calls from memory.
type memoryProcessor struct {
	products      []paypal.Product
	plans         []paypal.Plan
	subscriptions []paypal.SubscriptionRequest
}

func (m *memoryProcessor) ListProducts(ctx context.Context, page, pageSize int) (*paypal.ProductList, error) {
	return &paypal.ProductList{Products: m.products, TotalPages: 1}, nil
}

func (m *memoryProcessor) CreateProduct(ctx context.Context, product paypal.Product) (*paypal.Product, error) {
	product.ID = fmt.Sprintf("PROD-%d", len(m.products)+1)
	m.products = append(m.products, product)
	return &product, nil
}

func (m *memoryProcessor) ListPlans(ctx context.Context, productID string, page, pageSize int) (*paypal.PlanList, error) {
	out := &paypal.PlanList{TotalPages: 1}
	for _, p := range m.plans {
		if p.ProductID == productID {
			out.Plans = append(out.Plans, paypal.Plan{ID: p.ID, ProductID: p.ProductID, Name: p.Name, Status: p.Status})
		}
	}
	return out, nil
}

func (m *memoryProcessor) GetPlan(ctx context.Context, planID string) (*paypal.Plan, error) {
	for _, p := range m.plans {
		if p.ID == planID {
			found := p
			return &found, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
}

func (m *memoryProcessor) CreatePlan(ctx context.Context, plan paypal.Plan) (*paypal.Plan, error) {
	plan.ID = fmt.Sprintf("P-%d", len(m.plans)+1)
	m.plans = append(m.plans, plan)
	out := plan
	return &out, nil
}

func (m *memoryProcessor) CreateSubscription(ctx context.Context, req paypal.SubscriptionRequest) (*paypal.Subscription, error) {
	m.subscriptions = append(m.subscriptions, req)
	id := fmt.Sprintf("I-%d", len(m.subscriptions))
	return &paypal.Subscription{
		ID:     id,
		PlanID: req.PlanID,
		Status: string(enums.SubscriptionStatusApprovalPending),
		Links: []paypal.Link{
			{Rel: "self", Href: "https://api-m.sandbox.paypal.com/v1/billing/subscriptions/" + id},
			{Rel: paypal.RelApprove, Href: "https://www.sandbox.paypal.com/webapps/billing/subscriptions?ba_token=BA-" + id},
		},
	}, nil
}

func newProcessorBackedService(t *testing.T, processor *memoryProcessor, profiles *stubProfiles) Service {
	t.Helper()
	logg := logger.Nop()
	products, err := catalog.NewService(catalog.ServiceParams{Client: processor, Logger: logg, BrandName: "SkillBridge", CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	provisioner, err := plans.NewService(plans.ServiceParams{Client: processor, Products: products, Logger: logg, BrandName: "SkillBridge"})
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	creator, err := subscriptions.NewCreator(subscriptions.CreatorParams{
		Client:           processor,
		Logger:           logg,
		BrandName:        "SkillBridge",
		DefaultReturnURL: "https://app.example.com/billing/success",
		DefaultCancelURL: "https://app.example.com/billing/cancel",
	})
	if err != nil {
		t.Fatalf("creator: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Credentials:   stubCredentials{creds: sandboxCreds()},
		Plans:         provisioner,
		Subscriptions: creator,
		Profiles:      profiles,
		Alerts:        &recordingSink{},
		Logger:        logg,
		Now:           func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	return svc
}

func TestInitiateTrialEndToEnd(t *testing.T) {
	processor := &memoryProcessor{}
	profiles := &stubProfiles{profile: &models.UserProfile{Role: enums.RoleSME, Email: "owner@example.com", PlanType: enums.PlanTypeFree}}
	svc := newProcessorBackedService(t, processor, profiles)

	out, err := svc.Initiate(context.Background(), uuid.New(), PlanRequest{
		Amount:      amount(0),
		PlanID:      "sme-pro-monthly",
		BillingType: "trial",
		Customer:    CustomerPayload{Name: "Thandi Mokoena", Email: "thandi@example.com"},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.ApprovalURL == "" || out.Amount != "0.00" || out.Currency != "USD" || out.BillingType != "trial" {
		t.Fatalf("unexpected initiation %+v", out)
	}

	if len(processor.plans) != 1 {
		t.Fatalf("expected one plan, got %d", len(processor.plans))
	}
	cycles := processor.plans[0].BillingCycles
	if len(cycles) != 2 {
		t.Fatalf("expected two billing cycles, got %d", len(cycles))
	}
	if cycles[0].TenureType != paypal.TenureTrial || cycles[0].PricingScheme.FixedPrice.Value != "0.00" {
		t.Fatalf("unexpected trial cycle %+v", cycles[0])
	}
	if cycles[1].TenureType != paypal.TenureRegular || cycles[1].PricingScheme.FixedPrice.Value != "8.28" {
		t.Fatalf("unexpected regular cycle %+v", cycles[1])
	}

	if len(processor.subscriptions) != 1 || processor.subscriptions[0].PlanID != processor.plans[0].ID {
		t.Fatalf("subscription should reference the provisioned plan, got %+v", processor.subscriptions)
	}
	if out.PlanID != processor.plans[0].ID || out.OrderID != "I-1" {
		t.Fatalf("unexpected ids %+v", out)
	}

	// A second identical checkout reuses the plan.
	if _, err := svc.Initiate(context.Background(), uuid.New(), PlanRequest{Amount: amount(0), PlanID: "sme-pro-monthly", BillingType: "trial"}); err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if len(processor.plans) != 1 || len(processor.products) != 1 {
		t.Fatalf("expected plan and product reuse, plans=%d products=%d", len(processor.plans), len(processor.products))
	}
}
