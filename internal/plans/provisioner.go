package plans

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/angelmondragon/skillbridge-billing/internal/catalog"
	"github.com/angelmondragon/skillbridge-billing/internal/currency"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

const (
	defaultPageSize = 20
	maxPlanPages    = 25
)

type planAPI interface {
	ListPlans(ctx context.Context, productID string, page, pageSize int) (*paypal.PlanList, error)
	GetPlan(ctx context.Context, planID string) (*paypal.Plan, error)
	CreatePlan(ctx context.Context, plan paypal.Plan) (*paypal.Plan, error)
}

// Request describes the plan a checkout needs.
type Request struct {
	Environment     enums.Environment
	// Account scopes catalog lookups to one processor account.
	Account         string
	Role            enums.Role
	PlanToken       string
	BillingType     enums.BillingType
	Amount          float64
	Currency        string
	PostTrialAmount *float64
	PlanLabel       string
}

// Result is an amount-verified processor plan.
type Result struct {
	PlanID    string
	Name      string
	ProductID string
	Reused    bool
	Tier      Tier
	// Charge is what the subscriber pays now; zero for trials.
	Charge currency.Amount
	// Regular is the recurring price after any trial.
	Regular currency.Amount
}

// Service finds or creates a correctly priced processor plan.
type Service interface {
	Provision(ctx context.Context, req Request) (*Result, error)
}

type ServiceParams struct {
	Client          planAPI
	Products        catalog.Service
	Logger          *logger.Logger
	Metrics         *metrics.BillingMetrics
	BrandName       string
	ConflictRetries uint64
	ConflictBackoff time.Duration
	PageSize        int
	Now             func() time.Time
}

type service struct {
	client          planAPI
	products        catalog.Service
	logg            *logger.Logger
	metrics         *metrics.BillingMetrics
	brand           string
	conflictRetries uint64
	conflictBackoff time.Duration
	pageSize        int
	now             func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, errors.New("paypal client required")
	}
	if params.Products == nil {
		return nil, errors.New("product resolver required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(params.BrandName) == "" {
		return nil, errors.New("brand name required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	conflictBackoff := params.ConflictBackoff
	if conflictBackoff <= 0 {
		conflictBackoff = 250 * time.Millisecond
	}
	return &service{
		client:          params.Client,
		products:        params.Products,
		logg:            params.Logger,
		metrics:         params.Metrics,
		brand:           strings.TrimSpace(params.BrandName),
		conflictRetries: params.ConflictRetries,
		conflictBackoff: conflictBackoff,
		pageSize:        pageSize,
		now:             now,
	}, nil
}

func (s *service) Provision(ctx context.Context, req Request) (*Result, error) {
	result, err := s.provision(ctx, req)
	if err != nil {
		s.metrics.IncProvision(metrics.OutcomeFailed)
		return nil, err
	}
	if result.Reused {
		s.metrics.IncProvision(metrics.OutcomeReused)
	} else {
		s.metrics.IncProvision(metrics.OutcomeCreated)
	}
	return result, nil
}

func (s *service) provision(ctx context.Context, req Request) (*Result, error) {
	if !req.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role").WithDetails(map[string]any{"field": "role"})
	}
	if !req.BillingType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown billing type").WithDetails(map[string]any{"field": "billingType"})
	}

	tier := ParseTier(req.PlanToken)
	charge, regular, err := s.amounts(req, tier)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(req.PlanLabel)
	if label == "" {
		label = tier.Label()
	}
	name := PlanName(s.brand, req.Role, label, req.BillingType, regular)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"plan_name":    name,
		"role":         req.Role.String(),
		"billing_type": req.BillingType.String(),
		"currency":     regular.Currency.String(),
		"amount":       regular.String(),
	})

	productID, err := s.products.EnsureProduct(ctx, productAccount(req), req.Role)
	if err != nil {
		return nil, provisioningError(err, "ensure product")
	}

	cycles := BuildCycles(req.BillingType, tier.Cadence, regular)
	result := &Result{Name: name, ProductID: productID, Tier: tier, Charge: charge, Regular: regular}

	candidates, err := s.findByName(ctx, productID, name)
	if err != nil {
		return nil, provisioningError(err, "list plans")
	}
	for _, listed := range candidates {
		plan, err := s.detail(ctx, listed)
		if err != nil {
			return nil, provisioningError(err, "get plan")
		}
		if s.reusable(plan, req.BillingType, regular) {
			s.logg.Info(s.logg.WithField(ctx, "plan_id", plan.ID), "reusing paypal plan")
			result.PlanID = plan.ID
			result.Name = plan.Name
			result.Reused = true
			return result, nil
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"plan_id":     plan.ID,
			"plan_status": plan.Status,
		}), "paypal plan name matched with mismatched pricing; skipping")
	}
	if len(candidates) > 0 {
		name = UniqueName(name, s.now())
	}

	created, err := s.create(ctx, paypal.Plan{
		ProductID:          productID,
		Name:               name,
		Description:        truncate(fmt.Sprintf("%s %s %s plan", s.brand, req.Role.Label(), label), maxNameLength),
		Status:             paypal.PlanStatusActive,
		BillingCycles:      cycles,
		PaymentPreferences: paymentPreferences(),
	})
	if err != nil {
		return nil, provisioningError(err, "create plan")
	}
	result.PlanID = created.ID
	result.Name = created.Name
	s.logg.Info(s.logg.WithField(ctx, "plan_id", created.ID), "paypal plan created")
	return result, nil
}

func productAccount(req Request) string {
	if account := strings.TrimSpace(req.Account); account != "" {
		return account
	}
	return req.Environment.String()
}

// amounts normalizes what is charged now and the recurring price.
func (s *service) amounts(req Request, tier Tier) (currency.Amount, currency.Amount, error) {
	if req.BillingType != enums.BillingTypeTrial {
		amount, err := currency.Normalize(req.Amount, req.Currency, req.Environment)
		if err != nil {
			return currency.Amount{}, currency.Amount{}, err
		}
		if amount.Value.IsZero() {
			return currency.Amount{}, currency.Amount{}, pkgerrors.New(pkgerrors.CodeValidation, "paid plans require a positive amount").
				WithDetails(map[string]any{"field": "amount"})
		}
		return amount, amount, nil
	}

	charge, err := currency.Normalize(0, req.Currency, req.Environment)
	if err != nil {
		return currency.Amount{}, currency.Amount{}, err
	}
	if err := currency.ValidateAmount(req.Amount); err != nil {
		return currency.Amount{}, currency.Amount{}, err
	}
	home, ok := postTrialHomeAmount(req.PostTrialAmount, req.Amount, req.Role, tier.Cadence)
	if !ok {
		return currency.Amount{}, currency.Amount{}, pkgerrors.New(pkgerrors.CodeValidation, "no post-trial price for tier").
			WithDetails(map[string]any{"role": req.Role.String(), "cadence": tier.Cadence.String()})
	}
	regular, err := currency.Normalize(home, req.Currency, req.Environment)
	if err != nil {
		return currency.Amount{}, currency.Amount{}, err
	}
	return charge, regular, nil
}

// findByName lists the plans carrying name or a timestamped variant of it.
// The exact name comes first, then variants newest first.
func (s *service) findByName(ctx context.Context, productID, name string) ([]paypal.Plan, error) {
	var exact, variants []paypal.Plan
	prefix := uniquePrefix(name)
	for page := 1; page <= maxPlanPages; page++ {
		list, err := s.client.ListPlans(ctx, productID, page, s.pageSize)
		if err != nil {
			return nil, err
		}
		if list == nil {
			break
		}
		for _, p := range list.Plans {
			switch {
			case p.Name == name:
				exact = append(exact, p)
			case strings.HasPrefix(p.Name, prefix):
				variants = append(variants, p)
			}
		}
		if page >= list.TotalPages || len(list.Plans) < s.pageSize {
			break
		}
	}
	sort.SliceStable(variants, func(i, j int) bool { return variants[i].Name > variants[j].Name })
	return append(exact, variants...), nil
}

// detail fetches the billing cycles a listing leaves out.
func (s *service) detail(ctx context.Context, listed paypal.Plan) (*paypal.Plan, error) {
	if len(listed.BillingCycles) > 0 {
		return &listed, nil
	}
	return s.client.GetPlan(ctx, listed.ID)
}

// reusable guards against mischarging: the plan must be active, priced in the
// same currency and, for non-trials, at the same amount within one cent.
func (s *service) reusable(plan *paypal.Plan, billing enums.BillingType, regular currency.Amount) bool {
	if plan == nil || !strings.EqualFold(plan.Status, paypal.PlanStatusActive) {
		return false
	}
	cycle, ok := plan.RegularCycle()
	if !ok {
		return false
	}
	price := cycle.PricingScheme.FixedPrice
	if !strings.EqualFold(price.CurrencyCode, regular.Currency.String()) {
		return false
	}
	if billing == enums.BillingTypeTrial {
		return true
	}
	return currency.SameAmount(price.Decimal(), regular.Value)
}

// create submits the plan and, on a name conflict, retries with a fresh
// timestamped name. Other failures are not retried.
func (s *service) create(ctx context.Context, plan paypal.Plan) (*paypal.Plan, error) {
	base := plan.Name
	var created *paypal.Plan

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.conflictBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.conflictRetries), ctx)

	op := func() error {
		out, err := s.client.CreatePlan(ctx, plan)
		if err == nil {
			if out == nil || out.ID == "" {
				return backoff.Permanent(pkgerrors.New(pkgerrors.CodeDependency, "paypal returned a plan without id"))
			}
			if out.Name == "" {
				out.Name = plan.Name
			}
			created = out
			return nil
		}
		if procErr := paypal.AsProcessorError(err); procErr != nil && procErr.IsNameConflict() {
			plan.Name = UniqueName(base, s.now())
			s.logg.Warn(s.logg.WithField(ctx, "retry_name", plan.Name), "paypal plan name conflict")
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, retry); err != nil {
		return nil, err
	}
	return created, nil
}

// provisioningError keeps the processor's code and adds field/location hints.
func provisioningError(err error, step string) error {
	procErr := paypal.AsProcessorError(err)
	if procErr == nil && (pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) || pkgerrors.IsCode(err, pkgerrors.CodeValidation)) {
		return err
	}
	details := map[string]any{"step": step}
	message := "paypal plan provisioning failed"
	if procErr != nil {
		details["status"] = procErr.StatusCode
		details["message"] = procErr.UserMessage()
		if procErr.DebugID != "" {
			details["debugId"] = procErr.DebugID
		}
		if field, location := procErr.FieldHint(); field != "" || location != "" {
			details["field"] = field
			details["location"] = location
			message = fmt.Sprintf("%s: %s (field %s in %s)", message, procErr.UserMessage(), field, location)
		} else {
			message = fmt.Sprintf("%s: %s", message, procErr.UserMessage())
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).WithDetails(details)
}
