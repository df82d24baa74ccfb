package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/internal/profiles"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

// SubscriptionSyncJobName is the registry name of the status sync.
const SubscriptionSyncJobName = "subscription-status-sync"

// Plan issues recorded on profiles that need attention.
const (
	IssueMissingSubscription = "missing_subscription"
	IssueSyncFailed          = "paypal_sync_failed"
	issueStatusPrefix        = "subscription_"
)

const (
	defaultSyncBatchSize   = 200
	defaultSyncConcurrency = 10
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*paypal.Subscription, error)
}

// SubscriptionSyncJobParams configures the subscription status sync.
type SubscriptionSyncJobParams struct {
	Logger      *logger.Logger
	Profiles    profiles.Repository
	Client      subscriptionFetcher
	Alerts      alerts.Sink
	Metrics     *metrics.BillingMetrics
	BatchSize   int
	Concurrency int
	Now         func() time.Time
}

type subscriptionSyncJob struct {
	logg        *logger.Logger
	profiles    profiles.Repository
	client      subscriptionFetcher
	alerts      alerts.Sink
	metrics     *metrics.BillingMetrics
	batchSize   int
	concurrency int
	now         func() time.Time
}

// NewSubscriptionSyncJob builds the job that refreshes expired plan states
// from the processor.
func NewSubscriptionSyncJob(params SubscriptionSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("paypal client required")
	}
	sink := params.Alerts
	if sink == nil {
		sink = alerts.NewLogSink(params.Logger)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSyncBatchSize
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSyncConcurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionSyncJob{
		logg:        params.Logger,
		profiles:    params.Profiles,
		client:      params.Client,
		alerts:      sink,
		metrics:     params.Metrics,
		batchSize:   batch,
		concurrency: concurrency,
		now:         now,
	}, nil
}

func (j *subscriptionSyncJob) Name() string { return SubscriptionSyncJobName }

// Run walks every expired profile. One profile's failure never stops the
// batch; failures are joined into the returned error.
func (j *subscriptionSyncJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var (
		mu      sync.Mutex
		errs    error
		scanned int
		cursor  uuid.UUID
	)

	for {
		page, err := j.profiles.ListExpired(ctx, now, cursor, j.batchSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list expired profiles: %w", err))
		}
		if len(page) == 0 {
			break
		}
		scanned += len(page)

		var g errgroup.Group
		g.SetLimit(j.concurrency)
		for i := range page {
			profile := page[i]
			g.Go(func() error {
				if err := j.syncProfile(ctx, profile, now); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		cursor = page[len(page)-1].UserID
		if len(page) < j.batchSize {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": scanned,
		"failures":   len(multierr.Errors(errs)),
	}), "subscription status sync complete")
	return errs
}

func (j *subscriptionSyncJob) syncProfile(ctx context.Context, profile models.UserProfile, now time.Time) error {
	ctx = j.logg.WithUserID(ctx, profile.UserID.String())
	state, fetchErr := j.nextState(ctx, profile, now)

	var errs error
	if fetchErr != nil {
		errs = multierr.Append(errs, fetchErr)
	}
	if err := j.profiles.SavePlanState(ctx, profile.UserID, state); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("save plan state: %w", err))
	} else {
		j.metrics.IncTransition(state.Status.String(), state.Issue)
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"plan_status": state.Status.String(),
			"plan_issue":  state.Issue,
		}), "plan state synced")
	}
	if errs == nil {
		return nil
	}

	err := pkgerrors.Wrap(pkgerrors.CodeReconciliation, errs, "subscription status sync failed").
		WithDetails(map[string]any{"userId": profile.UserID.String(), "issue": state.Issue})
	j.logg.Error(ctx, "subscription status sync failed", err)
	if notifyErr := j.alerts.Notify(ctx, alerts.Event{
		Kind:       alerts.KindReconciliationFailed,
		UserID:     profile.UserID.String(),
		Message:    err.Error(),
		Code:       string(pkgerrors.CodeReconciliation),
		Details:    map[string]any{"issue": state.Issue, "reference": reference(profile)},
		OccurredAt: now,
	}); notifyErr != nil {
		j.logg.Warn(j.logg.WithField(ctx, "alert_error", notifyErr.Error()), "billing alert delivery failed")
	}
	return err
}

// nextState applies the plan state machine. A processor failure fails closed
// to payment_due and is also returned for reporting.
func (j *subscriptionSyncJob) nextState(ctx context.Context, profile models.UserProfile, now time.Time) (models.PlanState, error) {
	state := profile.PlanState()
	state.SyncedAt = &now

	if profile.PlanType == enums.PlanTypeFree {
		state.Status = enums.PlanStatusTrialExpired
		state.RequiresPayment = true
		state.Issue = ""
		return state, nil
	}

	if promoted, ok := j.promotePending(ctx, profile, now); ok {
		return promoted, nil
	}

	ref := reference(profile)
	if ref == "" {
		state.Status = enums.PlanStatusPaymentDue
		state.RequiresPayment = true
		state.Issue = IssueMissingSubscription
		return state, nil
	}

	sub, err := j.client.GetSubscription(ctx, ref)
	if err == nil && sub == nil {
		err = errors.New("paypal returned no subscription")
	}
	if err != nil {
		state.Status = enums.PlanStatusPaymentDue
		state.RequiresPayment = true
		state.Issue = IssueSyncFailed
		return state, fmt.Errorf("fetch subscription %s: %w", ref, err)
	}

	state.Reference = ref
	state.BillingProfile = billingProfile(profile.BillingProfile, sub)
	status := strings.ToUpper(strings.TrimSpace(sub.Status))
	switch enums.SubscriptionStatus(status) {
	case enums.SubscriptionStatusActive:
		expires := nextBillingTime(sub, cadenceFor(profile.PlanType), now)
		state.Status = enums.PlanStatusActive
		state.ExpiresAt = &expires
		state.RequiresPayment = false
		state.Issue = ""
	case enums.SubscriptionStatusApprovalPending:
		state.Status = enums.PlanStatusPending
		state.RequiresPayment = true
		state.Issue = ""
	default:
		state.Status = enums.PlanStatusPaymentDue
		state.RequiresPayment = true
		state.Issue = issueStatusPrefix + strings.ToLower(status)
	}
	return state, nil
}

// promotePending switches the profile to a checkout opened while another
// subscription was live, once the processor reports it ACTIVE. Any other
// outcome leaves the live reference in charge.
func (j *subscriptionSyncJob) promotePending(ctx context.Context, profile models.UserProfile, now time.Time) (models.PlanState, bool) {
	if profile.BillingProfile == nil {
		return models.PlanState{}, false
	}
	pending := strings.TrimSpace(profile.BillingProfile.PendingSubscriptionID)
	if pending == "" {
		return models.PlanState{}, false
	}
	sub, err := j.client.GetSubscription(ctx, pending)
	if err != nil || sub == nil {
		j.logg.Warn(j.logg.WithField(ctx, "pending_subscription_id", pending), "pending subscription lookup failed")
		return models.PlanState{}, false
	}
	if enums.SubscriptionStatus(strings.ToUpper(strings.TrimSpace(sub.Status))) != enums.SubscriptionStatusActive {
		return models.PlanState{}, false
	}

	planType := profile.BillingProfile.PendingPlanType
	if !planType.IsPaid() {
		planType = profile.PlanType
	}
	billing := billingProfile(profile.BillingProfile, sub)
	billing.PendingSubscriptionID = ""
	billing.PendingPlanID = ""
	billing.PendingPlanType = ""

	expires := nextBillingTime(sub, cadenceFor(planType), now)
	state := profile.PlanState()
	state.PlanType = planType
	state.Status = enums.PlanStatusActive
	state.ExpiresAt = &expires
	state.RequiresPayment = false
	state.Reference = pending
	state.BillingProfile = billing
	state.Issue = ""
	state.SyncedAt = &now
	return state, true
}

func reference(profile models.UserProfile) string {
	if ref := strings.TrimSpace(profile.PlanReference); ref != "" {
		return ref
	}
	if profile.BillingProfile != nil {
		return strings.TrimSpace(profile.BillingProfile.SubscriptionID)
	}
	return ""
}

func billingProfile(current *models.BillingProfile, sub *paypal.Subscription) *models.BillingProfile {
	out := models.BillingProfile{Provider: "paypal"}
	if current != nil {
		out = *current
	}
	out.SubscriptionID = sub.ID
	out.SubscriptionStatus = sub.Status
	out.NextBillingTime = sub.NextBillingTime()
	if sub.PlanID != "" {
		out.PlanID = sub.PlanID
	}
	return &out
}

// nextBillingTime prefers the processor's schedule and otherwise advances
// one billing period from now.
func nextBillingTime(sub *paypal.Subscription, cadence enums.Cadence, now time.Time) time.Time {
	if raw := sub.NextBillingTime(); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	return cadence.Advance(now)
}

func cadenceFor(planType enums.PlanType) enums.Cadence {
	if planType == enums.PlanTypeAnnual {
		return enums.CadenceAnnual
	}
	return enums.CadenceMonthly
}
