package cron

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/internal/alerts"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]models.UserProfile
	saved    map[uuid.UUID]models.PlanState
	pages    int
	saveErr  error
}

func newMemoryProfiles(profiles ...models.UserProfile) *memoryProfiles {
	m := &memoryProfiles{
		profiles: map[uuid.UUID]models.UserProfile{},
		saved:    map[uuid.UUID]models.PlanState{},
	}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *memoryProfiles) FindByID(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return &p, nil
}

func (m *memoryProfiles) ListExpired(_ context.Context, now time.Time, after uuid.UUID, limit int) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages++
	var out []models.UserProfile
	for _, p := range m.profiles {
		if p.PlanExpiresAt == nil || p.PlanExpiresAt.After(now) {
			continue
		}
		if p.PlanType == enums.PlanTypeFree && p.PlanStatus == enums.PlanStatusTrialExpired {
			continue
		}
		if after != uuid.Nil && p.UserID.String() <= after.String() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryProfiles) SavePlanState(_ context.Context, id uuid.UUID, state models.PlanState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = state
	return nil
}

func (m *memoryProfiles) state(t *testing.T, id uuid.UUID) models.PlanState {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[id]
	if !ok {
		t.Fatalf("no plan state saved for %s", id)
	}
	return s
}

type stubFetcher struct {
	mu    sync.Mutex
	subs  map[string]*paypal.Subscription
	errs  map[string]error
	calls []string
}

func (s *stubFetcher) GetSubscription(_ context.Context, id string) (*paypal.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	return s.subs[id], nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []alerts.Event
}

func (r *recordingSink) Notify(_ context.Context, e alerts.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

var syncNow = time.Date(2026, 6, 1, 2, 0, 0, 0, time.UTC)

func expiredProfile(planType enums.PlanType, ref string) models.UserProfile {
	expired := syncNow.Add(-time.Hour)
	return models.UserProfile{
		UserID:        uuid.New(),
		Email:         "member@example.com",
		Role:          enums.RoleSME,
		PlanType:      planType,
		PlanStatus:    enums.PlanStatusActive,
		PlanExpiresAt: &expired,
		PlanReference: ref,
	}
}

func newSyncJob(t *testing.T, repo *memoryProfiles, client *stubFetcher, sink alerts.Sink, batch int) Job {
	t.Helper()
	job, err := NewSubscriptionSyncJob(SubscriptionSyncJobParams{
		Logger:      logger.Nop(),
		Profiles:    repo,
		Client:      client,
		Alerts:      sink,
		BatchSize:   batch,
		Concurrency: 2,
		Now:         func() time.Time { return syncNow },
	})
	if err != nil {
		t.Fatalf("new sync job: %v", err)
	}
	return job
}

func TestSyncExpiresFreeTrialWithoutNetwork(t *testing.T) {
	free := expiredProfile(enums.PlanTypeFree, "")
	repo := newMemoryProfiles(free)
	client := &stubFetcher{}

	if err := newSyncJob(t, repo, client, nil, 10).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("free plans must not reach the processor, got %v", client.calls)
	}
	state := repo.state(t, free.UserID)
	if state.Status != enums.PlanStatusTrialExpired || !state.RequiresPayment {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.SyncedAt == nil || !state.SyncedAt.Equal(syncNow) {
		t.Fatalf("expected synced at %v, got %v", syncNow, state.SyncedAt)
	}
}

func TestSyncMarksMissingSubscription(t *testing.T) {
	monthly := expiredProfile(enums.PlanTypeMonthly, "")
	repo := newMemoryProfiles(monthly)
	client := &stubFetcher{}

	if err := newSyncJob(t, repo, client, nil, 10).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	state := repo.state(t, monthly.UserID)
	if state.Status != enums.PlanStatusPaymentDue || state.Issue != IssueMissingSubscription || !state.RequiresPayment {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(client.calls) != 0 {
		t.Fatalf("no reference means no lookup, got %v", client.calls)
	}
}

func TestSyncStatusTransitions(t *testing.T) {
	active := expiredProfile(enums.PlanTypeMonthly, "I-ACTIVE")
	activeNoSchedule := expiredProfile(enums.PlanTypeAnnual, "")
	activeNoSchedule.BillingProfile = &models.BillingProfile{Provider: "paypal", SubscriptionID: "I-ANNUAL"}
	pending := expiredProfile(enums.PlanTypeMonthly, "I-PENDING")
	suspended := expiredProfile(enums.PlanTypeMonthly, "I-SUSPENDED")

	repo := newMemoryProfiles(active, activeNoSchedule, pending, suspended)
	client := &stubFetcher{subs: map[string]*paypal.Subscription{
		"I-ACTIVE":    {ID: "I-ACTIVE", Status: "ACTIVE", BillingInfo: &paypal.BillingInfo{NextBillingTime: "2026-07-01T10:00:00Z"}},
		"I-ANNUAL":    {ID: "I-ANNUAL", Status: "active"},
		"I-PENDING":   {ID: "I-PENDING", Status: "APPROVAL_PENDING"},
		"I-SUSPENDED": {ID: "I-SUSPENDED", Status: "SUSPENDED"},
	}}

	if err := newSyncJob(t, repo, client, nil, 10).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := repo.state(t, active.UserID)
	want := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	if got.Status != enums.PlanStatusActive || got.RequiresPayment || got.Issue != "" {
		t.Fatalf("unexpected active state %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got.ExpiresAt)
	}
	if got.BillingProfile == nil || got.BillingProfile.SubscriptionStatus != "ACTIVE" {
		t.Fatalf("billing profile not refreshed: %+v", got.BillingProfile)
	}

	got = repo.state(t, activeNoSchedule.UserID)
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(syncNow.AddDate(1, 0, 0)) {
		t.Fatalf("annual fallback expiry expected, got %v", got.ExpiresAt)
	}
	if got.Reference != "I-ANNUAL" {
		t.Fatalf("reference should be taken from billing profile, got %q", got.Reference)
	}

	got = repo.state(t, pending.UserID)
	if got.Status != enums.PlanStatusPending || !got.RequiresPayment {
		t.Fatalf("unexpected pending state %+v", got)
	}

	got = repo.state(t, suspended.UserID)
	if got.Status != enums.PlanStatusPaymentDue || got.Issue != "subscription_suspended" {
		t.Fatalf("unexpected suspended state %+v", got)
	}
}

func TestSyncPromotesActivatedPendingSubscription(t *testing.T) {
	upgraded := expiredProfile(enums.PlanTypeMonthly, "I-LIVE")
	upgraded.BillingProfile = &models.BillingProfile{
		Provider:              "paypal",
		SubscriptionID:        "I-LIVE",
		PendingSubscriptionID: "I-NEW",
		PendingPlanID:         "P-ANNUAL",
		PendingPlanType:       enums.PlanTypeAnnual,
	}
	abandoned := expiredProfile(enums.PlanTypeMonthly, "I-KEPT")
	abandoned.BillingProfile = &models.BillingProfile{
		Provider:              "paypal",
		SubscriptionID:        "I-KEPT",
		PendingSubscriptionID: "I-ABANDONED",
		PendingPlanType:       enums.PlanTypeAnnual,
	}

	repo := newMemoryProfiles(upgraded, abandoned)
	client := &stubFetcher{subs: map[string]*paypal.Subscription{
		"I-NEW":       {ID: "I-NEW", PlanID: "P-ANNUAL", Status: "ACTIVE"},
		"I-ABANDONED": {ID: "I-ABANDONED", Status: "APPROVAL_PENDING"},
		"I-KEPT":      {ID: "I-KEPT", Status: "ACTIVE"},
	}}

	if err := newSyncJob(t, repo, client, nil, 10).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := repo.state(t, upgraded.UserID)
	if got.Status != enums.PlanStatusActive || got.Reference != "I-NEW" || got.PlanType != enums.PlanTypeAnnual {
		t.Fatalf("activated checkout should take over, got %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(syncNow.AddDate(1, 0, 0)) {
		t.Fatalf("expected annual expiry, got %v", got.ExpiresAt)
	}
	if bp := got.BillingProfile; bp == nil || bp.SubscriptionID != "I-NEW" || bp.PlanID != "P-ANNUAL" || bp.PendingSubscriptionID != "" || bp.PendingPlanType != "" {
		t.Fatalf("pending fields should be cleared, got %+v", got.BillingProfile)
	}

	got = repo.state(t, abandoned.UserID)
	if got.Status != enums.PlanStatusActive || got.Reference != "I-KEPT" || got.PlanType != enums.PlanTypeMonthly {
		t.Fatalf("abandoned checkout must not displace the live plan, got %+v", got)
	}
	if got.BillingProfile == nil || got.BillingProfile.PendingSubscriptionID != "I-ABANDONED" {
		t.Fatalf("pending checkout should be kept for a later sync, got %+v", got.BillingProfile)
	}
}

func TestSyncFetchFailureFailsClosedAndContinues(t *testing.T) {
	broken := expiredProfile(enums.PlanTypeMonthly, "I-BROKEN")
	healthy := expiredProfile(enums.PlanTypeMonthly, "I-OK")
	repo := newMemoryProfiles(broken, healthy)
	client := &stubFetcher{
		subs: map[string]*paypal.Subscription{"I-OK": {ID: "I-OK", Status: "ACTIVE"}},
		errs: map[string]error{"I-BROKEN": errors.New("connection reset")},
	}
	sink := &recordingSink{}

	err := newSyncJob(t, repo, client, sink, 10).Run(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeReconciliation) {
		t.Fatalf("expected reconciliation error, got %v", err)
	}

	got := repo.state(t, broken.UserID)
	if got.Status != enums.PlanStatusPaymentDue || got.Issue != IssueSyncFailed || !got.RequiresPayment {
		t.Fatalf("unexpected failed state %+v", got)
	}
	if got := repo.state(t, healthy.UserID); got.Status != enums.PlanStatusActive {
		t.Fatalf("healthy profile should still sync, got %+v", got)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != alerts.KindReconciliationFailed || sink.events[0].UserID != broken.UserID.String() {
		t.Fatalf("unexpected alerts %+v", sink.events)
	}
}

func TestSyncPagesThroughCandidates(t *testing.T) {
	var profiles []models.UserProfile
	for i := 0; i < 5; i++ {
		profiles = append(profiles, expiredProfile(enums.PlanTypeFree, ""))
	}
	repo := newMemoryProfiles(profiles...)

	if err := newSyncJob(t, repo, &stubFetcher{}, nil, 2).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.saved) != 5 {
		t.Fatalf("expected 5 profiles synced, got %d", len(repo.saved))
	}
	if repo.pages != 3 {
		t.Fatalf("expected 3 pages, got %d", repo.pages)
	}
}

func TestSyncSaveFailureIsReported(t *testing.T) {
	repo := newMemoryProfiles(expiredProfile(enums.PlanTypeFree, ""))
	repo.saveErr = errors.New("db down")
	sink := &recordingSink{}

	err := newSyncJob(t, repo, &stubFetcher{}, sink, 10).Run(context.Background())
	if err == nil {
		t.Fatalf("expected save failure to surface")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one alert, got %d", len(sink.events))
	}
}
