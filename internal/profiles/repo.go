package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/skillbridge-billing/internal/repo"
	"github.com/angelmondragon/skillbridge-billing/pkg/db/models"
	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
)

const defaultPageSize = 200

// planStateColumns are rewritten together on every plan state save.
var planStateColumns = []string{
	"plan_type",
	"plan_status",
	"plan_expires_at",
	"plan_requires_payment",
	"plan_reference",
	"billing_profile",
	"plan_issue",
	"plan_synced_at",
	"updated_at",
}

// Repository is the user profile store. SavePlanState is the only plan state
// writer; callers are payment initiation and the subscription status sync.
type Repository interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	ListExpired(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]models.UserProfile, error)
	SavePlanState(ctx context.Context, userID uuid.UUID, state models.PlanState) error
}

type repository struct {
	repo.Base
}

// NewRepository binds the profile store to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) FindByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.DB(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user profile not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user profile")
	}
	return &profile, nil
}

// ListExpired pages through profiles whose plan expiry has passed, ordered by
// user id after the given cursor. Free profiles already marked trial_expired
// are terminal and skipped.
func (r *repository) ListExpired(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]models.UserProfile, error) {
	q := r.DB(ctx).
		Where("plan_expires_at IS NOT NULL AND plan_expires_at <= ?", now).
		Where("NOT (plan_type = ? AND plan_status = ?)", enums.PlanTypeFree, enums.PlanStatusTrialExpired)
	if after != uuid.Nil {
		q = q.Where("user_id > ?", after)
	}

	var profiles []models.UserProfile
	if err := q.Order("user_id ASC").Scopes(repo.Limit(limit, defaultPageSize)).Find(&profiles).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired profiles")
	}
	return profiles, nil
}

func (r *repository) SavePlanState(ctx context.Context, userID uuid.UUID, state models.PlanState) error {
	if !state.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan status").WithDetails(map[string]any{"status": state.Status})
	}
	if !state.PlanType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type").WithDetails(map[string]any{"planType": state.PlanType})
	}
	update := models.UserProfile{
		PlanType:            state.PlanType,
		PlanStatus:          state.Status,
		PlanExpiresAt:       state.ExpiresAt,
		PlanRequiresPayment: state.RequiresPayment,
		PlanReference:       state.Reference,
		BillingProfile:      state.BillingProfile,
		PlanIssue:           state.Issue,
		PlanSyncedAt:        state.SyncedAt,
	}
	res := r.DB(ctx).
		Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Select(planStateColumns).
		Updates(&update)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save plan state")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user profile not found")
	}
	return nil
}
