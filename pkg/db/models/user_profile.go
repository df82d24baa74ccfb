package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
)

// BillingProfile mirrors the processor subscription backing a profile's plan.
type BillingProfile struct {
	Provider           string `json:"provider"`
	Environment        string `json:"environment,omitempty"`
	PlanID             string `json:"planId,omitempty"`
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
	NextBillingTime    string `json:"nextBillingTime,omitempty"`

	// Pending* describe a checkout opened while another subscription is live.
	PendingSubscriptionID string         `json:"pendingSubscriptionId,omitempty"`
	PendingPlanID         string         `json:"pendingPlanId,omitempty"`
	PendingPlanType       enums.PlanType `json:"pendingPlanType,omitempty"`
}

// UserProfile is the marketplace account with its cached plan state.
type UserProfile struct {
	UserID              uuid.UUID        `gorm:"column:user_id;type:uuid;primaryKey"`
	Email               string           `gorm:"column:email;not null"`
	FullName            string           `gorm:"column:full_name;not null;default:''"`
	Role                enums.Role       `gorm:"column:role;not null"`
	PlanType            enums.PlanType   `gorm:"column:plan_type;not null;default:free"`
	PlanStatus          enums.PlanStatus `gorm:"column:plan_status;not null;default:active"`
	PlanExpiresAt       *time.Time       `gorm:"column:plan_expires_at"`
	PlanRequiresPayment bool             `gorm:"column:plan_requires_payment;not null;default:false"`
	PlanReference       string           `gorm:"column:plan_reference;not null;default:''"`
	BillingProfile      *BillingProfile  `gorm:"column:billing_profile;type:jsonb;serializer:json"`
	PlanIssue           string           `gorm:"column:plan_issue;not null;default:''"`
	PlanSyncedAt        *time.Time       `gorm:"column:plan_synced_at"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// PlanState is the full plan snapshot written by payment initiation and the
// status sync. Writes replace every field so repeated writes are idempotent.
type PlanState struct {
	PlanType        enums.PlanType
	Status          enums.PlanStatus
	ExpiresAt       *time.Time
	RequiresPayment bool
	Reference       string
	BillingProfile  *BillingProfile
	Issue           string
	SyncedAt        *time.Time
}

// PlanState returns the profile's current plan snapshot.
func (p UserProfile) PlanState() PlanState {
	return PlanState{
		PlanType:        p.PlanType,
		Status:          p.PlanStatus,
		ExpiresAt:       p.PlanExpiresAt,
		RequiresPayment: p.PlanRequiresPayment,
		Reference:       p.PlanReference,
		BillingProfile:  p.BillingProfile,
		Issue:           p.PlanIssue,
		SyncedAt:        p.PlanSyncedAt,
	}
}
