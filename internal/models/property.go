package models

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Property struct {
	ID                    int64          `json:"id"`
	OwnerID               int64          `json:"ownerId"`
	Title                 string         `json:"title"`
	ApprovalStatus        ApprovalStatus `json:"approvalStatus"`
	SubscriptionLevel     Tier           `json:"subscriptionLevel"`
	SubscriptionExpiresAt *time.Time     `json:"subscriptionExpiresAt,omitempty"`
	Featured              bool           `json:"featured"`
	Premium               bool           `json:"premium"`
	CreatedAt             time.Time      `json:"createdAt"`
}
