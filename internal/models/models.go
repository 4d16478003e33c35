package models

import (
	"time"
)

const (
	ChannelStatusActive  = "active"
	ChannelStatusExpired = "expired"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// PromotedChannel is one channel's promotion window. At most one row
// exists per ChannelID; re-registering replaces the window.
type PromotedChannel struct {
	ID              uint      `gorm:"primaryKey;column:id"`
	ChannelID       int64     `gorm:"uniqueIndex;column:channel_id"`
	ChannelUsername string    `gorm:"column:channel_username"`
	ChannelTitle    string    `gorm:"column:channel_title"`
	OwnerID         int64     `gorm:"column:owner_id"`
	PromotionStart  time.Time `gorm:"column:promotion_start"`
	PromotionEnd    time.Time `gorm:"column:promotion_end"`
	Status          string    `gorm:"column:status;default:active"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (PromotedChannel) TableName() string {
	return "promoted_channels"
}

// DaysLeft reports days remaining in the promotion window, counting a
// started day as a full one. Zero once the window has closed.
func (c *PromotedChannel) DaysLeft(now time.Time) int {
	remaining := c.PromotionEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

type Admin struct {
	ID       uint      `gorm:"primaryKey;column:id"`
	UserID   int64     `gorm:"uniqueIndex;column:user_id"`
	Username string    `gorm:"column:username"`
	AddedAt  time.Time `gorm:"column:added_at"`
}

func (Admin) TableName() string {
	return "admins"
}

// Payment tracks a star-payment request for a paid promotion. Created
// pending, flipped to completed exactly once by reconciliation.
type Payment struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	UserID    int64     `gorm:"column:user_id"`
	ChannelID int64     `gorm:"column:channel_id"`
	Amount    int       `gorm:"column:amount"`
	Duration  string    `gorm:"column:duration"`
	Status    string    `gorm:"column:status;default:pending"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// MembershipCheck caches the last membership-oracle answer for a
// (user, required channel) pair. Advisory only; the gate re-queries
// the oracle live on every check.
type MembershipCheck struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	UserID    int64     `gorm:"uniqueIndex:idx_user_channel;column:user_id"`
	ChannelID int64     `gorm:"uniqueIndex:idx_user_channel;column:channel_id"`
	Joined    bool      `gorm:"column:joined"`
	CheckedAt time.Time `gorm:"column:checked_at"`
}

func (MembershipCheck) TableName() string {
	return "membership_checks"
}
