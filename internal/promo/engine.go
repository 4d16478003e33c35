package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/membership"
	"github.com/starpromo/promobot/internal/models"
)

var (
	ErrUnknownDuration  = errors.New("unknown promotion duration")
	ErrNoSelection      = errors.New("no duration selected")
	ErrRoleVerification = errors.New("cannot verify channel admin status")
	ErrNotChannelAdmin  = errors.New("user is not an admin of the channel")
	ErrNoPendingPayment = errors.New("no pending payment for user")
)

// ChannelRef identifies the channel a user wants promoted, as captured
// from a forwarded message.
type ChannelRef struct {
	ID       int64
	Username string
	Title    string
}

// BackupTrigger dispatches a best-effort snapshot backup after a
// mutation. Failures never surface to the triggering flow.
type BackupTrigger interface {
	BackupAsync()
}

// Engine drives a channel's promotion lifecycle: duration selection,
// channel attachment via the free or paid path, and star-payment
// reconciliation.
type Engine struct {
	repo     *database.Repository
	sessions *SessionStore
	oracle   membership.RoleOracle
	backup   BackupTrigger
}

// NewEngine creates the lifecycle engine. backup may be nil when no
// remote store is configured.
func NewEngine(repo *database.Repository, sessions *SessionStore, oracle membership.RoleOracle, backup BackupTrigger) *Engine {
	return &Engine{
		repo:     repo,
		sessions: sessions,
		oracle:   oracle,
		backup:   backup,
	}
}

// SelectDuration records the user's duration choice and returns the
// resolved plan. A repeated selection overwrites the previous one.
func (e *Engine) SelectDuration(userID int64, key string) (Plan, error) {
	plan, ok := PlanByKey(key)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownDuration, key)
	}
	e.sessions.SetDuration(userID, key)
	return plan, nil
}

// AttachResult reports what AttachChannel did: a free registration for
// bot admins, or a pending payment the user still has to settle.
type AttachResult struct {
	Free    bool
	Plan    Plan
	Pending *PendingPayment
}

// AttachChannel continues a user's flow with the channel they forwarded.
// The requester must be administrator or creator of that channel. Bot
// admins get the promotion registered immediately for free; everyone
// else gets a pending payment record and owes the star amount.
func (e *Engine) AttachChannel(ctx context.Context, userID int64, channel ChannelRef) (*AttachResult, error) {
	duration, ok := e.sessions.Duration(userID)
	if !ok {
		return nil, ErrNoSelection
	}
	plan, ok := PlanByKey(duration)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDuration, duration)
	}

	role, err := e.oracle.MemberRole(ctx, channel.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoleVerification, err)
	}
	if role != membership.RoleAdministrator && role != membership.RoleCreator {
		return nil, ErrNotChannelAdmin
	}

	isAdmin, err := e.repo.IsAdmin(userID)
	if err != nil {
		return nil, err
	}

	if isAdmin {
		if err := e.register(channel, userID, plan); err != nil {
			return nil, err
		}
		e.sessions.Clear(userID)
		return &AttachResult{Free: true, Plan: plan}, nil
	}

	paymentID, err := e.repo.CreatePayment(&models.Payment{
		UserID:    userID,
		ChannelID: channel.ID,
		Amount:    plan.Stars,
		Duration:  plan.Key,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	pending := &PendingPayment{
		PaymentID:       paymentID,
		ChannelID:       channel.ID,
		ChannelUsername: channel.Username,
		ChannelTitle:    channel.Title,
		Duration:        plan.Key,
		StarsRequired:   plan.Stars,
	}
	e.sessions.SetPending(userID, pending)

	return &AttachResult{Plan: plan, Pending: pending}, nil
}

// PaymentStatus classifies the outcome of a payment event.
type PaymentStatus int

const (
	// PaymentMismatch: amount differed from the required stars; the
	// pending selection is retained so the user can resend.
	PaymentMismatch PaymentStatus = iota
	// PaymentActivated: exact match, promotion registered.
	PaymentActivated
	// PaymentActivationFailed: payment completed but the promotion
	// record write failed. Needs manual reconciliation.
	PaymentActivationFailed
)

// PaymentOutcome is what the transport reports back to the user.
type PaymentOutcome struct {
	Status  PaymentStatus
	Plan    Plan
	Pending *PendingPayment
}

// HandlePayment reconciles an inbound star amount against the user's
// pending promotion. Policy is exact match only: anything else is
// rejected with the pending selection kept. On a match the payment is
// completed and the promotion registered; the pending selection is
// cleared either way so a repeated receipt has no further effect.
func (e *Engine) HandlePayment(ctx context.Context, userID int64, stars int) (*PaymentOutcome, error) {
	pending, ok := e.sessions.Pending(userID)
	if !ok {
		return nil, ErrNoPendingPayment
	}
	plan, ok := PlanByKey(pending.Duration)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDuration, pending.Duration)
	}

	if stars != pending.StarsRequired {
		logrus.WithFields(logrus.Fields{
			"user":     userID,
			"expected": pending.StarsRequired,
			"received": stars,
		}).Info("Rejected payment with wrong amount")
		return &PaymentOutcome{Status: PaymentMismatch, Plan: plan, Pending: pending}, nil
	}

	if err := e.repo.CompletePayment(pending.PaymentID); err != nil {
		// Payment record untouched; the user may resend the receipt.
		return nil, err
	}

	channel := ChannelRef{
		ID:       pending.ChannelID,
		Username: pending.ChannelUsername,
		Title:    pending.ChannelTitle,
	}
	registerErr := e.register(channel, userID, plan)
	e.sessions.Clear(userID)

	if registerErr != nil {
		logrus.WithFields(logrus.Fields{
			"user":    userID,
			"channel": pending.ChannelID,
			"payment": pending.PaymentID,
		}).WithError(registerErr).Error("Payment completed but promotion activation failed, manual reconciliation required")
		return &PaymentOutcome{Status: PaymentActivationFailed, Plan: plan, Pending: pending}, nil
	}

	return &PaymentOutcome{Status: PaymentActivated, Plan: plan, Pending: pending}, nil
}

// register upserts the promotion window and kicks off a best-effort
// backup. Backup failure never rolls back the registration.
func (e *Engine) register(channel ChannelRef, ownerID int64, plan Plan) error {
	start := time.Now()
	err := e.repo.UpsertChannel(&models.PromotedChannel{
		ChannelID:       channel.ID,
		ChannelUsername: channel.Username,
		ChannelTitle:    channel.Title,
		OwnerID:         ownerID,
		PromotionStart:  start,
		PromotionEnd:    start.AddDate(0, 0, plan.Days),
		Status:          models.ChannelStatusActive,
		CreatedAt:       start,
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"channel":  channel.ID,
		"owner":    ownerID,
		"duration": plan.Key,
	}).Info("Channel promotion registered")

	if e.backup != nil {
		e.backup.BackupAsync()
	}
	return nil
}
