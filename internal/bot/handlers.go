package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/starpromo/promobot/internal/promo"
)

func (b *Bot) handlePromoSelect(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logrus.WithError(err).Warn("Callback ack failed")
	}
	if !b.requireJoined(c) {
		return nil
	}

	plan, err := b.Engine.SelectDuration(c.Sender().ID, c.Data())
	if err != nil {
		return c.Edit("❌ Unknown duration, use /promote to pick again.")
	}

	return c.Edit(fmt.Sprintf(
		"✅ Selected: %s - %d Stars\n\n"+
			"Please forward a message from your channel.",
		plan.Label, plan.Stars,
	))
}

func (b *Bot) handleVerifyJoin(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logrus.WithError(err).Warn("Callback ack failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, missing := b.Gate.Satisfies(ctx, c.Sender().ID)
	if ok {
		return c.Edit(
			"✅ Verification successful!\n\n" +
				"You can now use all bot features. Use /promote to start promoting your channel!",
		)
	}
	return c.Send(joinRequiredText(missing), joinRequiredMenu(missing), tele.ModeMarkdown)
}

// handleIncoming routes plain messages: forwarded channel posts feed
// the promotion flow, everything else is ignored.
func (b *Bot) handleIncoming(c tele.Context) error {
	message := c.Message()
	if message == nil || message.OriginalChat == nil {
		return nil
	}
	return b.handleForwarded(c)
}

func (b *Bot) handleForwarded(c tele.Context) error {
	if !b.requireJoined(c) {
		return nil
	}

	origin := c.Message().OriginalChat
	if origin.Type != tele.ChatChannel {
		return c.Send("Please forward a message from a channel.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := b.Engine.AttachChannel(ctx, c.Sender().ID, promo.ChannelRef{
		ID:       origin.ID,
		Username: origin.Username,
		Title:    origin.Title,
	})
	switch {
	case errors.Is(err, promo.ErrNoSelection):
		return c.Send("Please use /promote first to select duration.")
	case errors.Is(err, promo.ErrRoleVerification):
		return c.Send("❌ Cannot verify channel admin status. Make sure I'm added to your channel.")
	case errors.Is(err, promo.ErrNotChannelAdmin):
		return c.Send("❌ You must be an admin of this channel to promote it.")
	case err != nil:
		logrus.WithError(err).Error("Channel attachment failed")
		return c.Send("❌ Error adding channel. Please try again.")
	}

	if result.Free {
		return c.Send(fmt.Sprintf(
			"✅ Channel @%s promoted for %s (FREE - Admin privilege)!\n\n"+
				"Promotion will expire in %d days.",
			origin.Username, result.Plan.Label, result.Plan.Days,
		))
	}

	return c.Send(paymentInstructionsText(b.Session.Me.Username, result), tele.ModeMarkdown)
}

func (b *Bot) handlePayment(c tele.Context) error {
	payment := c.Message().Payment
	if payment == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := b.Engine.HandlePayment(ctx, c.Sender().ID, payment.Total)
	switch {
	case errors.Is(err, promo.ErrNoPendingPayment):
		// Receipt with no open flow; nothing to reconcile.
		return nil
	case err != nil:
		logrus.WithError(err).Error("Payment reconciliation failed")
		return c.Send("❌ Error processing payment. Please try again.")
	}

	switch outcome.Status {
	case promo.PaymentMismatch:
		return c.Send(fmt.Sprintf(
			"❌ Incorrect amount. Required: %d Stars. Received: %d Stars.",
			outcome.Pending.StarsRequired, payment.Total,
		))
	case promo.PaymentActivationFailed:
		return c.Send("❌ Error activating promotion. Please contact an admin.")
	default:
		return c.Send(fmt.Sprintf(
			"✅ Payment received! Channel @%s promoted for %s!\n\n"+
				"Promotion will expire in %d days.",
			outcome.Pending.ChannelUsername, outcome.Plan.Label, outcome.Plan.Days,
		))
	}
}

func (b *Bot) handleAdminStats(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logrus.WithError(err).Warn("Callback ack failed")
	}
	isAdmin, _ := b.Repo.IsAdmin(c.Sender().ID)
	if !isAdmin {
		return c.Send("❌ Admin access required.")
	}

	now := time.Now()
	active, err := b.Repo.GetActiveChannels(now)
	if err != nil {
		logrus.WithError(err).Error("Failed to load active channels")
		return c.Send("❌ Stats are unavailable right now.")
	}
	expiredCount, err := b.Repo.CountExpiredChannels()
	if err != nil {
		logrus.WithError(err).Error("Failed to count expired channels")
	}

	return c.Send(adminStatsText(active, expiredCount, now), tele.ModeMarkdown)
}

func (b *Bot) handleAdminBackup(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logrus.WithError(err).Warn("Callback ack failed")
	}
	isAdmin, _ := b.Repo.IsAdmin(c.Sender().ID)
	if !isAdmin {
		return c.Send("❌ Admin access required.")
	}
	if b.Sync == nil {
		return c.Send("❌ Remote backup not configured.")
	}

	if err := c.Send("🔄 Creating backup..."); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := b.Sync.Backup(ctx); err != nil {
		logrus.WithError(err).Error("Backup failed")
		return c.Send("❌ Backup failed!")
	}
	return c.Send("✅ Backup created successfully!")
}

// handleAdminRestore performs the destructive full-state import. It is
// deliberately admin-gated and never runs on a schedule.
func (b *Bot) handleAdminRestore(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logrus.WithError(err).Warn("Callback ack failed")
	}
	isAdmin, _ := b.Repo.IsAdmin(c.Sender().ID)
	if !isAdmin {
		return c.Send("❌ Admin access required.")
	}
	if b.Sync == nil {
		return c.Send("❌ Remote backup not configured.")
	}

	if err := c.Send("🔄 Restoring from latest backup..."); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	restored, err := b.Sync.Restore(ctx)
	if err != nil {
		logrus.WithError(err).Error("Restore failed")
		return c.Send("❌ Restore failed!")
	}
	if !restored {
		return c.Send("❌ No backup found!")
	}
	return c.Send("✅ Backup restored successfully!")
}
