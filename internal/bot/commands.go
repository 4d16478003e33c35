package bot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

func (b *Bot) handleStart(c tele.Context) error {
	if !b.requireJoined(c) {
		return nil
	}
	return c.Send(welcomeText(c.Sender().FirstName), tele.ModeMarkdown)
}

func (b *Bot) handlePromote(c tele.Context) error {
	if !b.requireJoined(c) {
		return nil
	}
	return c.Send(
		"🎯 Choose promotion duration:\n\n"+
			"After selection, forward a message from your channel.",
		promoMenu(),
	)
}

func (b *Bot) handleCheckJoin(c tele.Context) error {
	userID := c.Sender().ID

	isAdmin, err := b.Repo.IsAdmin(userID)
	if err != nil {
		logrus.WithError(err).Error("Admin lookup failed")
	}
	if isAdmin {
		return c.Send("✅ You are an admin - no channel join required!")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, missing := b.Gate.Satisfies(ctx, userID)
	if ok {
		return c.Send("✅ You have joined all required channels! You can now use all bot features.")
	}
	return c.Send(joinRequiredText(missing), joinRequiredMenu(missing), tele.ModeMarkdown)
}

func (b *Bot) handleAdmin(c tele.Context) error {
	isAdmin, err := b.Repo.IsAdmin(c.Sender().ID)
	if err != nil {
		logrus.WithError(err).Error("Admin lookup failed")
	}
	if !isAdmin {
		return c.Send("❌ Admin access required.")
	}
	return c.Send("🛠️ Admin Panel", adminMenu())
}

func (b *Bot) handleManualBackup(c tele.Context) error {
	isAdmin, err := b.Repo.IsAdmin(c.Sender().ID)
	if err != nil {
		logrus.WithError(err).Error("Admin lookup failed")
	}
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
		logrus.WithError(err).Error("Manual backup failed")
		return c.Send("❌ Backup failed!")
	}
	return c.Send("✅ Backup created successfully!")
}

func (b *Bot) handleStats(c tele.Context) error {
	if !b.requireJoined(c) {
		return nil
	}

	active, err := b.Repo.GetActiveChannels(time.Now())
	if err != nil {
		logrus.WithError(err).Error("Failed to load active channels")
		return c.Send("❌ Stats are unavailable right now, try again later.")
	}

	return c.Send(publicStatsText(active), tele.ModeMarkdown, tele.NoPreview)
}
