package bot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/starpromo/promobot/internal/backup"
	"github.com/starpromo/promobot/internal/config"
	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/membership"
	"github.com/starpromo/promobot/internal/promo"
)

// Bot is the Telegram transport: it owns the long-poll session and
// translates updates into engine and gate calls.
type Bot struct {
	Session *tele.Bot
	Repo    *database.Repository
	Engine  *promo.Engine
	Gate    *membership.Gate
	Sync    *backup.Sync // nil when no remote store is configured
}

func New(repo *database.Repository, sync *backup.Sync) (*Bot, error) {
	session, err := tele.NewBot(tele.Settings{
		Token:  config.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logrus.WithError(err).Error("Handler error")
		},
	})
	if err != nil {
		return nil, err
	}

	oracle := &roleOracle{session: session}

	var trigger promo.BackupTrigger
	if sync != nil {
		trigger = sync
	}

	bot := &Bot{
		Session: session,
		Repo:    repo,
		Engine:  promo.NewEngine(repo, promo.NewSessionStore(), oracle, trigger),
		Gate:    membership.NewGate(oracle, repo, config.RequiredChannels),
		Sync:    sync,
	}

	bot.registerHandlers()

	return bot, nil
}

func (b *Bot) registerHandlers() {
	b.Session.Handle("/start", b.handleStart)
	b.Session.Handle("/promote", b.handlePromote)
	b.Session.Handle("/admin", b.handleAdmin)
	b.Session.Handle("/backup", b.handleManualBackup)
	b.Session.Handle("/stats", b.handleStats)
	b.Session.Handle("/check_join", b.handleCheckJoin)

	b.Session.Handle(&tele.Btn{Unique: uniquePromo}, b.handlePromoSelect)
	b.Session.Handle(&tele.Btn{Unique: uniqueVerifyJoin}, b.handleVerifyJoin)
	b.Session.Handle(&tele.Btn{Unique: uniqueAdminStats}, b.handleAdminStats)
	b.Session.Handle(&tele.Btn{Unique: uniqueAdminBackup}, b.handleAdminBackup)
	b.Session.Handle(&tele.Btn{Unique: uniqueAdminRestore}, b.handleAdminRestore)

	// Forwarded channel messages carry the promotion target; star
	// receipts arrive as payment service messages.
	b.Session.Handle(tele.OnText, b.handleIncoming)
	b.Session.Handle(tele.OnMedia, b.handleIncoming)
	b.Session.Handle(tele.OnPayment, b.handlePayment)
}

// Start begins long polling in the background.
func (b *Bot) Start() {
	logrus.WithField("bot", b.Session.Me.Username).Info("Starting long polling")
	go b.Session.Start()
}

func (b *Bot) Stop() {
	b.Session.Stop()
}

// SendListing delivers one broadcast message to a target chat.
func (b *Bot) SendListing(_ context.Context, targetID int64, message string) error {
	_, err := b.Session.Send(tele.ChatID(targetID), message, tele.ModeMarkdown, tele.NoPreview)
	return err
}

// roleOracle answers membership queries through the live Telegram API.
type roleOracle struct {
	session *tele.Bot
}

func (o *roleOracle) MemberRole(_ context.Context, channelID, userID int64) (string, error) {
	member, err := o.session.ChatMemberOf(tele.ChatID(channelID), &tele.User{ID: userID})
	if err != nil {
		return "", err
	}
	return string(member.Role), nil
}

// requireJoined enforces the required-channel gate for non-admins. It
// sends the join prompt itself and reports whether the caller may
// proceed.
func (b *Bot) requireJoined(c tele.Context) bool {
	userID := c.Sender().ID

	isAdmin, err := b.Repo.IsAdmin(userID)
	if err != nil {
		logrus.WithError(err).Error("Admin lookup failed")
	}
	if isAdmin {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, missing := b.Gate.Satisfies(ctx, userID)
	if ok {
		return true
	}

	if err := c.Send(joinRequiredText(missing), joinRequiredMenu(missing), tele.ModeMarkdown); err != nil {
		logrus.WithError(err).Error("Failed to send join prompt")
	}
	return false
}
