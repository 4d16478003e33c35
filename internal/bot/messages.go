package bot

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/starpromo/promobot/internal/models"
	"github.com/starpromo/promobot/internal/promo"
)

// Callback uniques for inline buttons.
const (
	uniquePromo        = "promo"
	uniqueVerifyJoin   = "verify_join"
	uniqueAdminStats   = "admin_stats"
	uniqueAdminBackup  = "admin_backup"
	uniqueAdminRestore = "admin_restore"
)

func promoMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	var rows []tele.Row
	var row []tele.Btn
	for _, plan := range promo.Plans {
		row = append(row, menu.Data(fmt.Sprintf("%s - %d⭐", plan.Label, plan.Stars), uniquePromo, plan.Key))
		if len(row) == 2 {
			rows = append(rows, menu.Row(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, menu.Row(row...))
	}

	menu.Inline(rows...)
	return menu
}

func adminMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("📊 Stats", uniqueAdminStats)),
		menu.Row(menu.Data("🔄 Backup", uniqueAdminBackup)),
		menu.Row(menu.Data("📥 Restore", uniqueAdminRestore)),
	)
	return menu
}

func joinRequiredMenu(missing []string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, handle := range missing {
		rows = append(rows, menu.Row(menu.URL("Join @"+handle, "https://t.me/"+handle)))
	}
	rows = append(rows, menu.Row(menu.Data("✅ I've Joined - Verify Now", uniqueVerifyJoin)))

	menu.Inline(rows...)
	return menu
}

func joinRequiredText(missing []string) string {
	var b strings.Builder
	b.WriteString("🔒 *Join Required*\n\n")
	b.WriteString("To use Promotion Bot, you must join our official channels first:\n\n")
	for _, handle := range missing {
		fmt.Fprintf(&b, "📢 @%s - Get amazing promotions and updates!\n", handle)
	}
	b.WriteString("\nAfter joining, click the button below to verify.")
	return b.String()
}

func welcomeText(firstName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Welcome %s to Promotion Bot!\n\n", firstName)
	b.WriteString("🤖 *Bot Features:*\n")
	b.WriteString("• Promote your Telegram channels\n")
	b.WriteString("• Pay with Telegram Stars\n")
	b.WriteString("• Automatic promotion across networks\n")
	b.WriteString("• Duration-based pricing\n\n")
	b.WriteString("💰 *Pricing:*\n")
	for _, plan := range promo.Plans {
		fmt.Fprintf(&b, "• %s - %d Stars\n", plan.Label, plan.Stars)
	}
	b.WriteString("\nUse /promote to start promoting your channel!")
	return b.String()
}

func paymentInstructionsText(botUsername string, result *promo.AttachResult) string {
	var b strings.Builder
	b.WriteString("💫 *Payment Required*\n\n")
	fmt.Fprintf(&b, "Channel: @%s\n", result.Pending.ChannelUsername)
	fmt.Fprintf(&b, "Duration: %s\n", result.Plan.Label)
	fmt.Fprintf(&b, "Cost: %d Stars\n\n", result.Pending.StarsRequired)
	b.WriteString("To complete payment:\n")
	fmt.Fprintf(&b, "1. Go to @%s\n", botUsername)
	fmt.Fprintf(&b, "2. Send exactly %d Stars\n\n", result.Pending.StarsRequired)
	b.WriteString("Your promotion will be activated automatically after payment verification.")
	return b.String()
}

func publicStatsText(active []models.PromotedChannel) string {
	var b strings.Builder
	b.WriteString("📊 *Public Statistics*\n\n")
	fmt.Fprintf(&b, "✅ Active Promotions: %d\n\n", len(active))
	b.WriteString("*Currently Promoting:*\n")

	const maxListed = 10
	for i, channel := range active {
		if i == maxListed {
			break
		}
		username := channel.ChannelUsername
		if username == "" {
			username = "Private"
		}
		fmt.Fprintf(&b, "• %s (@%s)\n", channel.ChannelTitle, username)
	}
	if len(active) > maxListed {
		fmt.Fprintf(&b, "\n... and %d more channels!\n", len(active)-maxListed)
	}

	b.WriteString("\nUse /promote to add your channel!")
	return b.String()
}

func adminStatsText(active []models.PromotedChannel, expiredCount int64, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 *Bot Statistics*\n\n")
	fmt.Fprintf(&b, "✅ Active Channels: %d\n", len(active))
	fmt.Fprintf(&b, "❌ Expired Channels: %d\n\n", expiredCount)
	b.WriteString("*Active Promotions:*\n")

	for _, channel := range active {
		username := channel.ChannelUsername
		if username == "" {
			username = "Private"
		}
		fmt.Fprintf(&b, "• %s (@%s) - %d days left\n", channel.ChannelTitle, username, channel.DaysLeft(now))
	}
	return b.String()
}
