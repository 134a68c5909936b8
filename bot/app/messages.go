package app

import (
	"fmt"
	"strings"

	"github.com/m3rciful/airdropbot/bot/config"
	"github.com/m3rciful/airdropbot/bot/onboarding"
	"github.com/m3rciful/airdropbot/bot/report"
	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/core/telegram/format"
)

const (
	cbCompletedTasks = "completed_tasks"

	cbAdminUsers       = "admin_users"
	cbAdminCSV         = "admin_download_csv"
	cbAdminJSON        = "admin_download_json"
	cbAdminTotal       = "admin_total"
	cbAdminLeaderboard = "admin_leaderboard"
	cbAdminWallets     = "admin_wallets"
	cbAdminHandles     = "admin_usernames"

	leaderboardSize = 10
)

const (
	msgCompletedButton   = "✅ I've Completed All Tasks"
	msgTasksNotVerified  = "❌ Please join the required Telegram group & channel first!"
	msgTasksVerified     = "✅ Telegram tasks verified!"
	msgAskHandle         = "Now please send me your <b>Twitter (X) username</b>:"
	msgHandleSaved       = "👍 Twitter saved!"
	msgAskWallet         = "Now please send me your <b>wallet address</b>:"
	msgDuplicateHandle   = "❌ This Twitter username has already been used!"
	msgDuplicateWallet   = "❌ This wallet address is already registered!"
	msgSignupComplete    = "🎉 All tasks completed!"
	msgRetryLater        = "⚠️ Something went wrong on our side. Please try again in a moment."
	msgNotStarted        = "Send /start to join the airdrop."
	msgUnknownCommand    = "Unknown command. Use /start or /stats."
	msgUnknownCallback   = "This button is no longer active."
	msgSlowDown          = "⏳ Slow down a little."
	msgNotAuthorized     = "🚫 You are not authorized."
	msgAdminDashboard    = "📊 Admin Dashboard"
	msgNoUsers           = "No users found."
	msgNoWallets         = "No wallets found."
	msgNoHandles         = "No usernames found."
	msgUnexpectedFile    = "I can't process files here."
	msgLeaderboardHeader = "🏆 Top 10 Referrals:\n\n"
)

var msgInvalidInput = fmt.Sprintf("⚠️ Please send a single value of at most %d characters.", onboarding.MaxSubmissionLength)

// texts renders directives for one campaign.
type texts struct {
	campaign config.CampaignConfig
}

func (t texts) taskPrompt(firstName string) string {
	var b strings.Builder
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "👋 Hello <b>%s</b>!", format.EscapeHTML(name))
	if t.campaign.Name != "" {
		fmt.Fprintf(&b, " Let's start your journey to earn free <b>%s</b>.", format.EscapeHTML(t.campaign.Name))
	}
	fmt.Fprintf(&b, "\n\nPlease complete the following mandatory tasks to receive your $%s reward:\n\n",
		format.Amount(t.campaign.Signup()))
	for i, task := range t.campaign.Tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, format.EscapeHTML(task.Title))
		if task.URL != "" {
			b.WriteString(": " + format.Link(task.URL, ""))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nOnce you're done, click the button below to continue.")
	return b.String()
}

func referralLink(botUsername, userID string) string {
	if botUsername == "" {
		return "https://t.me/?start=" + userID
	}
	return "https://t.me/" + botUsername + "?start=" + userID
}

func (t texts) stats(rec *store.UserRecord, botUsername string) string {
	done := "No"
	if rec.TasksCompleted {
		done = "Yes"
	}
	return fmt.Sprintf("📊 <b>Your current stats:</b>\n\n"+
		"✅ Tasks completed: %s\n"+
		"👥 Referrals: %d\n"+
		"💰 Total earned: $%s\n\n"+
		"🔗 Referral link:\n%s",
		done, rec.Referrals, format.Amount(rec.Earned),
		format.Code(referralLink(botUsername, rec.ID)),
	)
}

func leaderboardText(entries []report.Entry) string {
	var b strings.Builder
	b.WriteString(msgLeaderboardHeader)
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s - %d\n", e.Rank, e.Handle, e.Referrals)
	}
	return b.String()
}

func totalText(n int) string {
	return fmt.Sprintf("👥 Total Users: %d", n)
}
