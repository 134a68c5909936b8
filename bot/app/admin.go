package app

import (
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/bot/report"
	"github.com/m3rciful/airdropbot/core/logger"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
	"github.com/m3rciful/airdropbot/core/telegram/keyboard"
)

var dashboardButtons = []keyboard.InlineBtn{
	{Text: "👥 View All Users", Unique: cbAdminUsers},
	{Text: "📂 Download Users (CSV)", Unique: cbAdminCSV},
	{Text: "📂 Download Users (JSON)", Unique: cbAdminJSON},
	{Text: "🔢 Total Users", Unique: cbAdminTotal},
	{Text: "🏆 Referral Leaderboard", Unique: cbAdminLeaderboard},
	{Text: "👛 Wallets Only", Unique: cbAdminWallets},
	{Text: "🐦 X Usernames Only", Unique: cbAdminHandles},
}

func (a *App) handleAdmin(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminDashboard, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtons(dashboardButtons),
	})
}

// reportFailed renders a report error: an empty collection gets the
// supplied notice, anything else is logged and gets the retry prompt.
func (a *App) reportFailed(c tele.Context, op string, err error, empty string) error {
	if errors.Is(err, report.ErrNoRecords) {
		return tghelpers.SendText(c, empty)
	}
	logger.Error(tghelpers.BuildContext(c), "service.reports", "report.failed",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	return tghelpers.SendText(c, msgRetryLater)
}

func (a *App) handleAdminUsers(c tele.Context) error {
	pages, err := a.reports.ListingPages(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminUsers, err, msgNoUsers)
	}
	for _, page := range pages {
		if err := tghelpers.SendText(c, page); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) handleAdminCSV(c tele.Context) error {
	data, err := a.reports.CSV(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminCSV, err, msgNoUsers)
	}
	return tghelpers.SendDocument(c, "users.csv", data, "")
}

func (a *App) handleAdminJSON(c tele.Context) error {
	data, err := a.reports.JSON(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminJSON, err, msgNoUsers)
	}
	return tghelpers.SendDocument(c, "users.json", data, "")
}

func (a *App) handleAdminTotal(c tele.Context) error {
	n, err := a.reports.Total(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminTotal, err, msgNoUsers)
	}
	return tghelpers.SendText(c, totalText(n))
}

func (a *App) handleAdminLeaderboard(c tele.Context) error {
	entries, err := a.reports.Leaderboard(tghelpers.BuildContext(c), leaderboardSize)
	if err != nil {
		return a.reportFailed(c, cbAdminLeaderboard, err, msgNoUsers)
	}
	return tghelpers.SendText(c, leaderboardText(entries))
}

func (a *App) handleAdminWallets(c tele.Context) error {
	wallets, err := a.reports.Wallets(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminWallets, err, msgNoWallets)
	}
	return tghelpers.SendDocument(c, "wallets.txt", []byte(strings.Join(wallets, "\n")), "")
}

func (a *App) handleAdminHandles(c tele.Context) error {
	handles, err := a.reports.Handles(tghelpers.BuildContext(c))
	if err != nil {
		return a.reportFailed(c, cbAdminHandles, err, msgNoHandles)
	}
	return tghelpers.SendDocument(c, "usernames.txt", []byte(strings.Join(handles, "\n")), "")
}
