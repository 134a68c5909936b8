package app

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/bot/onboarding"
	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/core/logger"
	coretelegram "github.com/m3rciful/airdropbot/core/telegram"
	"github.com/m3rciful/airdropbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
	"github.com/m3rciful/airdropbot/core/telegram/keyboard"
	"github.com/m3rciful/airdropbot/core/telegram/middleware"
	"github.com/m3rciful/airdropbot/core/telegram/router"
)

func (a *App) registry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()
	cmds := map[string]commands.Command{
		"/start": {Handler: a.handleStart, Description: "Join the airdrop"},
		"/stats": {Handler: a.handleStats, Description: "Show your referrals and rewards"},
		"/admin": {Handler: a.handleAdmin, Description: "Admin dashboard", AdminOnly: true},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return nil, err
		}
	}

	admin := middleware.AdminOptions{IsAdmin: a.cfg.Telegram.IsAdmin, OnReject: a.rejectCallback}
	cbs := map[string]tele.HandlerFunc{
		cbCompletedTasks:   a.handleCompletedTasks,
		cbAdminUsers:       middleware.WithAdminCheck(admin, true, a.handleAdminUsers),
		cbAdminCSV:         middleware.WithAdminCheck(admin, true, a.handleAdminCSV),
		cbAdminJSON:        middleware.WithAdminCheck(admin, true, a.handleAdminJSON),
		cbAdminTotal:       middleware.WithAdminCheck(admin, true, a.handleAdminTotal),
		cbAdminLeaderboard: middleware.WithAdminCheck(admin, true, a.handleAdminLeaderboard),
		cbAdminWallets:     middleware.WithAdminCheck(admin, true, a.handleAdminWallets),
		cbAdminHandles:     middleware.WithAdminCheck(admin, true, a.handleAdminHandles),
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return nil, err
		}
	}
	reg.SetCallbackNotFound(a.UnknownCallback())
	return reg, nil
}

func (a *App) routes(reg *coretelegram.Registry) []coretelegram.Route {
	rejectAdmin := func(c tele.Context) error {
		return tghelpers.SendText(c, msgNotAuthorized)
	}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       a.cfg.Telegram.IsAdmin,
		OnAdminReject: rejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: a.UnknownCallback()}))

	text := router.FallbackOptions(a)
	text.IsAdmin = a.cfg.Telegram.IsAdmin
	text.OnAdminReject = rejectAdmin
	return append(routes, router.TextRoutes(a, reg, text)...)
}

func senderID(c tele.Context) (string, bool) {
	user := c.Sender()
	if user == nil || user.ID <= 0 {
		return "", false
	}
	return strconv.FormatInt(user.ID, 10), true
}

// dispatch feeds one event to the machine and renders the result.
func (a *App) dispatch(c tele.Context, kind onboarding.EventKind, payload string) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	res, err := a.machine.Handle(ctx, onboarding.Event{UserID: uid, Kind: kind, Payload: payload})
	if err != nil {
		logger.Error(ctx, component, "onboarding.failed",
			slog.String("status", "fail"),
			slog.String("op", kind.String()),
			slog.String("err", err.Error()),
		)
	}
	return a.render(c, kind, res)
}

func (a *App) render(c tele.Context, kind onboarding.EventKind, res onboarding.Result) error {
	switch res.Directive {
	case onboarding.DirectiveNone:
		return nil
	case onboarding.DirectiveShowTaskPrompt:
		return tghelpers.SendHTML(c, a.texts.taskPrompt(c.Sender().FirstName), keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: msgCompletedButton, Unique: cbCompletedTasks},
		}))
	case onboarding.DirectiveShowStats:
		return tghelpers.SendHTML(c, a.texts.stats(res.Record, a.BotUsername()))
	case onboarding.DirectiveTasksNotVerified:
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: msgTasksNotVerified, ShowAlert: true})
		}
		return tghelpers.SendText(c, msgTasksNotVerified)
	case onboarding.DirectiveAskSocialHandle:
		if kind == onboarding.TaskClaim {
			return tghelpers.EditOrSendHTML(c, msgTasksVerified+"\n\n"+msgAskHandle)
		}
		return tghelpers.SendHTML(c, msgAskHandle)
	case onboarding.DirectiveAskWallet:
		if kind == onboarding.TextSubmit {
			return tghelpers.SendHTML(c, msgHandleSaved+"\n\n"+msgAskWallet)
		}
		return tghelpers.SendHTML(c, msgAskWallet)
	case onboarding.DirectiveRejectDuplicateHandle:
		return tghelpers.SendText(c, msgDuplicateHandle)
	case onboarding.DirectiveRejectDuplicateWallet:
		return tghelpers.SendText(c, msgDuplicateWallet)
	case onboarding.DirectiveSignupComplete:
		return tghelpers.SendHTML(c, msgSignupComplete+"\n\n"+a.texts.stats(res.Record, a.BotUsername()))
	case onboarding.DirectiveInvalidInput:
		return tghelpers.SendText(c, msgInvalidInput)
	case onboarding.DirectiveRetryLater:
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: msgRetryLater, ShowAlert: true})
		}
		return tghelpers.SendText(c, msgRetryLater)
	}
	return nil
}

func (a *App) handleStart(c tele.Context) error {
	var payload string
	if msg := c.Message(); msg != nil {
		payload = msg.Payload
	}
	return a.dispatch(c, onboarding.FirstContact, payload)
}

func (a *App) handleCompletedTasks(c tele.Context) error {
	return a.dispatch(c, onboarding.TaskClaim, "")
}

func (a *App) handleStats(c tele.Context) error {
	rec, err := tghelpers.CurrentUser[*store.UserRecord](c, a.machine)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && rec == nil):
		return tghelpers.SendText(c, msgNotStarted)
	case err != nil:
		logger.Error(tghelpers.BuildContext(c), component, "stats.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgRetryLater)
	}
	return tghelpers.SendHTML(c, a.texts.stats(rec, a.BotUsername()))
}

// InProgress reports whether the sender has an onboarding record; the
// machine decides what their text means. Lookup failures count as in
// progress so the machine surfaces them.
func (a *App) InProgress(ctx context.Context, userID int64) bool {
	_, err := a.machine.GetUserByTelegramID(ctx, userID)
	return !errors.Is(err, store.ErrNotFound)
}

// ManagerHandler submits the text of c to the machine.
func (a *App) ManagerHandler(c tele.Context) error {
	return a.dispatch(c, onboarding.TextSubmit, c.Text())
}

// UnknownText answers unknown commands and text from users who never sent
// /start. Users with a record are routed to ManagerHandler instead.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		if strings.HasPrefix(strings.TrimSpace(c.Text()), "/") {
			return tghelpers.SendText(c, msgUnknownCommand)
		}
		return tghelpers.SendText(c, msgNotStarted)
	}
}

// UnknownDocument rejects uploaded files.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnexpectedFile)
	}
}

// UnknownCallback answers presses on stale or foreign buttons.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgUnknownCallback})
	}
}

func (a *App) rejectCallback(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: msgNotAuthorized, ShowAlert: true})
}

func (a *App) onRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgSlowDown})
	}
	return nil
}
