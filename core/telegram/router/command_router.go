package router

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	tg "github.com/m3rciful/airdropbot/core/telegram"
	"github.com/m3rciful/airdropbot/core/telegram/middleware"
)

// CommandRouteOptions configures command wrapping.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes wraps every registered command with admin gating, summary
// logging and panic recovery.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOpts := middleware.AdminOptions{IsAdmin: opts.IsAdmin, OnReject: opts.OnAdminReject}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		inner := def.Handler
		h := func(c tele.Context) error {
			return run(c, handlerName(name), time.Now(), "", func() error { return inner(c) })
		}
		h = middleware.WithAdminCheck(adminOpts, def.AdminOnly, h)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
