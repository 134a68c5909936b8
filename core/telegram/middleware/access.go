package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
)

// AdminOptions decides who counts as an admin and what a rejected caller sees.
type AdminOptions struct {
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(c tele.Context) bool {
	user := c.Sender()
	return user != nil && o.IsAdmin != nil && o.IsAdmin(user.ID)
}

func (o AdminOptions) reject(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var uid int64
	if user := c.Sender(); user != nil {
		uid = user.ID
	}
	logger.Info(ctx, "tg", "access.denied",
		slog.String("status", "reject"),
		slog.Int64("user_id", uid),
	)
	if o.OnReject != nil {
		return o.OnReject(c)
	}
	return nil
}

// WithAdminCheck wraps h so that only admins reach it when adminOnly is set.
// An empty allowlist rejects everyone.
func WithAdminCheck(opts AdminOptions, adminOnly bool, h tele.HandlerFunc) tele.HandlerFunc {
	if !adminOnly {
		return h
	}
	return func(c tele.Context) error {
		if !opts.allowed(c) {
			return opts.reject(c)
		}
		return h(c)
	}
}

// AdminOnlyMiddleware applies the admin check to a whole handler group.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return WithAdminCheck(opts, true, next)
	}
}
