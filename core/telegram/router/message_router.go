package router

import (
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/airdropbot/core/telegram"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
	"github.com/m3rciful/airdropbot/core/telegram/middleware"
)

// FSM receives free text from users in the middle of a conversation.
type FSM interface {
	InProgress(ctx context.Context, userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls handling of text nothing else claimed.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// IsAdmin and OnAdminReject gate admin-only commands reached through
	// text, e.g. "/ADMIN", which misses the case-sensitive endpoint.
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// Fallbacks supplies replies for text and documents no route claims.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
}

// FallbackOptions takes the text and document fallbacks from p.
func FallbackOptions(p Fallbacks) TextOptions {
	if p == nil {
		return TextOptions{}
	}
	return TextOptions{
		UnknownText:     p.UnknownText(),
		UnknownDocument: p.UnknownDocument(),
	}
}

// TextRoutes routes plain text to the FSM when the sender is mid
// conversation, slash text to the registry, and the rest to fallbacks.
// Text starting with "/" never reaches the FSM.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inProgress := func(c tele.Context) bool {
		user := c.Sender()
		return fsm != nil && user != nil && fsm.InProgress(tghelpers.BuildContext(c), user.ID)
	}

	adminOpts := middleware.AdminOptions{IsAdmin: opts.IsAdmin, OnReject: opts.OnAdminReject}

	text := func(c tele.Context) error {
		start := time.Now()
		body := strings.TrimSpace(c.Text())
		isCommand := strings.HasPrefix(body, "/")

		if !isCommand && inProgress(c) {
			return run(c, "fsm", start, "", func() error { return fsm.ManagerHandler(c) })
		}
		if isCommand && reg != nil {
			if key, cmd, ok := reg.LookupCommand(body); ok && cmd.Handler != nil {
				h := middleware.WithAdminCheck(adminOpts, cmd.AdminOnly, cmd.Handler)
				return run(c, handlerName(key), start, "", func() error { return h(c) })
			}
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return run(c, "fallback", start, "", func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return run(c, "unknown_text", start, "", func() error { return opts.UnknownText(c) })
		}
		return run(c, "unknown_text", start, "skip", nil)
	}

	document := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return run(c, "unexpected_document", start, "", func() error { return opts.UnknownDocument(c) })
		}
		return run(c, "unexpected_document", start, "skip", nil)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(text))},
		{Endpoint: tele.OnDocument, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(document))},
	}
}
