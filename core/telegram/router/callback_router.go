package router

import (
	"log/slog"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/airdropbot/core/telegram"
	"github.com/m3rciful/airdropbot/core/telegram/callbacks"
	"github.com/m3rciful/airdropbot/core/telegram/middleware"
)

// CallbackOptions customises callback routing.
type CallbackOptions struct {
	// NotFound handles unknown keys when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// answerTracker records whether a handler answered the callback query, so
// the router can answer it afterwards without overriding an alert.
type answerTracker struct {
	tele.Context
	answered *atomic.Bool
}

func (a answerTracker) Respond(resp ...*tele.CallbackResponse) error {
	a.answered.Store(true)
	return a.Context.Respond(resp...)
}

func (a answerTracker) RespondText(text string) error {
	return a.Respond(&tele.CallbackResponse{Text: text})
}

func (a answerTracker) RespondAlert(text string) error {
	return a.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// CallbackRoute dispatches every callback query through reg by unique key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.ParseCallbackData(cb)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}

		tracked := answerTracker{Context: c, answered: new(atomic.Bool)}
		err := run(c, "callback."+handlerName(key), start, "", func() error {
			if h == nil {
				return nil
			}
			return h(tracked)
		}, extras...)
		if !tracked.answered.Load() {
			// Telegram keeps the button spinner until the query is answered.
			_ = c.Respond()
		}
		return err
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
