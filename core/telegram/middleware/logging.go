package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	"github.com/m3rciful/airdropbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
)

const dedupWindow = 10 * time.Second

// seenUpdates remembers update ids for a short window so an update routed
// through several middleware chains is only logged once.
type seenUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

var received = &seenUpdates{seen: make(map[int]time.Time)}

func (s *seenUpdates) firstTime(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ts := range s.seen {
		if now.Sub(ts) > dedupWindow {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware assigns the request id, stores the logging context on c
// and logs one update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		chat, user := c.Chat(), c.Sender()
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.TG)
		tghelpers.StoreContext(c, ctx)

		if !logger.ShouldSampleDebug() || !received.firstTime(upd.ID, time.Now()) {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			if payload != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
			}
		case upd.Message != nil:
			if text := c.Text(); text != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
			}
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
