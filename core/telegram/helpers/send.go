package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	"github.com/m3rciful/airdropbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the send helpers. A nil
// dispatcher makes every helper send synchronously.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

func firstMarkup(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) > 0 {
		return markup[0]
	}
	return nil
}

// SendText sends text without a parse mode.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}

// SendHTML sends text with ParseMode HTML and an optional markup.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: firstMarkup(markup),
	})
}

// EditOrSendHTML edits the message behind a callback, or sends a new one.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: firstMarkup(markup),
	})
}

// SendDocument uploads data as a file named name.
func SendDocument(c tele.Context, name string, data []byte, caption string) error {
	return sendAsync(c, "send.document", "sendDocument", func() error {
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(data)),
			FileName: name,
			Caption:  caption,
		}
		return c.Send(doc)
	})
}
