// Package router binds registry entries to telebot endpoints and logs one
// handler.done summary per handled update.
package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	tghelpers "github.com/m3rciful/airdropbot/core/telegram/helpers"
	"github.com/m3rciful/airdropbot/core/telegram/middleware"
)

// run executes fn under handler name and logs its summary. status overrides
// the ok/fail status derived from the error.
func run(c tele.Context, name string, start time.Time, status string, fn func() error, extras ...slog.Attr) error {
	ctx := tghelpers.WithHandler(c, name)
	var err error
	if fn != nil {
		err = fn()
	}
	if status == "" {
		status = logger.Status(err)
	}
	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	if err != nil {
		logger.Error(ctx, "tg", "handler.done", attrs...)
	} else {
		logger.Info(ctx, "tg", "handler.done", attrs...)
	}
	return err
}

func handlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode names the error for grouping: a Code() string when the error
// offers one, otherwise the concrete type of the innermost error.
func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		if code := strings.TrimSpace(coder.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
