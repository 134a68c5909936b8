package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// UserResolver maps a Telegram user id to a domain user.
type UserResolver[T any] interface {
	GetUserByTelegramID(ctx context.Context, tgID int64) (T, error)
}

// CurrentUser resolves the sender of c through svc.
func CurrentUser[T any](c tele.Context, svc UserResolver[T]) (T, error) {
	var zero T
	sender := c.Sender()
	if svc == nil || sender == nil {
		return zero, nil
	}
	return svc.GetUserByTelegramID(BuildContext(c), sender.ID)
}
