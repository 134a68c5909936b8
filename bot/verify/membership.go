// Package verify checks whether a user has joined the campaign's required
// Telegram chats.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
)

const component = "verify"

// DefaultTimeout bounds a whole verification when none is configured.
const DefaultTimeout = 5 * time.Second

// ErrBadChatRef is returned for a chat reference that is neither a numeric id
// nor an @username.
var ErrBadChatRef = errors.New("verify: invalid chat reference")

// ChatMemberAPI is the subset of *tele.Bot the verifier needs.
type ChatMemberAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// ChatRef names a chat either by numeric id or by public @username.
type ChatRef string

// Recipient implements tele.Recipient.
func (r ChatRef) Recipient() string { return string(r) }

// ParseChatRef validates and canonicalises a configured chat reference.
func ParseChatRef(raw string) (ChatRef, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", ErrBadChatRef
	case strings.HasPrefix(raw, "@"):
		if len(raw) < 2 || strings.ContainsAny(raw, " /") {
			return "", fmt.Errorf("%w: %q", ErrBadChatRef, raw)
		}
		return ChatRef(raw), nil
	default:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id == 0 {
			return "", fmt.Errorf("%w: %q", ErrBadChatRef, raw)
		}
		return ChatRef(strconv.FormatInt(id, 10)), nil
	}
}

// MembershipVerifier reports true only when the user is a member of every
// required chat. Errors and timeouts count as not verified.
type MembershipVerifier struct {
	api     ChatMemberAPI
	chats   []ChatRef
	timeout time.Duration
}

// New builds a verifier over chats. A non-positive timeout selects
// DefaultTimeout.
func New(api ChatMemberAPI, chats []ChatRef, timeout time.Duration) *MembershipVerifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MembershipVerifier{
		api:     api,
		chats:   append([]ChatRef(nil), chats...),
		timeout: timeout,
	}
}

// Verify checks userID against every required chat.
func (v *MembershipVerifier) Verify(ctx context.Context, userID string) bool {
	start := time.Now()
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		logger.Warn(ctx, component, "verify.skip",
			slog.String("status", "fail"),
			slog.String("user", userID),
			slog.String("reason", "bad_user_id"),
		)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	user := &tele.User{ID: uid}
	for _, chat := range v.chats {
		ok, reason := v.memberOf(ctx, chat, user)
		if !ok {
			logger.Info(ctx, component, "verify.denied",
				slog.String("status", "skip"),
				slog.String("user", userID),
				slog.String("chat", string(chat)),
				slog.String("reason", reason),
				slog.Duration("duration", logger.Took(start)),
			)
			return false
		}
	}
	logger.Debug(ctx, component, "verify.ok",
		slog.String("status", "ok"),
		slog.String("user", userID),
		slog.Int("count", len(v.chats)),
		slog.Duration("duration", logger.Took(start)),
	)
	return true
}

type memberResult struct {
	member *tele.ChatMember
	err    error
}

// memberOf runs one ChatMemberOf call, giving up when ctx expires. telebot
// calls take no context, so the call runs in its own goroutine.
func (v *MembershipVerifier) memberOf(ctx context.Context, chat ChatRef, user *tele.User) (bool, string) {
	done := make(chan memberResult, 1)
	go func() {
		m, err := v.api.ChatMemberOf(chat, user)
		done <- memberResult{member: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, "timeout"
	case res := <-done:
		if res.err != nil {
			logger.Warn(ctx, component, "verify.error",
				slog.String("status", "fail"),
				slog.String("chat", string(chat)),
				slog.String("err", res.err.Error()),
			)
			return false, "api_error"
		}
		if !IsMember(res.member) {
			return false, "not_member"
		}
		return true, ""
	}
}

// IsMember reports whether m describes a current member of the chat.
func IsMember(m *tele.ChatMember) bool {
	if m == nil {
		return false
	}
	switch m.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	case tele.Restricted:
		return m.Member
	}
	return false
}
