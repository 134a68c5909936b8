// Package onboarding implements the user onboarding state machine and the
// referral ledger of the airdrop bot.
//
// A user moves strictly forward through start, awaiting_social_handle,
// awaiting_wallet and done. Every transition is a single read-decide-write on
// the user's record, guarded by the step the decision was based on.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/core/logger"
)

const (
	component = "service.onboarding"

	// MaxSubmissionLength bounds handle and wallet submissions, in runes.
	MaxSubmissionLength = 128
)

// Verifier confirms the membership tasks. Failures must surface as false.
type Verifier interface {
	Verify(ctx context.Context, userID string) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, userID string) bool

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, userID string) bool { return f(ctx, userID) }

// Rewards holds the configured payout amounts.
type Rewards struct {
	Referral decimal.Decimal
	Signup   decimal.Decimal
}

// Machine is the onboarding state machine.
type Machine struct {
	store    store.UserStore
	verifier Verifier
	ledger   *Ledger
	signup   decimal.Decimal
	now      func() time.Time
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for joinedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// New wires a machine over st and v.
func New(st store.UserStore, v Verifier, rewards Rewards, opts ...Option) *Machine {
	m := &Machine{
		store:    st,
		verifier: v,
		ledger:   NewLedger(st, rewards.Referral),
		signup:   rewards.Signup,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ledger exposes the referral ledger used by the machine.
func (m *Machine) Ledger() *Ledger { return m.ledger }

// Lookup returns the user's record without changing it.
func (m *Machine) Lookup(ctx context.Context, userID string) (*store.UserRecord, error) {
	return m.store.Get(ctx, userID)
}

// GetUserByTelegramID resolves a numeric Telegram id to its record.
func (m *Machine) GetUserByTelegramID(ctx context.Context, tgID int64) (*store.UserRecord, error) {
	return m.store.Get(ctx, strconv.FormatInt(tgID, 10))
}

// Handle applies ev and returns the directive to render. A non-nil error
// means a store write failed; the result then carries DirectiveRetryLater and
// the primary record is unchanged.
func (m *Machine) Handle(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	var (
		res Result
		err error
	)
	switch ev.Kind {
	case FirstContact:
		res, err = m.firstContact(ctx, ev.UserID, ev.Payload)
	case TaskClaim:
		res, err = m.claimTasks(ctx, ev.UserID)
	case TextSubmit:
		res, err = m.submitText(ctx, ev.UserID, ev.Payload)
	default:
		return Result{}, fmt.Errorf("onboarding: unknown event kind %d", ev.Kind)
	}

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("op", ev.Kind.String()),
		slog.String("user", ev.UserID),
		slog.String("directive", string(res.Directive)),
		slog.Duration("duration", logger.Took(start)),
	}
	if res.Record != nil {
		attrs = append(attrs, slog.String("step", res.Record.Step.String()))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, component, "onboarding.transition", attrs...)
	} else {
		logger.Debug(ctx, component, "onboarding.transition", attrs...)
	}
	return res, err
}

func (m *Machine) firstContact(ctx context.Context, userID, payload string) (Result, error) {
	rec, err := m.load(ctx, userID)
	switch {
	case err == nil:
		return result(promptFor(rec), rec), nil
	case !errors.Is(err, store.ErrNotFound):
		return result(DirectiveRetryLater, nil), err
	}

	fresh := store.NewRecord(userID, m.now())
	referrer := m.resolveReferrer(ctx, userID, payload)
	if referrer != "" {
		fresh.ReferredBy = store.StringPtr(referrer)
	}

	created, err := m.store.Create(ctx, fresh)
	if err != nil {
		return result(DirectiveRetryLater, nil), fmt.Errorf("create user %s: %w", userID, err)
	}
	if !created {
		// Lost a race with a concurrent /start from the same user; the
		// winner owns the referral credit.
		rec, err := m.load(ctx, userID)
		if err != nil {
			return result(DirectiveRetryLater, nil), err
		}
		return result(promptFor(rec), rec), nil
	}

	logger.Info(ctx, component, "user.created",
		slog.String("status", "ok"),
		slog.String("user", userID),
		slog.String("referrer_id", referrer),
	)

	if referrer != "" {
		if _, err := m.ledger.Credit(ctx, referrer); err != nil {
			logger.Error(ctx, component, "referral.credit.lost",
				slog.String("status", "fail"),
				slog.String("user", userID),
				slog.String("referrer_id", referrer),
				slog.String("err", err.Error()),
			)
		}
	}
	return result(DirectiveShowTaskPrompt, &fresh), nil
}

// resolveReferrer returns the canonical referrer id when payload names an
// existing user other than userID, and "" otherwise.
func (m *Machine) resolveReferrer(ctx context.Context, userID, payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ""
	}
	n, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || n <= 0 {
		logger.Debug(ctx, component, "referral.ignored",
			slog.String("user", userID),
			slog.String("reason", "unparsable"),
		)
		return ""
	}
	id := strconv.FormatInt(n, 10)
	if id == userID {
		logger.Debug(ctx, component, "referral.ignored",
			slog.String("user", userID),
			slog.String("reason", "self"),
		)
		return ""
	}
	if _, err := m.store.Get(ctx, id); err != nil {
		reason := "referrer_missing"
		if !errors.Is(err, store.ErrNotFound) {
			reason = "lookup_failed"
		}
		logger.Debug(ctx, component, "referral.ignored",
			slog.String("user", userID),
			slog.String("referrer_id", id),
			slog.String("reason", reason),
		)
		return ""
	}
	return id
}

func (m *Machine) claimTasks(ctx context.Context, userID string) (Result, error) {
	rec, err := m.load(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result(DirectiveNone, nil), nil
		}
		return result(DirectiveRetryLater, nil), err
	}
	if rec.Step != store.StepStart {
		return result(DirectiveNone, rec), nil
	}

	if !m.verifier.Verify(ctx, userID) {
		return result(DirectiveTasksNotVerified, rec), nil
	}

	next, err := m.store.MergeSet(ctx, userID, store.Patch{
		Step:       store.StepPtr(store.StepAwaitingSocialHandle),
		ExpectStep: store.StepPtr(store.StepStart),
	})
	if err != nil {
		return m.writeFailed(ctx, rec, err)
	}
	return result(DirectiveAskSocialHandle, next), nil
}

func (m *Machine) submitText(ctx context.Context, userID, text string) (Result, error) {
	rec, err := m.load(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result(DirectiveNone, nil), nil
		}
		return result(DirectiveRetryLater, nil), err
	}

	switch rec.Step {
	case store.StepAwaitingSocialHandle:
		return m.claimUnique(ctx, rec, store.FieldSocialHandle, text, store.Patch{
			Step: store.StepPtr(store.StepAwaitingWallet),
		})
	case store.StepAwaitingWallet:
		return m.claimUnique(ctx, rec, store.FieldWalletAddress, text, store.Patch{
			Step:           store.StepPtr(store.StepDone),
			TasksCompleted: store.BoolPtr(true),
			EarnedDelta:    m.signup,
		})
	default:
		return result(DirectiveNone, rec), nil
	}
}

// claimUnique stores value in field f and applies extra, provided no other
// record holds value. Handle and wallet collection both go through here.
func (m *Machine) claimUnique(ctx context.Context, rec *store.UserRecord, f store.Field, raw string, extra store.Patch) (Result, error) {
	value := strings.TrimSpace(raw)
	if value == "" || utf8.RuneCountInString(value) > MaxSubmissionLength {
		return result(DirectiveInvalidInput, rec), nil
	}

	reject := DirectiveRejectDuplicateHandle
	if f == store.FieldWalletAddress {
		reject = DirectiveRejectDuplicateWallet
	}

	owner, err := m.store.FindOneByField(ctx, f, value)
	switch {
	case err == nil && owner.ID != rec.ID:
		logger.Info(ctx, component, "unique.reject",
			slog.String("user", rec.ID),
			slog.String("field", string(f)),
		)
		return result(reject, rec), nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return result(DirectiveRetryLater, rec), fmt.Errorf("lookup %s: %w", f, err)
	}

	patch := extra
	patch.ExpectStep = store.StepPtr(rec.Step)
	switch f {
	case store.FieldSocialHandle:
		patch.SocialHandle = store.StringPtr(value)
	case store.FieldWalletAddress:
		patch.WalletAddress = store.StringPtr(value)
	}

	next, err := m.store.MergeSet(ctx, rec.ID, patch)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Another user claimed the value between the lookup and the write.
			return result(reject, rec), nil
		}
		return m.writeFailed(ctx, rec, err)
	}

	if f == store.FieldWalletAddress {
		return result(DirectiveSignupComplete, next), nil
	}
	return result(DirectiveAskWallet, next), nil
}

func (m *Machine) writeFailed(ctx context.Context, rec *store.UserRecord, err error) (Result, error) {
	if errors.Is(err, store.ErrStepConflict) {
		// A concurrent event already moved the record; this one is stale.
		logger.Info(ctx, component, "transition.stale",
			slog.String("status", "skip"),
			slog.String("user", rec.ID),
			slog.String("step", rec.Step.String()),
		)
		return result(DirectiveNone, rec), nil
	}
	return result(DirectiveRetryLater, rec), fmt.Errorf("update user %s: %w", rec.ID, err)
}

func (m *Machine) load(ctx context.Context, userID string) (*store.UserRecord, error) {
	rec, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := rec.CheckStep(); err != nil {
		return nil, err
	}
	return rec, nil
}

func promptFor(rec *store.UserRecord) Directive {
	switch rec.Step {
	case store.StepAwaitingSocialHandle:
		return DirectiveAskSocialHandle
	case store.StepAwaitingWallet:
		return DirectiveAskWallet
	case store.StepDone:
		return DirectiveShowStats
	default:
		return DirectiveShowTaskPrompt
	}
}
