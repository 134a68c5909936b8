package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/core/logger"
)

const ledgerComponent = "service.ledger"

// Ledger credits referrers. Each credit is one atomic increment on the
// referrer's record; it never rewrites the record as a whole.
type Ledger struct {
	store  store.UserStore
	reward decimal.Decimal
}

// NewLedger builds a ledger paying reward per successful referral.
func NewLedger(st store.UserStore, reward decimal.Decimal) *Ledger {
	return &Ledger{store: st, reward: reward}
}

// Reward returns the configured referral reward.
func (l *Ledger) Reward() decimal.Decimal { return l.reward }

// Credit adds one referral and the referral reward to referrerID.
// A missing referrer is not an error; credited is false in that case.
func (l *Ledger) Credit(ctx context.Context, referrerID string) (bool, error) {
	rec, err := l.store.MergeSet(ctx, referrerID, store.Patch{
		ReferralsDelta: 1,
		EarnedDelta:    l.reward,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug(ctx, ledgerComponent, "referral.skip",
				slog.String("referrer_id", referrerID),
				slog.String("reason", "referrer_missing"),
			)
			return false, nil
		}
		return false, fmt.Errorf("credit referrer %s: %w", referrerID, err)
	}
	logger.Info(ctx, ledgerComponent, "referral.credit",
		slog.String("status", "ok"),
		slog.String("referrer_id", referrerID),
		slog.Int64("referrals", rec.Referrals),
		slog.String("earned", rec.Earned.String()),
	)
	return true, nil
}
