package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/airdropbot/bot/store"
)

func TestLedgerCredit(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Create(context.Background(), store.NewRecord("1", time.Now()))
	require.NoError(t, err)

	l := NewLedger(st, decimal.RequireFromString("0.25"))
	for i := 0; i < 3; i++ {
		ok, err := l.Credit(context.Background(), "1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	rec := mustGet(t, st, "1")
	assert.Equal(t, int64(3), rec.Referrals)
	assert.True(t, rec.Earned.Equal(decimal.RequireFromString("0.75")), rec.Earned.String())
	assert.Equal(t, store.StepStart, rec.Step, "credit must not touch other fields")
}

func TestLedgerCreditMissingReferrer(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), decimal.RequireFromString("0.5"))
	ok, err := l.Credit(context.Background(), "404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerCreditStoreFailure(t *testing.T) {
	boom := errors.New("down")
	st := &faultyStore{
		MemoryStore: store.NewMemoryStore(),
		mergeErr:    func(string, store.Patch) error { return boom },
	}
	l := NewLedger(st, decimal.RequireFromString("0.5"))
	ok, err := l.Credit(context.Background(), "1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestLedgerCreditPreservesConcurrentTransition(t *testing.T) {
	st := store.NewMemoryStore()
	m := newMachine(st, newVerifier(true))
	send(t, m, "1", FirstContact, "")
	send(t, m, "1", TaskClaim, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			_, _ = m.Ledger().Credit(context.Background(), "1")
		}
	}()
	send(t, m, "1", TextSubmit, "@alice")
	<-done

	rec := mustGet(t, st, "1")
	assert.Equal(t, int64(25), rec.Referrals)
	assert.Equal(t, store.StepAwaitingWallet, rec.Step)
	require.NotNil(t, rec.SocialHandle)
	assert.Equal(t, "@alice", *rec.SocialHandle)
}
