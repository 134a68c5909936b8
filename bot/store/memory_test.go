package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)
	assert.True(t, created)

	again := NewRecord("1", time.Now())
	again.Referrals = 99
	created, err = s.Create(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	rec, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Referrals)
	assert.Equal(t, StepStart, rec.Step)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreMergeSetIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)

	half := decimal.RequireFromString("0.5")
	for i := 0; i < 3; i++ {
		_, err := s.MergeSet(ctx, "1", Patch{ReferralsDelta: 1, EarnedDelta: half})
		require.NoError(t, err)
	}
	rec, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Referrals)
	assert.True(t, rec.Earned.Equal(decimal.RequireFromString("1.5")), rec.Earned.String())
}

func TestMemoryStoreMergeSetRejectsNegativeDelta(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)

	_, err = s.MergeSet(ctx, "1", Patch{ReferralsDelta: -1})
	assert.ErrorIs(t, err, ErrNegativeDelta)
	_, err = s.MergeSet(ctx, "1", Patch{EarnedDelta: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrNegativeDelta)
}

func TestMemoryStoreMergeSetExpectStep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)

	_, err = s.MergeSet(ctx, "1", Patch{Step: StepPtr(StepAwaitingWallet), ExpectStep: StepPtr(StepAwaitingSocialHandle)})
	assert.ErrorIs(t, err, ErrStepConflict)

	rec, err := s.MergeSet(ctx, "1", Patch{Step: StepPtr(StepAwaitingSocialHandle), ExpectStep: StepPtr(StepStart)})
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingSocialHandle, rec.Step)

	_, err = s.MergeSet(ctx, "missing", Patch{Step: StepPtr(StepDone)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUniqueFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"1", "2"} {
		_, err := s.Create(ctx, NewRecord(id, time.Now()))
		require.NoError(t, err)
	}

	_, err := s.MergeSet(ctx, "1", Patch{SocialHandle: StringPtr("@alice"), WalletAddress: StringPtr("0xABC")})
	require.NoError(t, err)

	_, err = s.MergeSet(ctx, "2", Patch{SocialHandle: StringPtr("@alice")})
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, FieldSocialHandle, dup.Field)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.MergeSet(ctx, "2", Patch{WalletAddress: StringPtr("0xABC")})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Re-setting the owner's own value is not a collision.
	_, err = s.MergeSet(ctx, "1", Patch{WalletAddress: StringPtr("0xABC")})
	assert.NoError(t, err)

	owner, err := s.FindOneByField(ctx, FieldWalletAddress, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "1", owner.ID)

	other, err := s.Get(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, other.SocialHandle)
	assert.Nil(t, other.WalletAddress)

	_, err = s.FindOneByField(ctx, FieldWalletAddress, "0xDEF")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindOneByField(ctx, Field("email"), "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)
	_, err = s.MergeSet(ctx, "1", Patch{SocialHandle: StringPtr("@alice")})
	require.NoError(t, err)

	rec, err := s.Get(ctx, "1")
	require.NoError(t, err)
	*rec.SocialHandle = "@mallory"
	rec.Referrals = 100

	fresh, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "@alice", *fresh.SocialHandle)
	assert.Equal(t, int64(0), fresh.Referrals)
}

func TestMemoryStoreListAllKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"30", "10", "20"} {
		_, err := s.Create(ctx, NewRecord(id, time.Now()))
		require.NoError(t, err)
	}
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"30", "10", "20"}, ids)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, NewRecord("1", time.Now()))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.MergeSet(ctx, "1", Patch{ReferralsDelta: 1, EarnedDelta: decimal.RequireFromString("0.1")})
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), rec.Referrals)
	assert.True(t, rec.Earned.Equal(decimal.RequireFromString("5")), rec.Earned.String())
}

func TestStepOrdering(t *testing.T) {
	next, ok := StepStart.Next()
	require.True(t, ok)
	assert.Equal(t, StepAwaitingSocialHandle, next)

	_, ok = StepDone.Next()
	assert.False(t, ok)

	assert.True(t, StepAwaitingSocialHandle.Before(StepAwaitingWallet))
	assert.False(t, StepDone.Before(StepStart))
	assert.False(t, Step("twitter").Valid())
}
