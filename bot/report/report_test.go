package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/airdropbot/bot/store"
)

type staticLister struct {
	users []store.UserRecord
	err   error
}

func (s staticLister) ListAll(context.Context) ([]store.UserRecord, error) {
	return append([]store.UserRecord(nil), s.users...), s.err
}

func user(id string, handle, wallet *string, referrals int64, earned string) store.UserRecord {
	rec := store.NewRecord(id, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	rec.SocialHandle = handle
	rec.WalletAddress = wallet
	rec.Referrals = referrals
	rec.Earned = decimal.RequireFromString(earned)
	return rec
}

func sample() staticLister {
	return staticLister{users: []store.UserRecord{
		user("1", store.StringPtr("@alice"), store.StringPtr("0xA"), 2, "2"),
		user("2", nil, nil, 0, "0"),
		user("3", store.StringPtr("@carol"), nil, 5, "2.5"),
		user("4", store.StringPtr("@dave,jr"), store.StringPtr("0xD"), 2, "1"),
	}}
}

func TestEmptyCollection(t *testing.T) {
	g := New(staticLister{})
	ctx := context.Background()

	total, err := g.Total(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = g.ListingPages(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)
	_, err = g.CSV(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)
	_, err = g.JSON(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)
	_, err = g.Leaderboard(ctx, 10)
	assert.ErrorIs(t, err, ErrNoRecords)
	_, err = g.Wallets(ctx)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestStoreErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(staticLister{err: boom}).CSV(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestListingPages(t *testing.T) {
	pages, err := New(sample()).ListingPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, ListingHeader+
		"• @alice | 0xA\n"+
		"• N/A | N/A\n"+
		"• @carol | N/A\n"+
		"• @dave,jr | 0xD\n", pages[0])
}

func TestListingPagesSplit(t *testing.T) {
	var users []store.UserRecord
	for i := 0; i < 300; i++ {
		id := strconv.Itoa(i)
		users = append(users, user(id, store.StringPtr("@user"+id), store.StringPtr("0x"+strings.Repeat("f", 20)+id), 0, "0"))
	}
	pages, err := New(staticLister{users: users}).ListingPages(context.Background())
	require.NoError(t, err)
	require.Greater(t, len(pages), 1)

	lines := 0
	for _, p := range pages {
		assert.LessOrEqual(t, len(p), PageLimit+64)
		lines += strings.Count(p, "• ")
	}
	assert.Equal(t, 300, lines)
	assert.True(t, strings.HasPrefix(pages[0], ListingHeader))
}

func TestCSV(t *testing.T) {
	out, err := New(sample()).CSV(context.Background())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"1", "@alice", "0xA", "2", "2"}, rows[1])
	assert.Equal(t, []string{"2", "", "", "0", "0"}, rows[2])
	assert.Equal(t, []string{"3", "@carol", "", "5", "2.5"}, rows[3])
	assert.Equal(t, "@dave,jr", rows[4][1])
}

func TestJSON(t *testing.T) {
	out, err := New(sample()).JSON(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  {")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 4)
	assert.Equal(t, "1", decoded[0]["id"])
	assert.Equal(t, "@alice", decoded[0]["socialHandle"])
	assert.Equal(t, "start", decoded[1]["step"])
	assert.NotContains(t, decoded[1], "walletAddress")
}

func TestLeaderboard(t *testing.T) {
	st := sample()
	g := New(st)

	top, err := g.Leaderboard(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, Entry{Rank: 1, UserID: "3", Handle: "@carol", Referrals: 5}, top[0])
	// 1 and 4 tie on referrals; store order decides.
	assert.Equal(t, "1", top[1].UserID)
	assert.Equal(t, "4", top[2].UserID)

	all, err := g.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, Placeholder, all[3].Handle)

	assert.Equal(t, "1", st.users[0].ID, "leaderboard must not reorder the source")
}

func TestWalletsAndHandles(t *testing.T) {
	g := New(sample())

	wallets, err := g.Wallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xA", "0xD"}, wallets)

	handles, err := g.Handles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"@alice", "@carol", "@dave,jr"}, handles)

	_, err = New(staticLister{users: []store.UserRecord{user("9", nil, nil, 0, "0")}}).Handles(context.Background())
	assert.ErrorIs(t, err, ErrNoRecords)
}
