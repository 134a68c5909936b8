package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/bot/config"
	"github.com/m3rciful/airdropbot/bot/onboarding"
	"github.com/m3rciful/airdropbot/bot/store"
	coretelegram "github.com/m3rciful/airdropbot/core/telegram"
	"github.com/m3rciful/airdropbot/core/telegram/teletest"
)

const adminID = 900

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "1:test"
	cfg.Telegram.AdminIDs = []int64{adminID}
	cfg.Storage.Driver = config.StorageMemory
	cfg.Campaign.Name = "Godyence"
	cfg.Campaign.Tasks = []config.TaskLink{
		{Title: "Join our Telegram group", URL: "https://t.me/airdrop_group"},
		{Title: "Follow us on X", URL: "https://x.com/airdrop"},
	}
	require.NoError(t, config.Normalize(cfg))
	return cfg
}

type harness struct {
	app      *App
	store    store.UserStore
	verified atomic.Bool
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, store.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, st store.UserStore) *harness {
	h := &harness{store: st}
	h.app = New(testConfig(t), st,
		WithBotUsername("@airdrop_bot"),
		WithVerifier(onboarding.VerifierFunc(func(context.Context, string) bool {
			return h.verified.Load()
		})),
	)
	return h
}

func (h *harness) start(t *testing.T, id int64, payload string) *teletest.Context {
	t.Helper()
	text := "/start"
	if payload != "" {
		text += " " + payload
	}
	c := teletest.NewText(teletest.NewUser(id), text)
	require.NoError(t, h.app.handleStart(c))
	return c
}

func (h *harness) claim(t *testing.T, id int64) *teletest.Context {
	t.Helper()
	c := teletest.NewCallback(teletest.NewUser(id), cbCompletedTasks, "")
	require.NoError(t, h.app.handleCompletedTasks(c))
	return c
}

func (h *harness) say(t *testing.T, id int64, text string) *teletest.Context {
	t.Helper()
	c := teletest.NewText(teletest.NewUser(id), text)
	require.NoError(t, h.app.ManagerHandler(c))
	return c
}

func (h *harness) record(t *testing.T, id string) *store.UserRecord {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestStartShowsTaskPrompt(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, 1, "")

	msgs := c.SentMessages()
	require.Len(t, msgs, 1)
	text := msgs[0].Text()
	assert.Contains(t, text, "<b>Godyence</b>")
	assert.Contains(t, text, "$1.00 reward")
	assert.Contains(t, text, `1. Join our Telegram group: <a href="https://t.me/airdrop_group">`)
	assert.Contains(t, text, "2. Follow us on X")

	markup := msgs[0].Markup()
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, msgCompletedButton, markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, cbCompletedTasks, markup.InlineKeyboard[0][0].Unique)

	assert.Equal(t, store.StepStart, h.record(t, "1").Step)
}

func TestStartWithReferralCreditsReferrer(t *testing.T) {
	h := newHarness(t)
	h.start(t, 1, "")
	h.start(t, 2, "1")
	h.start(t, 2, "1")

	ref := h.record(t, "1")
	assert.Equal(t, int64(1), ref.Referrals)
	assert.Equal(t, "0.50", ref.Earned.StringFixed(2))
	require.NotNil(t, h.record(t, "2").ReferredBy)
}

func TestClaimRequiresVerification(t *testing.T) {
	h := newHarness(t)
	h.start(t, 1, "")

	c := h.claim(t, 1)
	resp := c.Responses()
	require.Len(t, resp, 1)
	assert.True(t, resp[0].ShowAlert)
	assert.Equal(t, msgTasksNotVerified, resp[0].Text)
	assert.Empty(t, c.SentMessages())

	h.verified.Store(true)
	c = h.claim(t, 1)
	assert.Equal(t, msgTasksVerified+"\n\n"+msgAskHandle, c.LastText())
	assert.Equal(t, store.StepAwaitingSocialHandle, h.record(t, "1").Step)

	c = h.claim(t, 1)
	assert.Empty(t, c.SentMessages(), "second claim is a no-op")
	assert.Empty(t, c.Responses())
}

func TestFullOnboardingFlow(t *testing.T) {
	h := newHarness(t)
	h.verified.Store(true)
	h.start(t, 1, "")
	h.claim(t, 1)

	c := h.say(t, 1, "  @alice ")
	assert.Equal(t, msgHandleSaved+"\n\n"+msgAskWallet, c.LastText())

	c = h.say(t, 1, "0xabc")
	text := c.LastText()
	assert.True(t, strings.HasPrefix(text, msgSignupComplete))
	assert.Contains(t, text, "✅ Tasks completed: Yes")
	assert.Contains(t, text, "💰 Total earned: $1.00")
	assert.Contains(t, text, "<code>https://t.me/airdrop_bot?start=1</code>")

	rec := h.record(t, "1")
	assert.Equal(t, store.StepDone, rec.Step)
	assert.Equal(t, "@alice", *rec.SocialHandle)

	c = h.say(t, 1, "anything")
	assert.Empty(t, c.SentMessages())

	c = h.start(t, 1, "")
	assert.Contains(t, c.LastText(), "Your current stats")
}

func TestDuplicateSubmissions(t *testing.T) {
	h := newHarness(t)
	h.verified.Store(true)
	for _, id := range []int64{1, 2} {
		h.start(t, id, "")
		h.claim(t, id)
	}
	h.say(t, 1, "@alice")
	c := h.say(t, 2, "@alice")
	assert.Equal(t, msgDuplicateHandle, c.LastText())

	h.say(t, 1, "0xwallet")
	h.say(t, 2, "@bob")
	c = h.say(t, 2, "0xwallet")
	assert.Equal(t, msgDuplicateWallet, c.LastText())

	c = h.say(t, 2, strings.Repeat("w", onboarding.MaxSubmissionLength+1))
	assert.Equal(t, msgInvalidInput, c.LastText())
}

func TestStatsCommand(t *testing.T) {
	h := newHarness(t)
	c := teletest.NewText(teletest.NewUser(5), "/stats")
	require.NoError(t, h.app.handleStats(c))
	assert.Equal(t, msgNotStarted, c.LastText())

	h.start(t, 5, "")
	c = teletest.NewText(teletest.NewUser(5), "/stats")
	require.NoError(t, h.app.handleStats(c))
	assert.Contains(t, c.LastText(), "✅ Tasks completed: No")
	assert.Contains(t, c.LastText(), "👥 Referrals: 0")
}

func TestInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.False(t, h.app.InProgress(ctx, 1))
	h.start(t, 1, "")
	assert.True(t, h.app.InProgress(ctx, 1))
}

func TestUnknownText(t *testing.T) {
	h := newHarness(t)
	c := teletest.NewText(teletest.NewUser(1), "hello")
	require.NoError(t, h.app.UnknownText()(c))
	assert.Equal(t, msgNotStarted, c.LastText())

	c = teletest.NewText(teletest.NewUser(1), "/nope")
	require.NoError(t, h.app.UnknownText()(c))
	assert.Equal(t, msgUnknownCommand, c.LastText())
}

func callback(t *testing.T, reg *coretelegram.Registry, key string, userID int64) *teletest.Context {
	t.Helper()
	h, ok := reg.GetCallback(key)
	require.True(t, ok, key)
	c := teletest.NewCallback(teletest.NewUser(userID), key, "")
	require.NoError(t, h(c))
	return c
}

func TestAdminCallbacks(t *testing.T) {
	h := newHarness(t)
	h.verified.Store(true)
	h.start(t, 1, "")
	h.start(t, 2, "1")
	h.claim(t, 1)
	h.say(t, 1, "@alice")
	h.say(t, 1, "0xabc")

	reg, err := h.app.registry()
	require.NoError(t, err)

	c := callback(t, reg, cbAdminTotal, adminID)
	assert.Equal(t, "👥 Total Users: 2", c.LastText())

	c = callback(t, reg, cbAdminLeaderboard, adminID)
	assert.Equal(t, msgLeaderboardHeader+"1. @alice - 1\n2. N/A - 0\n", c.LastText())

	c = callback(t, reg, cbAdminUsers, adminID)
	assert.Contains(t, c.LastText(), "• @alice | 0xabc")

	for key, name := range map[string]string{
		cbAdminCSV:     "users.csv",
		cbAdminJSON:    "users.json",
		cbAdminWallets: "wallets.txt",
		cbAdminHandles: "usernames.txt",
	} {
		c = callback(t, reg, key, adminID)
		msgs := c.SentMessages()
		require.Len(t, msgs, 1, key)
		doc, ok := msgs[0].What.(*tele.Document)
		require.True(t, ok, key)
		assert.Equal(t, name, doc.FileName)
	}
}

func TestAdminCallbacksRejectOthers(t *testing.T) {
	h := newHarness(t)
	reg, err := h.app.registry()
	require.NoError(t, err)

	c := callback(t, reg, cbAdminCSV, 1)
	assert.Empty(t, c.SentMessages())
	resp := c.Responses()
	require.Len(t, resp, 1)
	assert.Equal(t, msgNotAuthorized, resp[0].Text)
}

func TestAdminEmptyExports(t *testing.T) {
	h := newHarness(t)
	reg, err := h.app.registry()
	require.NoError(t, err)

	assert.Equal(t, msgNoUsers, callback(t, reg, cbAdminCSV, adminID).LastText())
	assert.Equal(t, msgNoWallets, callback(t, reg, cbAdminWallets, adminID).LastText())
	assert.Equal(t, msgNoHandles, callback(t, reg, cbAdminHandles, adminID).LastText())
}

type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) ListAll(context.Context) ([]store.UserRecord, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) Create(context.Context, store.UserRecord) (bool, error) {
	return false, errors.New("connection reset")
}

func TestStoreFailuresAskToRetry(t *testing.T) {
	h := newHarnessWithStore(t, brokenStore{store.NewMemoryStore()})
	c := h.start(t, 1, "")
	assert.Equal(t, msgRetryLater, c.LastText())

	reg, err := h.app.registry()
	require.NoError(t, err)
	assert.Equal(t, msgRetryLater, callback(t, reg, cbAdminTotal, adminID).LastText())
}

func TestAdminCommandTextIgnoresCase(t *testing.T) {
	h := newHarness(t)
	opts, err := h.app.TelegramRunOptions()
	require.NoError(t, err)

	var text tele.HandlerFunc
	for _, r := range opts.Routes(coretelegram.Runtime{}) {
		if r.Endpoint == tele.OnText {
			text = r.Handler
		}
	}
	require.NotNil(t, text)

	c := teletest.NewText(teletest.NewUser(1), "/ADMIN")
	require.NoError(t, text(c))
	assert.Equal(t, msgNotAuthorized, c.LastText())

	c = teletest.NewText(teletest.NewUser(adminID), "/Admin")
	require.NoError(t, text(c))
	assert.Equal(t, msgAdminDashboard, c.LastText())
}

func TestAdminDashboard(t *testing.T) {
	h := newHarness(t)
	c := teletest.NewText(teletest.NewUser(adminID), "/admin")
	require.NoError(t, h.app.handleAdmin(c))
	assert.Equal(t, msgAdminDashboard, c.LastText())
	markup := c.SentMessages()[0].Markup()
	require.NotNil(t, markup)
	assert.Len(t, markup.InlineKeyboard, len(dashboardButtons))
}

func TestTelegramRunOptions(t *testing.T) {
	h := newHarness(t)
	opts, err := h.app.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, h.app.cfg.CoreConfig(), opts.Config)

	_, _, ok := opts.Registry.LookupCommand("/admin")
	assert.True(t, ok)
	assert.Len(t, opts.Registry.ListCallbacks(), 8)
	assert.Len(t, opts.Registry.ListCommands(false), 2)

	routes := opts.Routes(coretelegram.Runtime{})
	assert.Len(t, routes, 3+1+2)
}

func TestLazyVerifierUnbound(t *testing.T) {
	v := &lazyVerifier{}
	assert.False(t, v.bound())
	assert.False(t, v.Verify(context.Background(), "1"))
	v.set(onboarding.VerifierFunc(func(context.Context, string) bool { return true }))
	assert.True(t, v.Verify(context.Background(), "1"))
}
