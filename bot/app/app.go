// Package app is the Telegram front end of the airdrop bot: it turns updates
// into onboarding events, renders the resulting directives and serves the
// admin dashboard.
package app

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/bot/config"
	"github.com/m3rciful/airdropbot/bot/onboarding"
	"github.com/m3rciful/airdropbot/bot/report"
	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/bot/verify"
	"github.com/m3rciful/airdropbot/core/bootstrap"
	"github.com/m3rciful/airdropbot/core/logger"
	coretelegram "github.com/m3rciful/airdropbot/core/telegram"
	"github.com/m3rciful/airdropbot/core/telegram/sender"
)

const component = "app"

// App wires the store, the onboarding machine and the report generator to
// the Telegram transport.
type App struct {
	cfg     *config.Config
	infra   *bootstrap.Result
	store   store.UserStore
	machine *onboarding.Machine
	reports *report.Generator
	texts   texts

	verifier    *lazyVerifier
	botUsername atomic.Value
}

// Option customises an App.
type Option func(*App)

// WithVerifier replaces the membership verifier bound at startup.
func WithVerifier(v onboarding.Verifier) Option {
	return func(a *App) { a.verifier.set(v) }
}

// WithBotUsername fixes the username used in referral links.
func WithBotUsername(name string) Option {
	return func(a *App) { a.setBotUsername(name) }
}

// New builds an App over st.
func New(cfg *config.Config, st store.UserStore, opts ...Option) *App {
	a := &App{
		cfg:      cfg,
		store:    st,
		reports:  report.New(st),
		texts:    texts{campaign: cfg.Campaign},
		verifier: &lazyVerifier{},
	}
	a.machine = onboarding.New(st, a.verifier, onboarding.Rewards{
		Referral: cfg.Campaign.Referral(),
		Signup:   cfg.Campaign.Signup(),
	})
	a.setBotUsername(cfg.Campaign.BotUsername)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Bootstrap brings up logging and storage for cfg and returns the App.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.UsesDatabase() {
		opts.Database = &cfg.Database
		opts.Migrations = store.Migrations
		opts.MigrationsDir = store.MigrationsDir
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	var st store.UserStore = store.NewMemoryStore()
	if infra.DB != nil {
		st = store.NewPostgresStore(infra.DB)
	}
	logger.Info(ctx, component, "app.storage",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Storage.Driver),
	)

	a := New(cfg, st)
	a.infra = infra
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.infra.Close()
}

// Machine exposes the onboarding machine.
func (a *App) Machine() *onboarding.Machine { return a.machine }

func (a *App) setBotUsername(name string) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name != "" {
		a.botUsername.Store(name)
	}
}

// BotUsername returns the username used in referral links.
func (a *App) BotUsername() string {
	name, _ := a.botUsername.Load().(string)
	return name
}

// bindBot attaches the live bot: membership checks go through its API and
// its username backs referral links unless configured.
func (a *App) bindBot(bot *tele.Bot) {
	if bot == nil {
		return
	}
	if !a.verifier.bound() {
		a.verifier.set(verify.New(bot, a.cfg.Campaign.Chats(), a.cfg.Campaign.VerifyTimeout()))
	}
	if a.BotUsername() == "" && bot.Me != nil {
		a.setBotUsername(bot.Me.Username)
	}
}

// TelegramRunOptions assembles the registry, middlewares and routes.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.registry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:            core,
		Registry:          reg,
		DispatcherOptions: sender.Options{MaxRetries: 2},
		Middlewares:       coretelegram.DefaultMiddlewares(core, a.onRateLimited),
		Routes: func(rt coretelegram.Runtime) []coretelegram.Route {
			a.bindBot(rt.Bot)
			return a.routes(reg)
		},
	}, nil
}

type verifierBox struct{ onboarding.Verifier }

// lazyVerifier lets the machine be built before the bot exists.
type lazyVerifier struct {
	v atomic.Value
}

func (l *lazyVerifier) set(v onboarding.Verifier) {
	if v != nil {
		l.v.Store(verifierBox{v})
	}
}

func (l *lazyVerifier) bound() bool {
	_, ok := l.v.Load().(verifierBox)
	return ok
}

func (l *lazyVerifier) Verify(ctx context.Context, userID string) bool {
	box, ok := l.v.Load().(verifierBox)
	if !ok {
		logger.Error(ctx, "verify", "verify.unbound", slog.String("user", userID))
		return false
	}
	return box.Verify(ctx, userID)
}
