package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/airdropbot/core/logger"
	"github.com/m3rciful/airdropbot/core/telegram/commands"
)

const wireComponent = "tg.wire"

// Registry holds the bot's commands and callback handlers.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks are answered with
// a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func skipRegistration(event string, attrs ...slog.Attr) {
	logger.Warn(context.Background(), wireComponent, event, attrs...)
}

// RegisterCommand adds a command keyed by its slash-prefixed name.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		skipRegistration("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return fmt.Errorf("invalid command %q", name)
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		skipRegistration("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("command %q must start with /", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		skipRegistration("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// commandName extracts "/cmd" from "/cmd@bot payload".
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \n\t"); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '@'); i >= 0 {
		text = text[:i]
	}
	if !strings.HasPrefix(text, "/") {
		text = "/" + text
	}
	return strings.ToLower(text)
}

// LookupCommand resolves text to a registered command by name or alias.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name := commandName(text)
	if name == "/" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// ListCommands returns the menu entries sorted by name. Hidden commands are
// never listed; admin commands only when includeAdmin is set.
func (r *Registry) ListCommands(includeAdmin bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if meta.Hidden || (meta.AdminOnly && !includeAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// RegisterCallback maps a callback unique key to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		skipRegistration("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", h == nil))
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		skipRegistration("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = h
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text nothing else claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for unclaimed text.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// CommandSetter is the part of *tele.Bot used to publish command menus.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the public command menu and, for every admin, a
// private menu that also lists admin commands.
func SetupCommands(bot CommandSetter, reg *Registry, adminIDs []int64) {
	ctx := context.Background()
	if err := bot.SetCommands(reg.ListCommands(false)); err != nil {
		logger.Error(ctx, wireComponent, "commands.set",
			slog.String("status", "fail"),
			slog.String("scope", "default"),
			slog.String("err", err.Error()),
		)
	}
	adminMenu := reg.ListCommands(true)
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		if err := bot.SetCommands(adminMenu, scope); err != nil {
			logger.Warn(ctx, wireComponent, "commands.set",
				slog.String("status", "fail"),
				slog.String("scope", "admin"),
				slog.Int64("chat_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
	logger.Info(ctx, wireComponent, "commands.set",
		slog.String("status", "ok"),
		slog.Int("commands", len(adminMenu)),
		slog.Int("admins", len(adminIDs)),
	)
}
