// Package report builds the admin dashboard's read-only views of the user
// collection: paged listings, CSV and JSON exports, the referral leaderboard
// and plain wallet/handle lists.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/airdropbot/bot/store"
	"github.com/m3rciful/airdropbot/core/logger"
	"github.com/m3rciful/airdropbot/core/telegram/format"
)

const component = "service.reports"

const (
	// PageLimit is the size, in bytes, past which a listing page is closed.
	PageLimit = 3500
	// Placeholder stands in for an unset handle or wallet.
	Placeholder = "N/A"
	// ListingHeader opens the first listing page.
	ListingHeader = "👥 Users:\n\n"
)

// CSVHeader is the first row of the CSV export.
var CSVHeader = []string{"telegramId", "socialHandle", "walletAddress", "referrals", "earned"}

// ErrNoRecords is returned by views that have nothing to show.
var ErrNoRecords = errors.New("report: no records")

// Lister is the read capability the generator needs.
type Lister interface {
	ListAll(ctx context.Context) ([]store.UserRecord, error)
}

// Generator renders reports. It never writes to the store.
type Generator struct {
	store Lister
}

// New returns a generator reading from st.
func New(st Lister) *Generator {
	return &Generator{store: st}
}

// Entry is one leaderboard row.
type Entry struct {
	Rank      int
	UserID    string
	Handle    string
	Referrals int64
}

// Users returns every record in store order.
func (g *Generator) Users(ctx context.Context) ([]store.UserRecord, error) {
	start := time.Now()
	users, err := g.store.ListAll(ctx)
	if err != nil {
		logger.Error(ctx, component, "report.list",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("list users: %w", err)
	}
	logger.Debug(ctx, component, "report.list",
		slog.String("status", "ok"),
		slog.Int("count", len(users)),
		slog.Duration("duration", logger.Took(start)),
	)
	return users, nil
}

// Total counts all records, including users who have not finished onboarding.
func (g *Generator) Total(ctx context.Context) (int, error) {
	users, err := g.Users(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// ListingPages renders "handle | wallet" lines, closing a page once it grows
// past PageLimit.
func (g *Generator) ListingPages(ctx context.Context) ([]string, error) {
	users, err := g.nonEmpty(ctx)
	if err != nil {
		return nil, err
	}
	var (
		pages []string
		b     strings.Builder
	)
	b.WriteString(ListingHeader)
	for _, u := range users {
		fmt.Fprintf(&b, "• %s | %s\n",
			format.DerefString(u.SocialHandle, Placeholder),
			format.DerefString(u.WalletAddress, Placeholder),
		)
		if b.Len() > PageLimit {
			pages = append(pages, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		pages = append(pages, b.String())
	}
	return pages, nil
}

// CSV exports every record with CSVHeader columns.
func (g *Generator) CSV(ctx context.Context) ([]byte, error) {
	users, err := g.nonEmpty(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(CSVHeader)
	for _, u := range users {
		_ = w.Write([]string{
			u.ID,
			format.DerefString(u.SocialHandle, ""),
			format.DerefString(u.WalletAddress, ""),
			strconv.FormatInt(u.Referrals, 10),
			u.Earned.String(),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON exports every record as an indented array.
func (g *Generator) JSON(ctx context.Context) ([]byte, error) {
	users, err := g.nonEmpty(ctx)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

// Leaderboard returns the n users with the most referrals. Ties keep store
// order.
func (g *Generator) Leaderboard(ctx context.Context, n int) ([]Entry, error) {
	users, err := g.nonEmpty(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Referrals > users[j].Referrals
	})
	if n > 0 && len(users) > n {
		users = users[:n]
	}
	out := make([]Entry, len(users))
	for i, u := range users {
		out[i] = Entry{
			Rank:      i + 1,
			UserID:    u.ID,
			Handle:    format.DerefString(u.SocialHandle, Placeholder),
			Referrals: u.Referrals,
		}
	}
	return out, nil
}

// Wallets lists every collected wallet address.
func (g *Generator) Wallets(ctx context.Context) ([]string, error) {
	return g.values(ctx, store.FieldWalletAddress)
}

// Handles lists every collected social handle.
func (g *Generator) Handles(ctx context.Context) ([]string, error) {
	return g.values(ctx, store.FieldSocialHandle)
}

func (g *Generator) values(ctx context.Context, f store.Field) ([]string, error) {
	users, err := g.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := range users {
		if v := users[i].Value(f); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	return out, nil
}

func (g *Generator) nonEmpty(ctx context.Context) ([]store.UserRecord, error) {
	users, err := g.Users(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoRecords
	}
	return users, nil
}
