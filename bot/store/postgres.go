package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	userColumns = "id, step, tasks_completed, social_handle, wallet_address, referrals, earned, referred_by, joined_at"

	uniqueViolation = "23505"
)

var constraintFields = map[string]Field{
	"users_social_handle_key":  FieldSocialHandle,
	"users_wallet_address_key": FieldWalletAddress,
}

// PostgresStore keeps user records in the users table created by the embedded migrations.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads a single record by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	var rec UserRecord
	err := s.db.GetContext(ctx, &rec, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &rec, nil
}

// Create inserts rec; an existing id is left untouched and reported as not created.
func (s *PostgresStore) Create(ctx context.Context, rec UserRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("store: empty id")
	}
	if err := rec.CheckStep(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, string(rec.Step), rec.TasksCompleted, rec.SocialHandle, rec.WalletAddress,
		rec.Referrals, rec.Earned, rec.ReferredBy, rec.JoinedAt,
	)
	if err != nil {
		return false, translateError(fmt.Sprintf("create user %s", rec.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user %s: rows affected: %w", rec.ID, err)
	}
	return n == 1, nil
}

// MergeSet issues a single UPDATE; counters are incremented in SQL so concurrent
// credits to the same row never lose updates.
func (s *PostgresStore) MergeSet(ctx context.Context, id string, p Patch) (*UserRecord, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Empty() && p.ExpectStep == nil {
		return s.Get(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if p.Step != nil {
		add("step = $%d", string(*p.Step))
	}
	if p.TasksCompleted != nil {
		add("tasks_completed = $%d", *p.TasksCompleted)
	}
	if p.SocialHandle != nil {
		add("social_handle = $%d", *p.SocialHandle)
	}
	if p.WalletAddress != nil {
		add("wallet_address = $%d", *p.WalletAddress)
	}
	if p.ReferralsDelta != 0 {
		add("referrals = referrals + $%d", p.ReferralsDelta)
	}
	if !p.EarnedDelta.IsZero() {
		add("earned = earned + $%d", p.EarnedDelta)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if p.ExpectStep != nil {
		args = append(args, string(*p.ExpectStep))
		where += fmt.Sprintf(" AND step = $%d", len(args))
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE " + where + " RETURNING " + userColumns

	var rec UserRecord
	err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(fmt.Sprintf("update user %s", id), err)
	}
	// Nothing matched: either the row is missing or the step guard failed.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStepConflict
}

// FindOneByField returns the record holding value in a unique column.
func (s *PostgresStore) FindOneByField(ctx context.Context, f Field, value string) (*UserRecord, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	var rec UserRecord
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + string(f) + ` = $1 LIMIT 1`
	if err := s.db.GetContext(ctx, &rec, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by %s: %w", f, err)
	}
	return &rec, nil
}

// ListAll returns all records ordered by join time.
func (s *PostgresStore) ListAll(ctx context.Context) ([]UserRecord, error) {
	var out []UserRecord
	if err := s.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY joined_at, id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if f, ok := constraintFields[pqErr.Constraint]; ok {
			return &DuplicateError{Field: f}
		}
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
