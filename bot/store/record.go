// Package store persists one onboarding record per Telegram user.
package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Step is the onboarding stage of a user record.
type Step string

const (
	// StepStart means the user has not passed membership verification yet.
	StepStart Step = "start"
	// StepAwaitingSocialHandle waits for the user's social handle.
	StepAwaitingSocialHandle Step = "awaiting_social_handle"
	// StepAwaitingWallet waits for the user's wallet address.
	StepAwaitingWallet Step = "awaiting_wallet"
	// StepDone is terminal.
	StepDone Step = "done"
)

var stepOrder = map[Step]int{
	StepStart:                0,
	StepAwaitingSocialHandle: 1,
	StepAwaitingWallet:       2,
	StepDone:                 3,
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	_, ok := stepOrder[s]
	return ok
}

// Next returns the step that follows s. Terminal and unknown steps have no successor.
func (s Step) Next() (Step, bool) {
	switch s {
	case StepStart:
		return StepAwaitingSocialHandle, true
	case StepAwaitingSocialHandle:
		return StepAwaitingWallet, true
	case StepAwaitingWallet:
		return StepDone, true
	}
	return "", false
}

// Before reports whether s comes strictly earlier than other.
func (s Step) Before(other Step) bool {
	a, okA := stepOrder[s]
	b, okB := stepOrder[other]
	return okA && okB && a < b
}

func (s Step) String() string { return string(s) }

// Field names a uniquely indexed record field.
type Field string

const (
	FieldSocialHandle  Field = "social_handle"
	FieldWalletAddress Field = "wallet_address"
)

// Valid reports whether f can be used for lookups.
func (f Field) Valid() bool {
	return f == FieldSocialHandle || f == FieldWalletAddress
}

// UserRecord is the persisted onboarding state of a single user.
type UserRecord struct {
	ID             string          `db:"id" json:"id"`
	Step           Step            `db:"step" json:"step"`
	TasksCompleted bool            `db:"tasks_completed" json:"tasksCompleted"`
	SocialHandle   *string         `db:"social_handle" json:"socialHandle,omitempty"`
	WalletAddress  *string         `db:"wallet_address" json:"walletAddress,omitempty"`
	Referrals      int64           `db:"referrals" json:"referrals"`
	Earned         decimal.Decimal `db:"earned" json:"earned"`
	ReferredBy     *string         `db:"referred_by" json:"referredBy,omitempty"`
	JoinedAt       time.Time       `db:"joined_at" json:"joinedAt"`
}

// NewRecord returns a fresh record at StepStart.
func NewRecord(id string, joinedAt time.Time) UserRecord {
	return UserRecord{
		ID:       id,
		Step:     StepStart,
		Earned:   decimal.Zero,
		JoinedAt: joinedAt.UTC(),
	}
}

// Value returns the record's value for a unique field, or "" when unset.
func (r *UserRecord) Value(f Field) string {
	var p *string
	switch f {
	case FieldSocialHandle:
		p = r.SocialHandle
	case FieldWalletAddress:
		p = r.WalletAddress
	}
	if p == nil {
		return ""
	}
	return *p
}

// Clone returns a deep copy so callers never share pointers with the store.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.SocialHandle = cloneString(r.SocialHandle)
	out.WalletAddress = cloneString(r.WalletAddress)
	out.ReferredBy = cloneString(r.ReferredBy)
	return &out
}

// CheckStep returns ErrCorruptStep when the stored step is outside the enum.
func (r *UserRecord) CheckStep() error {
	if !r.Step.Valid() {
		return fmt.Errorf("%w: user %s has step %q", ErrCorruptStep, r.ID, r.Step)
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched; deltas are added
// to the stored value rather than overwriting it.
type Patch struct {
	Step           *Step
	TasksCompleted *bool
	SocialHandle   *string
	WalletAddress  *string

	ReferralsDelta int64
	EarnedDelta    decimal.Decimal

	// ExpectStep makes the write conditional on the currently stored step.
	ExpectStep *Step
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Step == nil && p.TasksCompleted == nil && p.SocialHandle == nil &&
		p.WalletAddress == nil && p.ReferralsDelta == 0 && p.EarnedDelta.IsZero()
}

func (p Patch) validate() error {
	if p.ReferralsDelta < 0 || p.EarnedDelta.IsNegative() {
		return ErrNegativeDelta
	}
	if p.Step != nil && !p.Step.Valid() {
		return fmt.Errorf("%w: %q", ErrCorruptStep, *p.Step)
	}
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StepPtr is a small helper for building patches.
func StepPtr(s Step) *Step { return &s }

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string { return &s }

// BoolPtr is a small helper for building patches.
func BoolPtr(b bool) *bool { return &b }
