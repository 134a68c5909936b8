package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process UserStore for development runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*UserRecord
	order   []string
	unique  map[Field]map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*UserRecord),
		unique: map[Field]map[string]string{
			FieldSocialHandle:  {},
			FieldWalletAddress: {},
		},
	}
}

// Get returns a copy of the stored record.
func (m *MemoryStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Create inserts rec if id is not taken.
func (m *MemoryStore) Create(ctx context.Context, rec UserRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if rec.ID == "" {
		return false, fmt.Errorf("store: empty id")
	}
	if err := rec.CheckStep(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return false, nil
	}
	for _, f := range []Field{FieldSocialHandle, FieldWalletAddress} {
		if v := rec.Value(f); v != "" {
			if _, taken := m.unique[f][v]; taken {
				return false, &DuplicateError{Field: f}
			}
		}
	}
	m.records[rec.ID] = rec.Clone()
	m.order = append(m.order, rec.ID)
	for _, f := range []Field{FieldSocialHandle, FieldWalletAddress} {
		if v := rec.Value(f); v != "" {
			m.unique[f][v] = rec.ID
		}
	}
	return true, nil
}

// MergeSet applies p under the write lock, so every patch to a record is serialized.
func (m *MemoryStore) MergeSet(ctx context.Context, id string, p Patch) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.ExpectStep != nil && cur.Step != *p.ExpectStep {
		return nil, ErrStepConflict
	}
	if err := m.checkUnique(id, FieldSocialHandle, p.SocialHandle); err != nil {
		return nil, err
	}
	if err := m.checkUnique(id, FieldWalletAddress, p.WalletAddress); err != nil {
		return nil, err
	}

	next := cur.Clone()
	if p.Step != nil {
		next.Step = *p.Step
	}
	if p.TasksCompleted != nil {
		next.TasksCompleted = *p.TasksCompleted
	}
	if p.SocialHandle != nil {
		next.SocialHandle = cloneString(p.SocialHandle)
	}
	if p.WalletAddress != nil {
		next.WalletAddress = cloneString(p.WalletAddress)
	}
	next.Referrals += p.ReferralsDelta
	next.Earned = next.Earned.Add(p.EarnedDelta)

	m.reindex(id, FieldSocialHandle, cur.SocialHandle, next.SocialHandle)
	m.reindex(id, FieldWalletAddress, cur.WalletAddress, next.WalletAddress)
	m.records[id] = next
	return next.Clone(), nil
}

// FindOneByField looks up the owner of a unique value.
func (m *MemoryStore) FindOneByField(ctx context.Context, f Field, value string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.unique[f][value]
	if !ok {
		return nil, ErrNotFound
	}
	return m.records[owner].Clone(), nil
}

// ListAll returns copies of all records in insertion order.
func (m *MemoryStore) ListAll(ctx context.Context) ([]UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]UserRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.records[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) checkUnique(id string, f Field, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	if owner, taken := m.unique[f][*v]; taken && owner != id {
		return &DuplicateError{Field: f}
	}
	return nil
}

func (m *MemoryStore) reindex(id string, f Field, prev, next *string) {
	if prev != nil && *prev != "" && (next == nil || *next != *prev) {
		delete(m.unique[f], *prev)
	}
	if next != nil && *next != "" {
		m.unique[f][*next] = id
	}
}
