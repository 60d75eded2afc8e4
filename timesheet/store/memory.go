// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type dayKey struct {
	UserID timesheet.UserID
	Date   timesheet.Date
}

type refKey struct {
	Kind timesheet.ReferenceKind
	Code string
}

// state is the unlocked data set. Memory guards it with a mutex; inside
// WithTx the callback works on it directly while the lock is held.
type state struct {
	entries  map[timesheet.EntryID]timesheet.TimeEntry
	byDay    map[dayKey]timesheet.EntryID
	users    map[timesheet.UserID]timesheet.User
	statuses map[timesheet.Status]timesheet.StatusMeta
	refs     map[refKey]bool
}

func newState() *state {
	return &state{
		entries:  make(map[timesheet.EntryID]timesheet.TimeEntry),
		byDay:    make(map[dayKey]timesheet.EntryID),
		users:    make(map[timesheet.UserID]timesheet.User),
		statuses: timesheet.DefaultStatusCatalog(),
		refs:     make(map[refKey]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		entries:  make(map[timesheet.EntryID]timesheet.TimeEntry, len(s.entries)),
		byDay:    make(map[dayKey]timesheet.EntryID, len(s.byDay)),
		users:    make(map[timesheet.UserID]timesheet.User, len(s.users)),
		statuses: make(map[timesheet.Status]timesheet.StatusMeta, len(s.statuses)),
		refs:     make(map[refKey]bool, len(s.refs)),
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.byDay {
		c.byDay[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	return c
}

// --- entries ---

func (s *state) GetByID(_ context.Context, id timesheet.EntryID) (*timesheet.TimeEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *state) GetByIDs(_ context.Context, ids []timesheet.EntryID) ([]timesheet.TimeEntry, error) {
	var out []timesheet.TimeEntry
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *state) EntryByUserAndDate(_ context.Context, userID timesheet.UserID, date timesheet.Date, excludeID timesheet.EntryID) (*timesheet.TimeEntry, error) {
	id, ok := s.byDay[dayKey{UserID: userID, Date: date}]
	if !ok || id == excludeID {
		return nil, nil
	}
	e := s.entries[id]
	return &e, nil
}

func (s *state) EntriesInRange(_ context.Context, userID timesheet.UserID, from, to timesheet.Date) ([]timesheet.TimeEntry, error) {
	period := timesheet.Period{Start: from, End: to}
	return s.filter(userID, period.Contains), nil
}

func (s *state) EntriesForUser(_ context.Context, userID timesheet.UserID) ([]timesheet.TimeEntry, error) {
	return s.filter(userID, func(timesheet.Date) bool { return true }), nil
}

func (s *state) filter(userID timesheet.UserID, keep func(timesheet.Date) bool) []timesheet.TimeEntry {
	var out []timesheet.TimeEntry
	for _, e := range s.entries {
		if e.UserID == userID && keep(e.WorkDate) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out
}

func (s *state) ExistingDatesInRange(_ context.Context, userID timesheet.UserID, from, to timesheet.Date) (timesheet.DateSet, error) {
	period := timesheet.Period{Start: from, End: to}
	set := timesheet.DateSet{}
	for k := range s.byDay {
		if k.UserID == userID && period.Contains(k.Date) {
			set.Add(k.Date)
		}
	}
	return set, nil
}

func (s *state) Insert(ctx context.Context, entry timesheet.TimeEntry) error {
	return s.InsertBatch(ctx, []timesheet.TimeEntry{entry})
}

// InsertBatch checks every row before writing any.
func (s *state) InsertBatch(_ context.Context, entries []timesheet.TimeEntry) error {
	seen := make(map[dayKey]bool, len(entries))
	for _, e := range entries {
		k := dayKey{UserID: e.UserID, Date: e.WorkDate}
		if _, taken := s.byDay[k]; taken || seen[k] {
			return timesheet.ErrDuplicateEntry
		}
		seen[k] = true
	}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.byDay[dayKey{UserID: e.UserID, Date: e.WorkDate}] = e.ID
	}
	return nil
}

func (s *state) Update(_ context.Context, entry timesheet.TimeEntry) error {
	old, ok := s.entries[entry.ID]
	if !ok {
		return &timesheet.NotFoundError{Kind: "time entry", IDs: []string{string(entry.ID)}}
	}
	k := dayKey{UserID: entry.UserID, Date: entry.WorkDate}
	if id, taken := s.byDay[k]; taken && id != entry.ID {
		return timesheet.ErrDuplicateEntry
	}
	delete(s.byDay, dayKey{UserID: old.UserID, Date: old.WorkDate})
	s.byDay[k] = entry.ID
	s.entries[entry.ID] = entry
	return nil
}

func (s *state) UpdateStatusBatch(_ context.Context, ids []timesheet.EntryID, status timesheet.Status) error {
	for _, id := range ids {
		e, ok := s.entries[id]
		if !ok {
			return &timesheet.NotFoundError{Kind: "time entry", IDs: []string{string(id)}}
		}
		e.Status = status
		s.entries[id] = e
	}
	return nil
}

// --- statuses ---

func (s *state) StatusMapByCodes(_ context.Context, codes []timesheet.Status) (map[timesheet.Status]timesheet.StatusMeta, error) {
	out := make(map[timesheet.Status]timesheet.StatusMeta, len(codes))
	for _, c := range codes {
		if meta, ok := s.statuses[c]; ok {
			out[c] = meta
		}
	}
	return out, nil
}

// --- users ---

func (s *state) GetUser(_ context.Context, id timesheet.UserID) (*timesheet.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *state) SaveUser(_ context.Context, user timesheet.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *state) ListUsers(_ context.Context) ([]timesheet.User, error) {
	out := make([]timesheet.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) UpdateExpectedDailyHours(_ context.Context, id timesheet.UserID, hours decimal.Decimal) error {
	u, ok := s.users[id]
	if !ok {
		return &timesheet.NotFoundError{Kind: "user", IDs: []string{string(id)}}
	}
	u.ExpectedDailyHours = hours
	s.users[id] = u
	return nil
}

// --- references ---

func (s *state) ReferenceExists(_ context.Context, kind timesheet.ReferenceKind, code string) (bool, error) {
	return s.refs[refKey{Kind: kind, Code: code}], nil
}

func (s *state) ReferenceCheckers() timesheet.ReferenceCheckers {
	return timesheet.CheckersFrom(s.ReferenceExists)
}

// =============================================================================
// LOCKED FACADE
// =============================================================================

// Memory is a thread-safe in-memory timesheet.TxStore.
type Memory struct {
	mu sync.RWMutex
	s  *state
}

// NewMemory returns an empty store seeded with the canonical status catalog.
func NewMemory() *Memory {
	return &Memory{s: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(timesheet.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	if err := fn(m.s); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

// SetStatuses replaces the status master data.
func (m *Memory) SetStatuses(catalog map[timesheet.Status]timesheet.StatusMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.statuses = make(map[timesheet.Status]timesheet.StatusMeta, len(catalog))
	for k, v := range catalog {
		m.s.statuses[k] = v
	}
}

// AddReference registers an existing reference code.
func (m *Memory) AddReference(kind timesheet.ReferenceKind, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.refs[refKey{Kind: kind, Code: code}] = true
}

func (m *Memory) GetByID(ctx context.Context, id timesheet.EntryID) (*timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetByID(ctx, id)
}

func (m *Memory) GetByIDs(ctx context.Context, ids []timesheet.EntryID) ([]timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetByIDs(ctx, ids)
}

func (m *Memory) EntryByUserAndDate(ctx context.Context, userID timesheet.UserID, date timesheet.Date, excludeID timesheet.EntryID) (*timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.EntryByUserAndDate(ctx, userID, date, excludeID)
}

func (m *Memory) EntriesInRange(ctx context.Context, userID timesheet.UserID, from, to timesheet.Date) ([]timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.EntriesInRange(ctx, userID, from, to)
}

func (m *Memory) EntriesForUser(ctx context.Context, userID timesheet.UserID) ([]timesheet.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.EntriesForUser(ctx, userID)
}

func (m *Memory) ExistingDatesInRange(ctx context.Context, userID timesheet.UserID, from, to timesheet.Date) (timesheet.DateSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ExistingDatesInRange(ctx, userID, from, to)
}

func (m *Memory) Insert(ctx context.Context, entry timesheet.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Insert(ctx, entry)
}

func (m *Memory) InsertBatch(ctx context.Context, entries []timesheet.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertBatch(ctx, entries)
}

func (m *Memory) Update(ctx context.Context, entry timesheet.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Update(ctx, entry)
}

func (m *Memory) UpdateStatusBatch(ctx context.Context, ids []timesheet.EntryID, status timesheet.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateStatusBatch(ctx, ids, status)
}

func (m *Memory) StatusMapByCodes(ctx context.Context, codes []timesheet.Status) (map[timesheet.Status]timesheet.StatusMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.StatusMapByCodes(ctx, codes)
}

func (m *Memory) GetUser(ctx context.Context, id timesheet.UserID) (*timesheet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetUser(ctx, id)
}

func (m *Memory) SaveUser(ctx context.Context, user timesheet.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SaveUser(ctx, user)
}

func (m *Memory) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListUsers(ctx)
}

func (m *Memory) UpdateExpectedDailyHours(ctx context.Context, id timesheet.UserID, hours decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateExpectedDailyHours(ctx, id, hours)
}

func (m *Memory) ReferenceExists(ctx context.Context, kind timesheet.ReferenceKind, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ReferenceExists(ctx, kind, code)
}

func (m *Memory) ReferenceCheckers() timesheet.ReferenceCheckers {
	return timesheet.CheckersFrom(m.ReferenceExists)
}

var (
	_ timesheet.TxStore           = (*Memory)(nil)
	_ timesheet.Store             = (*state)(nil)
	_ timesheet.ReferenceProvider = (*state)(nil)
)
