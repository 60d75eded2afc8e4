/*
store.go - Persistence contracts consumed by the engine

PURPOSE:
  Defines the interface between the rule engine and the database. The
  engine never builds queries; it calls these methods inside a single
  caller-supplied transaction.

KEY INTERFACES:
  EntryStore:    Time entry reads and writes (no delete)
  StatusCatalog: Status master data (action flags, transition targets)
  UserStore:     Employee profiles (expected daily hours cache)
  TxStore:       Transactional wrapper, one transaction per operation

UNIQUENESS CONTRACT:
  Implementations MUST reject a second entry for the same (user, work
  date) with ErrDuplicateEntry. The engine pre-checks, but two concurrent
  generation runs can both pass the pre-check; only the storage-level
  constraint makes the losing insert fail.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - timesheet/store/memory.go: In-memory for tests
*/
package timesheet

import (
	"context"

	"github.com/shopspring/decimal"
)

// EntryStore persists time entries. There is no Delete: entries are never removed.
type EntryStore interface {
	// GetByID returns nil, nil when the entry does not exist.
	GetByID(ctx context.Context, id EntryID) (*TimeEntry, error)

	// GetByIDs returns the entries that exist; missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []EntryID) ([]TimeEntry, error)

	// EntryByUserAndDate returns the entry of that day other than excludeID, or nil.
	EntryByUserAndDate(ctx context.Context, userID UserID, date Date, excludeID EntryID) (*TimeEntry, error)

	// EntriesInRange returns the entries in [from, to] ordered by work date.
	EntriesInRange(ctx context.Context, userID UserID, from, to Date) ([]TimeEntry, error)

	// EntriesForUser returns the whole history of a user ordered by work date.
	EntriesForUser(ctx context.Context, userID UserID) ([]TimeEntry, error)

	// ExistingDatesInRange returns the occupied days in [from, to].
	ExistingDatesInRange(ctx context.Context, userID UserID, from, to Date) (DateSet, error)

	// Insert writes one new entry. Returns ErrDuplicateEntry on a per-day clash.
	Insert(ctx context.Context, entry TimeEntry) error

	// InsertBatch writes all entries or none.
	InsertBatch(ctx context.Context, entries []TimeEntry) error

	// Update replaces every field of an existing entry.
	Update(ctx context.Context, entry TimeEntry) error

	// UpdateStatusBatch sets the status of all given entries.
	UpdateStatusBatch(ctx context.Context, ids []EntryID, status Status) error
}

// StatusCatalog serves status master data.
type StatusCatalog interface {
	// StatusMapByCodes returns the metadata of the requested codes that exist.
	StatusMapByCodes(ctx context.Context, codes []Status) (map[Status]StatusMeta, error)
}

// UserStore persists employee profiles.
type UserStore interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id UserID) (*User, error)
	SaveUser(ctx context.Context, user User) error
	ListUsers(ctx context.Context) ([]User, error)
	UpdateExpectedDailyHours(ctx context.Context, id UserID, hours decimal.Decimal) error
}

// Store is the full persistence contract of the engine.
type Store interface {
	EntryStore
	StatusCatalog
	UserStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
