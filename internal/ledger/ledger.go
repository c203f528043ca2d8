// Package ledger re-exports the generation ledger contract and selects a
// backend from config.
package ledger

import (
	"context"
	"fmt"
	"io"

	"traitforge/internal/infra/ledger/memory"
	"traitforge/internal/infra/ledger/postgres"
	"traitforge/internal/infra/ledger/sqlite"
	"traitforge/internal/ledger/core"
)

type (
	// Driver identifies a ledger backend.
	Driver = core.Driver
	// Record describes one minted token.
	Record = core.Record
	// Attribute is a stored {trait_type, value} pair.
	Attribute = core.Attribute
	// Store persists records.
	Store = core.Store
)

const (
	DriverNone     = core.DriverNone
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
)

var (
	// ErrNotFound indicates no record exists for a token.
	ErrNotFound = core.ErrNotFound
	// ErrExists indicates the token was already minted.
	ErrExists = core.ErrExists
)

// Options selects and configures a ledger backend.
//
//	Driver:      none|memory|sqlite|postgres (default none)
//	SQLitePath:  database file when driver=sqlite (default traitforge.db)
//	PostgresDSN: connection string when driver=postgres
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the configured store. DriverNone yields a nil Store and no
// error; minting is then unavailable while previews keep working.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = string(DriverNone)
	}
	switch Driver(driver) {
	case DriverNone:
		return nil, nil
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.New(ctx, opts.SQLitePath)
	case DriverPostgres:
		return postgres.New(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %s", driver)
	}
}

// Close releases backends that hold a connection. It is a no-op for nil
// and in-memory stores.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewMemory returns an in-memory ledger for tests and single-process runs.
func NewMemory() Store { return memory.New() }
