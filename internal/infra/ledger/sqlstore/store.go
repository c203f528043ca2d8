// Package sqlstore implements the ledger over database/sql. The sqlite and
// postgres backends differ only in driver and placeholder syntax.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"traitforge/internal/ledger/core"
)

// Dialect captures the per-database differences.
type Dialect struct {
	Driver core.Driver
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLite binds with '?'.
var SQLite = Dialect{Driver: core.DriverSQLite, Placeholder: func(int) string { return "?" }}

// Postgres binds with '$n'.
var Postgres = Dialect{Driver: core.DriverPostgres, Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}

const schema = `CREATE TABLE IF NOT EXISTS generations (
	token_id BIGINT PRIMARY KEY,
	id TEXT NOT NULL,
	guild TEXT NOT NULL,
	gender TEXT NOT NULL,
	gender_drawn BOOLEAN NOT NULL DEFAULT FALSE,
	seed BIGINT NOT NULL,
	layers TEXT NOT NULL,
	attributes TEXT NOT NULL,
	digest TEXT NOT NULL,
	placeholder BOOLEAN NOT NULL,
	created_at TEXT NOT NULL
)`

const columns = "token_id, id, guild, gender, gender_drawn, seed, layers, attributes, digest, placeholder, created_at"

// Store is a ledger over an open *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps db and ensures the generations table exists.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure generations table: %w", err)
	}
	return &Store{db: db, dialect: dialect, now: time.Now}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Driver() core.Driver { return s.dialect.Driver }

func (s *Store) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (s *Store) Put(ctx context.Context, rec core.Record) (core.Record, error) {
	rec, err := core.Prepare(rec, s.now())
	if err != nil {
		return core.Record{}, err
	}
	layers, err := json.Marshal(nonNil(rec.Layers))
	if err != nil {
		return core.Record{}, fmt.Errorf("encode layers: %w", err)
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return core.Record{}, fmt.Errorf("encode attributes: %w", err)
	}
	query := "INSERT INTO generations (" + columns + ") VALUES (" + s.placeholders(11) + ") ON CONFLICT (token_id) DO NOTHING"
	res, err := s.db.ExecContext(ctx, query,
		rec.TokenID, rec.ID, rec.Guild, rec.Gender, rec.GenderDrawn, int64(rec.Seed),
		string(layers), string(attrs), rec.Digest, rec.Placeholder,
		rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.Record{}, fmt.Errorf("insert generation %d: %w", rec.TokenID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Record{}, fmt.Errorf("insert generation %d: %w", rec.TokenID, err)
	}
	if n == 0 {
		return core.Record{}, fmt.Errorf("token %d: %w", rec.TokenID, core.ErrExists)
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, tokenID int64) (core.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM generations WHERE token_id = "+s.dialect.Placeholder(1), tokenID)
	if err != nil {
		return core.Record{}, fmt.Errorf("select generation %d: %w", tokenID, err)
	}
	recs, err := scanAll(rows)
	if err != nil {
		return core.Record{}, err
	}
	if len(recs) == 0 {
		return core.Record{}, fmt.Errorf("token %d: %w", tokenID, core.ErrNotFound)
	}
	return recs[0], nil
}

func (s *Store) List(ctx context.Context) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM generations ORDER BY token_id")
	if err != nil {
		return nil, fmt.Errorf("select generations: %w", err)
	}
	recs, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].TokenID < recs[j].TokenID })
	return recs, nil
}

func scanAll(rows *sql.Rows) ([]core.Record, error) {
	defer func() { _ = rows.Close() }()
	var out []core.Record
	for rows.Next() {
		var (
			rec           core.Record
			seed          int64
			layers, attrs string
			created       string
		)
		if err := rows.Scan(&rec.TokenID, &rec.ID, &rec.Guild, &rec.Gender, &rec.GenderDrawn, &seed, &layers, &attrs, &rec.Digest, &rec.Placeholder, &created); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		rec.Seed = uint32(seed)
		if err := json.Unmarshal([]byte(layers), &rec.Layers); err != nil {
			return nil, fmt.Errorf("decode layers of %d: %w", rec.TokenID, err)
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %d: %w", rec.TokenID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("decode created_at of %d: %w", rec.TokenID, err)
		}
		rec.CreatedAt = ts.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
