// Package core defines the generation ledger contract shared by the ledger
// facade and its backends.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Driver identifies a ledger backend.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

var (
	// ErrNotFound indicates no record exists for a token.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrExists indicates the token was already minted.
	ErrExists = errors.New("ledger: token already recorded")
)

// Attribute mirrors one exported {trait_type, value} pair.
type Attribute struct {
	Category string `json:"trait_type"`
	Value    string `json:"value"`
}

// Record is the permanent description of one minted token. Digest is the
// hex SHA-256 of the PNG that was stored, so a later preview with the same
// inputs can be checked against it. GenderDrawn records that the request
// carried no gender and Gender was drawn from the seed stream.
type Record struct {
	ID          string      `json:"id"`
	TokenID     int64       `json:"token_id"`
	Guild       string      `json:"guild"`
	Gender      string      `json:"gender"`
	GenderDrawn bool        `json:"gender_drawn"`
	Seed        uint32      `json:"seed"`
	Layers      []string    `json:"layers"`
	Attributes  []Attribute `json:"attributes"`
	Digest      string      `json:"digest"`
	Placeholder bool        `json:"placeholder"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists records. Put is create-only per token.
type Store interface {
	Put(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, tokenID int64) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Driver() Driver
}

// Prepare validates rec and fills its ID and creation time when unset.
func Prepare(rec Record, now time.Time) (Record, error) {
	if rec.TokenID < 0 {
		return Record{}, fmt.Errorf("ledger: negative token id %d", rec.TokenID)
	}
	if rec.Digest == "" {
		return Record{}, errors.New("ledger: digest required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
