package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenNoneYieldsNilStore(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	if err != nil || s != nil {
		t.Fatalf("expected nil store without error, got %v %v", s, err)
	}
	if err := Close(s); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}

func TestOpenMemoryAndUnknown(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Driver: "memory"})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("expected memory driver: %v", err)
	}
	if _, err := Open(ctx, Options{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "l.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		if err := Close(s); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()
	if s.Driver() != DriverSQLite {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	if _, err := s.Put(ctx, Record{TokenID: 3, Digest: "d"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, Record{TokenID: 3, Digest: "d"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}
