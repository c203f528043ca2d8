// Package random derives generation seeds and produces the deterministic
// float stream every selection draws from.
//
// The mixing function is mulberry32. It is part of the collection's identity:
// previously minted tokens are only reproducible while it stays bit-for-bit
// unchanged.
package random

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"traitforge/internal/pkg/clock"
)

// ErrInvalidSeed is returned for seed strings that are neither integers nor hex.
var ErrInvalidSeed = errors.New("invalid seed")

type seedKind int

const (
	seedUnset seedKind = iota
	seedNumeric
	seedHex
)

// Seed is the caller-supplied seed input: a number, a hex string, or nothing.
type Seed struct {
	kind  seedKind
	value uint32
}

// NumericSeed wraps a numeric seed. Negative values wrap modulo 2^32.
func NumericSeed(n int64) Seed { return Seed{kind: seedNumeric, value: uint32(n)} }

// HexSeed builds a seed from the first 8 hex characters of s (an optional 0x
// prefix is ignored).
func HexSeed(s string) (Seed, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) > 8 {
		h = h[:8]
	}
	if h == "" {
		return Seed{}, fmt.Errorf("%w: %q", ErrInvalidSeed, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %q is not hex", ErrInvalidSeed, s)
	}
	return Seed{kind: seedHex, value: uint32(v)}, nil
}

// ParseSeed interprets textual input: empty is unset, a base-10 integer is
// numeric, anything else must be hex. A hash prefix made only of digits is
// therefore read as decimal; callers holding hex text use HexSeed.
func ParseSeed(s string) (Seed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Seed{}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumericSeed(n), nil
	}
	return HexSeed(s)
}

// IsSet reports whether a seed was supplied.
func (s Seed) IsSet() bool { return s.kind != seedUnset }

func (s Seed) String() string {
	switch s.kind {
	case seedNumeric:
		return strconv.FormatUint(uint64(s.value), 10)
	case seedHex:
		return fmt.Sprintf("0x%08x", s.value)
	}
	return "unset"
}

// DeriveSeed computes (tokenID + seed) mod 2^32. An unset seed uses the
// clock's wall time in milliseconds, so the result is not reproducible.
func DeriveSeed(tokenID int64, seed Seed, clk clock.Clock) uint32 {
	n := seed.value
	if !seed.IsSet() {
		if clk == nil {
			clk = clock.New()
		}
		n = uint32(clk.Now().UnixMilli())
	}
	return uint32(tokenID) + n
}

// Stream is a mulberry32 generator. It is not safe for concurrent use; one
// generation owns one stream.
type Stream struct {
	state uint32
	draws int
}

// NewStream returns a stream positioned at seed.
func NewStream(seed uint32) *Stream { return &Stream{state: seed} }

// Float64 returns the next value in [0,1).
func (s *Stream) Float64() float64 {
	s.draws++
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / (1 << 32)
}

// Draws reports how many values have been taken from the stream.
func (s *Stream) Draws() int { return s.draws }
