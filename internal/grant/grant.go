// Package grant issues and verifies signed permission to generate a token.
// A grant is an HS256 JWT binding a token number to the guild and gender it
// may be rendered with.
package grant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"traitforge/internal/pkg/clock"
)

const issuerName = "traitforge"

// ErrInvalidGrant covers every verification failure. The wrapped message
// names the failing check.
var ErrInvalidGrant = errors.New("invalid grant")

// Claims captures validated grant claims.
type Claims struct {
	ID        string
	TokenID   int64
	Guild     string
	Gender    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type grantClaims struct {
	jwt.RegisteredClaims
	TokenID int64  `json:"token"`
	Guild   string `json:"guild"`
	Gender  string `json:"gender"`
}

// Issuer signs grants.
type Issuer struct {
	key   []byte
	clock clock.Clock
}

// NewIssuer returns an issuer for secret. A nil clock uses wall time.
func NewIssuer(secret string, clk clock.Clock) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("grant secret is required")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Issuer{key: []byte(secret), clock: clk}, nil
}

// Issue signs a grant for tokenID with the given guild and gender, valid for ttl.
func (i *Issuer) Issue(tokenID int64, guild, gender string, ttl time.Duration) (string, error) {
	if tokenID < 0 {
		return "", fmt.Errorf("negative token id %d", tokenID)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("grant ttl must be positive, got %s", ttl)
	}
	now := i.clock.Now().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenID: tokenID,
		Guild:   strings.TrimSpace(guild),
		Gender:  strings.TrimSpace(gender),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Verifier checks grants against a request.
type Verifier struct {
	key   []byte
	clock clock.Clock
}

// NewVerifier returns a verifier for secret. A nil clock uses wall time.
func NewVerifier(secret string, clk clock.Clock) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("grant secret is required")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{key: []byte(secret), clock: clk}, nil
}

// Verify validates the signature and expiry of grant and checks that it
// covers tokenID, guild and gender. Guild and gender compare case-insensitively.
func (v *Verifier) Verify(grant string, tokenID int64, guild, gender string) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, fmt.Errorf("%w: grant is required", ErrInvalidGrant)
	}
	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if parsed.Issuer != issuerName {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidGrant)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp is required", ErrInvalidGrant)
	}
	now := v.clock.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, fmt.Errorf("%w: grant is expired", ErrInvalidGrant)
	}
	if parsed.TokenID != tokenID {
		return Claims{}, fmt.Errorf("%w: token mismatch", ErrInvalidGrant)
	}
	if !strings.EqualFold(parsed.Guild, strings.TrimSpace(guild)) {
		return Claims{}, fmt.Errorf("%w: guild mismatch", ErrInvalidGrant)
	}
	if !strings.EqualFold(parsed.Gender, strings.TrimSpace(gender)) {
		return Claims{}, fmt.Errorf("%w: gender mismatch", ErrInvalidGrant)
	}
	claims := Claims{
		ID:        parsed.ID,
		TokenID:   parsed.TokenID,
		Guild:     parsed.Guild,
		Gender:    parsed.Gender,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature is invalid", ErrInvalidGrant)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: alg is invalid", ErrInvalidGrant)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
}
