package grant

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"traitforge/internal/pkg/clock"
)

const testSecret = "s3cret-for-tests"

func newPair(t *testing.T) (*Issuer, *Verifier, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	iss, err := NewIssuer(testSecret, clk)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	ver, err := NewVerifier(testSecret, clk)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return iss, ver, clk
}

func TestIssueAndVerify(t *testing.T) {
	iss, ver, _ := newPair(t)
	signed, err := iss.Issue(1, "Trader Guild", "Male", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ver.Verify(signed, 1, "trader guild", "male")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.TokenID != 1 || claims.Guild != "Trader Guild" || claims.Gender != "Male" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if want := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, claims.ExpiresAt)
	}
}

func TestVerifyRejectsMismatches(t *testing.T) {
	iss, ver, _ := newPair(t)
	signed, err := iss.Issue(1, "Trader Guild", "Male", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cases := []struct {
		name   string
		token  int64
		guild  string
		gender string
		want   string
	}{
		{"token", 2, "Trader Guild", "Male", "token mismatch"},
		{"guild", 1, "Mystic Guild", "Male", "guild mismatch"},
		{"gender", 1, "Trader Guild", "Female", "gender mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ver.Verify(signed, tc.token, tc.guild, tc.gender)
			if !errors.Is(err, ErrInvalidGrant) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestVerifyRejectsExpiredAndForged(t *testing.T) {
	iss, ver, clk := newPair(t)
	signed, err := iss.Issue(5, "Mystic Guild", "Female", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := NewVerifier("another-secret", clk)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	if _, err := other.Verify(signed, 5, "Mystic Guild", "Female"); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected signature failure, got %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := ver.Verify(signed, 5, "Mystic Guild", "Female"); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry failure, got %v", err)
	}
	if _, err := ver.Verify("  ", 5, "Mystic Guild", "Female"); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected empty grant failure, got %v", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	_, ver, _ := newPair(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"token": 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ver.Verify(unsigned, 1, "", ""); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected alg rejection, got %v", err)
	}
}

func TestConstructorsAndIssueValidate(t *testing.T) {
	if _, err := NewIssuer(" ", nil); err == nil {
		t.Fatalf("expected secret error")
	}
	if _, err := NewVerifier("", nil); err == nil {
		t.Fatalf("expected secret error")
	}
	iss, _, _ := newPair(t)
	if _, err := iss.Issue(-1, "g", "Male", time.Hour); err == nil {
		t.Fatalf("expected negative token error")
	}
	if _, err := iss.Issue(1, "g", "Male", 0); err == nil {
		t.Fatalf("expected ttl error")
	}
}
