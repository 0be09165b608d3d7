package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testHSKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testHSKey,
		Issuer:        "goMFA",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, issued, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected jti")
	}
	if got := issued.ExpiresAt.Time.Sub(issued.IssuedAt.Time); got != time.Hour {
		t.Fatalf("expected 1h lifetime, got %s", got)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" || claims.ID != issued.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyExpiredAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, _, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = clock.now.Add(3599 * time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token valid before exp: %v", err)
	}

	clock.now = time.Unix(1_700_000_000, 0).Add(3601 * time.Second)
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyDetectsSignatureBitFlip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	token, _, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[len(sig)/2] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	if _, err := m.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "goMFA",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := other.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	m := newHSManager(t, &fakeClock{now: time.Now()})
	for _, in := range []string{"", "not.a.jwt", "abc", "a.b"} {
		if _, err := m.Verify(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString(testHSKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestEd25519IssuerAndAudience(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "goMFA",
		Audience:      "api",
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	wrongIssuer := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	wrongIssuer.Header["kid"] = "k1"
	signed, _ := wrongIssuer.SignedString(priv)
	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims for wrong issuer, got %v", err)
	}

	wrongAudience := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "goMFA",
		Audience:  gjwt.ClaimStrings{"other-api"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	wrongAudience.Header["kid"] = "k1"
	signed, _ = wrongAudience.SignedString(priv)
	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims for wrong audience, got %v", err)
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.Issue("alice"); err == nil {
		t.Fatal("expected verify-only manager to refuse issuing")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{SigningMethod: MethodEd25519},
		{SigningMethod: "rs256", PrivateKey: testHSKey},
		{SigningMethod: MethodHS256, PrivateKey: testHSKey, TTL: -time.Second},
		{SigningMethod: MethodHS256, PrivateKey: testHSKey, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
