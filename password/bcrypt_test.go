package password

import (
	"strings"
	"testing"
)

func TestBcryptHashAndVerify(t *testing.T) {
	hasher, err := NewBcrypt(MinBcryptCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := hasher.Hash("Secr3t!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}
	if strings.Contains(hash, "Secr3t!") {
		t.Fatal("hash must not contain plaintext")
	}

	ok, err := hasher.Verify("Secr3t!", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestBcryptSaltsEachHash(t *testing.T) {
	hasher, err := NewBcrypt(MinBcryptCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	a, err := hasher.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestNewBcryptRejectsLowCost(t *testing.T) {
	if _, err := NewBcrypt(MinBcryptCost - 1); err == nil {
		t.Fatal("expected cost below minimum to be rejected")
	}
	if _, err := NewBcrypt(32); err == nil {
		t.Fatal("expected cost above bcrypt max to be rejected")
	}
}

func TestBcryptRejectsOverlongPassword(t *testing.T) {
	hasher, err := NewBcrypt(MinBcryptCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", MaxBcryptPasswordBytes+1)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptVerifyMalformedHash(t *testing.T) {
	hasher, err := NewBcrypt(MinBcryptCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if _, err := hasher.Verify("pw", "short"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestNewSelectsAlgorithm(t *testing.T) {
	h, err := New(Config{BcryptCost: MinBcryptCost})
	if err != nil {
		t.Fatalf("New(default) error: %v", err)
	}
	if h.Algorithm() != AlgorithmBcrypt {
		t.Fatalf("expected bcrypt default, got %s", h.Algorithm())
	}

	h, err = New(secureConfig())
	if err != nil {
		t.Fatalf("New(argon2id) error: %v", err)
	}
	if h.Algorithm() != AlgorithmArgon2ID {
		t.Fatalf("expected argon2id, got %s", h.Algorithm())
	}

	if _, err := New(Config{Algorithm: "md5"}); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}
