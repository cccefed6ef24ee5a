package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plain password")
	}
	if err := CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue(42, "ada")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Username != "ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsTamperingAndWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue(42, "ada")
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token must fail with ErrInvalidToken, got %v", err)
	}

	other := NewTokenIssuer("different-secret")
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign secret must fail verification, got %v", err)
	}

	if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token must fail verification, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue(42, "ada")
	if err != nil {
		t.Fatal(err)
	}

	late := NewTokenIssuer("test-secret")
	late.now = func() time.Time { return time.Now().Add(tokenTTL + time.Hour) }
	if _, err := late.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token must fail verification, got %v", err)
	}
}
