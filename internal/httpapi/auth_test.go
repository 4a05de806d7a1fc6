package httpapi

import (
	"testing"
	"time"
)

func TestIssueAndParseStoreToken(t *testing.T) {
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour)

	token, err := auth.IssueStoreToken("store_abc", true)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.StoreID != "store_abc" || !actor.Owner {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	auth := NewAuthManager("secret-one-aaaaaaaaaaaaaaaaaaaaaaa", time.Hour)
	other := NewAuthManager("secret-two-bbbbbbbbbbbbbbbbbbbbbbb", time.Hour)

	token, err := auth.IssueStoreToken("store_abc", false)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected a token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := &AuthManager{secret: []byte("test-secret-key-that-is-long-enough"), tokenTTL: -time.Minute}

	token, err := auth.IssueStoreToken("store_abc", false)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected an expired token to be rejected")
	}
}

func TestHashPIN(t *testing.T) {
	if hash, err := HashPIN(""); err != nil || hash != "" {
		t.Fatalf("empty PIN must disable the check, got %q (%v)", hash, err)
	}
	if _, err := HashPIN("12"); err == nil {
		t.Fatalf("expected a too-short PIN to be rejected")
	}

	hash, err := HashPIN("4321")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !VerifyPIN(hash, "4321") {
		t.Fatalf("expected the PIN to verify")
	}
	if VerifyPIN(hash, "0000") {
		t.Fatalf("expected a wrong PIN to fail")
	}
	if VerifyPIN("", "4321") {
		t.Fatalf("a store without a PIN must fail verification")
	}
}
