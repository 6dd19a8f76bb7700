package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueToken(Identity{UserID: 42, Username: "alice", Role: "client"})
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != 42 || id.Username != "alice" || id.Role != "client" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.Verify(""); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.Verify("not.a.token"); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewManager("secret-one", time.Hour)
	verifier := NewManager("secret-two", time.Hour)

	token, err := issuer.IssueToken(Identity{UserID: 7, Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.Verify(token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, err := m.IssueToken(Identity{UserID: 7, Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Verify(token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyZeroUserID(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueToken(Identity{UserID: 0, Username: "ghost"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Verify(token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword("wrong password", hash) {
		t.Fatal("expected wrong password to fail")
	}
}
