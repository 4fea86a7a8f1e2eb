package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestVerify_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)

	tok, err := SignToken(testSecret, "user-1", RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Subject != "user-1" || id.Role != RoleClient {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := SignToken("other-secret", "user-1", RoleProvider, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier(testSecret).Verify(tok); err == nil {
		t.Fatalf("expected failure for wrong secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	tok, err := SignToken(testSecret, "user-1", RoleClient, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier(testSecret).Verify(tok); err == nil {
		t.Fatalf("expected failure for expired token")
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"role": RoleClient,
		"exp":  time.Now().Add(time.Minute).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier(testSecret).Verify(tok); err == nil {
		t.Fatalf("expected failure for missing sub")
	}
}

func TestVerify_UnknownRole(t *testing.T) {
	tok, err := SignToken(testSecret, "user-1", "superuser", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier(testSecret).Verify(tok); err == nil {
		t.Fatalf("expected failure for unknown role")
	}
}

func TestVerify_RejectsNonHMAC(t *testing.T) {
	// alg=none style tokens must never pass.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "user-1",
		"role": RoleClient,
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewVerifier(testSecret).Verify(s); err == nil {
		t.Fatalf("expected failure for alg=none token")
	}
}

func TestVerify_Garbage(t *testing.T) {
	for _, s := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := NewVerifier(testSecret).Verify(s); err == nil {
			t.Fatalf("expected failure for %q", s)
		}
	}
}
