package auth

import (
	"testing"
	"time"
)

func TestJWT_SignVerifyRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	token, expires, err := j.Sign(7, "trader01", "trader")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry %v not in the future", expires)
	}
	claims, err := j.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "trader01" || claims.Role != "trader" {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	token, _, err := NewJWT("secret-a", time.Hour).Sign(1, "u", "trader")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWT("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestJWT_ExpiredRejected(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	j.TokenTTL = -time.Minute
	token, _, err := j.Sign(1, "u", "trader")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := j.Verify(token); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}

func TestJWT_GarbageRejected(t *testing.T) {
	if _, err := NewJWT("test-secret", time.Hour).Verify("not-a-token"); err == nil {
		t.Fatalf("garbage must be rejected")
	}
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	a := HashAPIKey("pxk_abc")
	b := HashAPIKey("pxk_abc")
	if a != b || len(a) != 64 {
		t.Fatalf("hash not a stable sha256 hex: %q %q", a, b)
	}
	if a == HashAPIKey("pxk_abd") {
		t.Fatalf("different keys must not collide")
	}
}
