package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	raw, issued, err := m.Issue("user-1", "a@example.com", "Alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if issued.ID == "" {
		t.Error("expected jti to be set")
	}

	claims, err := m.Verify(raw)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("exp - iat = %v, want 1h", got)
	}
}

func TestJWTManager_IssueIsUniqueWithinSameSecond(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	a, _, _ := m.Issue("user-1", "a@example.com", "Alice")
	b, _, _ := m.Issue("user-1", "a@example.com", "Alice")
	if a == b {
		t.Error("tokens issued in the same second must differ")
	}
}

func TestJWTManager_Verify_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return past }
	raw, _, err := m.Issue("user-1", "a@example.com", "Alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	m.now = time.Now
	if _, err := m.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(expired) err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManager_Verify_WrongSecret(t *testing.T) {
	raw, _, _ := NewJWTManager("secret-a", time.Hour).Issue("user-1", "a@example.com", "Alice")

	if _, err := NewJWTManager("secret-b", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong secret) err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManager_Verify_RejectsOtherAlgorithms(t *testing.T) {
	claims := &AccessClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString returned error: %v", err)
	}

	if _, err := NewJWTManager("test-secret", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(HS512) err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManager_Verify_Garbage(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		if _, err := m.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestNewJWTManager_DefaultTTL(t *testing.T) {
	if got := NewJWTManager("s", 0).TTL(); got != DefaultAccessTokenTTL {
		t.Errorf("TTL() = %v, want %v", got, DefaultAccessTokenTTL)
	}
}
