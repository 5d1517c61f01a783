package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestValidateAccessToken(t *testing.T) {
	svc := NewService("secret", time.Minute)
	uid := uuid.New()

	token, err := svc.GenerateAccessToken(uid, "provider", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != uid || claims.Role != "provider" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, _ := NewService("secret", time.Minute).GenerateAccessToken(uuid.New(), "customer", false)
	if _, err := NewService("other", time.Minute).ValidateAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := NewService("secret", -time.Minute)
	token, _ := svc.GenerateAccessToken(uuid.New(), "customer", false)
	if _, err := svc.ValidateAccessToken(token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   "admin",
		Type:   tokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("secret", time.Minute).ValidateAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccessToken_SubjectMismatch(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   "customer",
		Type:   tokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("secret", time.Minute).ValidateAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccessToken_RequiresExpiry(t *testing.T) {
	claims := Claims{UserID: uuid.New(), Role: "customer", Type: tokenTypeAccess}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("secret", time.Minute).ValidateAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
