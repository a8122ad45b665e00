package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"voyago/guide-app/internal/domain"

	"github.com/golang-jwt/jwt/v4"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo()
	svc := NewAuthService(userRepo, "test-secret", time.Hour)

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "s3cret-pw", domain.RoleGuide)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.PasswordHash != "" {
		t.Error("password hash leaked in register response")
	}
	if user.Role != domain.RoleGuide {
		t.Errorf("expected role guide, got %s", user.Role)
	}

	if _, err := svc.Register(ctx, "Ana Again", "ana@example.com", "other-pw", domain.RoleClient); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}

	token, logged, err := svc.Login(ctx, "ana@example.com", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if logged.PasswordHash != "" {
		t.Error("password hash leaked in login response")
	}

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not parse as valid: %v", err)
	}
	if claims.UserID != user.ID.Hex() {
		t.Errorf("expected uid %s in claims, got %s", user.ID.Hex(), claims.UserID)
	}
	if claims.Role != domain.RoleGuide {
		t.Errorf("expected role guide in claims, got %s", claims.Role)
	}

	if _, _, err := svc.Login(ctx, "ana@example.com", "wrong-pw"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed for bad password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "s3cret-pw"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed for unknown email, got %v", err)
	}
}
