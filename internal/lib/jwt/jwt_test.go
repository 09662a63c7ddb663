package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: "11111111-1111-1111-1111-111111111111", Username: "alice"}

	token, err := NewToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	user := &models.User{ID: "11111111-1111-1111-1111-111111111111", Username: "alice"}

	expired, err := NewToken(user, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	valid, err := NewToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "expired", token: expired, secret: "secret"},
		{name: "wrong secret", token: valid, secret: "other"},
		{name: "garbage", token: "not.a.token", secret: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
