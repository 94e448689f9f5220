package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lecturechat/internal/tokenstore"
	"lecturechat/pkg/types"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func TestCurrentUser_PrefersUserData(t *testing.T) {
	store := tokenstore.NewMemoryStore(map[string]string{
		types.KeyUserData:    `{"id": 7, "username": "lecturer7", "first_name": "Ada"}`,
		types.KeyAccessToken: signedToken(t, jwt.MapClaims{"user_id": 99}),
	})

	user, err := CurrentUser(context.Background(), store)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.ID != 7 || user.Username != "lecturer7" || user.FirstName != "Ada" {
		t.Errorf("Unexpected user %+v", user)
	}
}

func TestCurrentUser_FallsBackToTokenClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		wantID int64
	}{
		{"user_id claim", jwt.MapClaims{"user_id": 12}, 12},
		{"id claim", jwt.MapClaims{"id": 13}, 13},
		{"string sub claim", jwt.MapClaims{"sub": "14"}, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tokenstore.NewMemoryStore(map[string]string{
				types.KeyUserData:    "not json",
				types.KeyAccessToken: signedToken(t, tt.claims),
			})
			user, err := CurrentUser(context.Background(), store)
			if err != nil {
				t.Fatalf("CurrentUser failed: %v", err)
			}
			if user.ID != tt.wantID {
				t.Errorf("Expected user id %d, got %d", tt.wantID, user.ID)
			}
		})
	}
}

func TestCurrentUser_NoIdentity(t *testing.T) {
	store := tokenstore.NewMemoryStore(nil)
	if _, err := CurrentUser(context.Background(), store); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Expected ErrNoIdentity, got %v", err)
	}
}

func TestUserFromToken_Garbage(t *testing.T) {
	if _, err := UserFromToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": now.Add(-time.Minute).Unix()})
	future := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": now.Add(time.Hour).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"user_id": 1})

	if !Expired(past, now) {
		t.Error("Expected past token to be expired")
	}
	if Expired(future, now) {
		t.Error("Expected future token to be valid")
	}
	if Expired(noExp, now) {
		t.Error("Token without exp should not be expired")
	}
	if Expired("opaque-token", now) {
		t.Error("Opaque token should not be reported expired")
	}
}
