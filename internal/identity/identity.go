// Package identity resolves the local user from the token store.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

var (
	ErrNoIdentity   = errors.New("no user identity available")
	ErrInvalidToken = errors.New("access token is not a parseable JWT")
)

// userIDClaims are tried in order when reading the user id from a token
var userIDClaims = []string{"user_id", "id", "sub"}

// CurrentUser returns the local user. user_data wins; when it is absent
// or unparseable the access token claims are used.
func CurrentUser(ctx context.Context, store interfaces.TokenStore) (*types.User, error) {
	raw, err := store.Get(ctx, types.KeyUserData)
	if err != nil {
		return nil, fmt.Errorf("read user data: %w", err)
	}
	if raw != "" {
		var user types.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID > 0 {
			return &user, nil
		}
	}

	token, err := store.Get(ctx, types.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if token == "" {
		return nil, ErrNoIdentity
	}
	return UserFromToken(token)
}

// UserFromToken reads the user id (and username if present) from an
// access token without verifying its signature; the server verifies.
func UserFromToken(token string) (*types.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := &types.User{}
	for _, name := range userIDClaims {
		if id, ok := claimInt(claims[name]); ok && id > 0 {
			user.ID = id
			break
		}
	}
	if user.ID == 0 {
		return nil, ErrNoIdentity
	}
	if username, ok := claims["username"].(string); ok {
		user.Username = username
	}
	return user, nil
}

// Expired reports whether the token carries an exp claim in the past.
// Tokens without exp, or that cannot be parsed, are not considered expired.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}

func claimInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
