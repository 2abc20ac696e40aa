package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

// TokenIssuer mints and verifies the single-use waitlist promotion tokens.
// Each token is an HS256 JWT bound to (game, user) with a fresh jti; the
// store keeps the jti on the waitlist row so a token can be consumed once.
type TokenIssuer struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		auth: jwtauth.New("HS256", []byte(secret), nil),
		ttl:  ttl,
	}
}

// Issue returns the signed token and its jti.
func (t *TokenIssuer) Issue(gameID, userID int64) (string, string, error) {
	jti := uuid.NewString()
	claims := map[string]interface{}{
		"jti":     jti,
		"game_id": strconv.FormatInt(gameID, 10),
		"user_id": strconv.FormatInt(userID, 10),
		"exp":     time.Now().Add(t.ttl).Unix(),
	}
	_, tokenString, err := t.auth.Encode(claims)
	if err != nil {
		return "", "", fmt.Errorf("encode join token: %w", err)
	}
	return tokenString, jti, nil
}

// Verify checks signature and expiry and returns the bound game, user and jti.
func (t *TokenIssuer) Verify(tokenString string) (int64, int64, string, error) {
	token, err := jwtauth.VerifyToken(t.auth, tokenString)
	if err != nil {
		return 0, 0, "", ErrInvalidToken
	}

	gameID, err := claimInt64(token.Get("game_id"))
	if err != nil {
		return 0, 0, "", ErrInvalidToken
	}
	userID, err := claimInt64(token.Get("user_id"))
	if err != nil {
		return 0, 0, "", ErrInvalidToken
	}
	jti := token.JwtID()
	if jti == "" {
		return 0, 0, "", ErrInvalidToken
	}
	return gameID, userID, jti, nil
}

func claimInt64(v interface{}, ok bool) (int64, error) {
	if !ok {
		return 0, fmt.Errorf("claim missing")
	}
	switch val := v.(type) {
	case string:
		return strconv.ParseInt(val, 10, 64)
	case float64:
		return int64(val), nil
	case int64:
		return val, nil
	default:
		return 0, fmt.Errorf("claim has unexpected type %T", v)
	}
}
