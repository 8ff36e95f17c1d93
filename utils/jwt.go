package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
)

// RedisClient is an optional shared client used as the token revocation
// store. It stays nil when REDIS_ADDR is not configured.
var RedisClient *redis.Client

type contextKey string

const UserIDKey = contextKey("userID")
const RequestIDKey = contextKey("requestID")
const LanguageKey = contextKey("lang")

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// GenerateAccessToken issues an HS256 token for userID.
func GenerateAccessToken(userID uint, expiry time.Duration) (string, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", errors.New("JWT_SECRET is not set")
	}
	now := time.Now()
	jti, err := generateJTI(16)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"id":  userID,
		"exp": now.Add(expiry).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": jti,
	}
	if aud := os.Getenv("JWT_AUD"); aud != "" {
		claims["aud"] = aud
	}
	if iss := os.Getenv("JWT_ISS"); iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAccessToken parses tokenStr and checks signature, registered claims
// and the Redis revocation list.
func ValidateAccessToken(tokenStr string) (jwt.MapClaims, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if aud := os.Getenv("JWT_AUD"); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	if iss := os.Getenv("JWT_ISS"); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if jti, ok := claims["jti"].(string); ok && jti != "" && RedisClient != nil {
		res, err := RedisClient.Get(context.Background(), "jwt:blacklist:"+jti).Result()
		// redis outages do not fail authentication
		if err == nil && res == "1" {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// UserIDFromToken validates tokenStr and returns the user it was issued to.
func UserIDFromToken(tokenStr string) (uint, error) {
	claims, err := ValidateAccessToken(tokenStr)
	if err != nil {
		return 0, err
	}
	return userIDFromClaims(claims)
}

func userIDFromClaims(claims jwt.MapClaims) (uint, error) {
	switch v := claims["id"].(type) {
	case float64:
		if v > 0 {
			return uint(v), nil
		}
	case string:
		var n uint
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrTokenInvalid
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return tok, tok != ""
}

// RevokeJTI blacklists a token id until ttl elapses.
func RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if RedisClient == nil {
		return errors.New("no revocation store configured")
	}
	if ttl <= 0 {
		return nil
	}
	return RedisClient.Set(ctx, "jwt:blacklist:"+jti, "1", ttl).Err()
}

// TokenIDAndExpiry returns the jti and remaining lifetime of a validated token.
func TokenIDAndExpiry(claims jwt.MapClaims) (string, time.Duration) {
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return jti, 0
	}
	return jti, time.Until(exp.Time)
}

func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetUserID returns the authenticated user id from the request context.
func GetUserID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(UserIDKey).(uint)
	return id, ok && id != 0
}
