package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidOperatorKey = errors.New("invalid operator key")
	ErrNoActiveSession    = errors.New("no active session")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// Claims extends JWT standard claims with the hosted session it grants.
type Claims struct {
	jwt.RegisteredClaims
	SessionID uuid.UUID `json:"session_id"`
	ClientID  string    `json:"client_id,omitempty"`
}

// AuthService issues session tokens and checks operator keys.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashKey hashes an operator key with the configured bcrypt cost.
func (s *AuthService) HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckOperatorKey compares a presented key against OPERATOR_KEY_HASH. With
// no hash configured every key is rejected.
func (s *AuthService) CheckOperatorKey(key string) error {
	if s.cfg.OperatorKeyHash == "" || key == "" {
		return ErrInvalidOperatorKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorKeyHash), []byte(key)); err != nil {
		return ErrInvalidOperatorKey
	}
	return nil
}

// IssueSessionToken creates a JWT for a hosted session and registers its
// JTI in Redis. Issuing again for the same session invalidates the old token.
func (s *AuthService) IssueSessionToken(ctx context.Context, sessionID uuid.UUID, clientID string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		SessionID: sessionID,
		ClientID:  clientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	key := config.CacheKey.HostedSessionKey(sessionID.String())
	if err := s.rdb.Set(ctx, key, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateSession checks that the token's JTI is the active one for its session.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID uuid.UUID, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.HostedSessionKey(sessionID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// RevokeSession removes a session's token registration.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.HostedSessionKey(sessionID.String())).Err()
}
