// Package sessions issues and resolves login session tokens. Tokens are
// HS256 JWTs whose SHA-256 hash is also persisted, so a session can be
// revoked server-side before its signature expires.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/karmicapp/karmic/internal/domain/session"
	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/storage"
	"github.com/karmicapp/karmic/pkg/logger"
)

// DefaultTTL is used when no session lifetime is configured.
const DefaultTTL = 24 * time.Hour

// Service manages login sessions over a session store.
type Service struct {
	sessions storage.SessionStore
	users    storage.UserStore
	secret   []byte
	ttl      time.Duration
	log      *logger.Logger
}

// New constructs a sessions service signing tokens with the given secret.
func New(sessions storage.SessionStore, users storage.UserStore, secret string, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	return &Service{
		sessions: sessions,
		users:    users,
		secret:   []byte(secret),
		ttl:      ttl,
		log:      log,
	}
}

// TTL returns how long issued sessions stay valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Errors
var ErrSessionInvalid = errors.New("session is invalid or expired")

// Claims carries the authenticated user's ID inside the session token. The
// session row's ID travels as the registered JWT ID claim.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Issue mints a signed token for the user and persists its hash. The token
// goes into the session cookie; only the hash is stored.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	now := time.Now().UTC()
	sessionID := uuid.NewString()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "karmic",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	_, err = s.sessions.CreateSession(ctx, session.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s.log.WithField("user_id", userID).Info("session issued")
	return token, nil
}

// Resolve verifies a token and loads its user. Tampered, expired, revoked
// and orphaned tokens all report ErrSessionInvalid.
func (s *Service) Resolve(ctx context.Context, token string) (user.User, error) {
	claims, err := s.validate(token)
	if err != nil {
		return user.User{}, ErrSessionInvalid
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrSessionInvalid
		}
		return user.User{}, fmt.Errorf("get session: %w", err)
	}
	if sess.ID != claims.ID || sess.UserID != claims.UserID || sess.ExpiresAt.Before(time.Now().UTC()) {
		return user.User{}, ErrSessionInvalid
	}

	u, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrSessionInvalid
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Revoke deletes the session row for a token. Revoking an unknown token is
// a no-op so logout never fails.
func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.sessions.DeleteSessionByTokenHash(ctx, hashToken(token))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry and reports how many were
// deleted.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if removed > 0 {
		s.log.WithField("count", removed).Info("expired sessions purged")
	}
	return removed, nil
}

// Helper methods

func (s *Service) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
