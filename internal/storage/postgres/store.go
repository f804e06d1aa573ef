// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/karmicapp/karmic/internal/domain/message"
	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/domain/session"
	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.MessageStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, coins, xp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.PasswordHash, u.Coins, u.XP, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("user %s: %w", u.Username, storage.ErrAlreadyExists)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, password_hash, coins, xp, created_at
		FROM users
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, password_hash, coins, xp, created_at
		FROM users
		WHERE username = $1
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, username, password_hash, coins, xp, created_at
		FROM users
		ORDER BY created_at
	`)
	return result, err
}

// --- RequestStore -----------------------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return request.Request{}, err
	}
	defer tx.Rollback()

	var coins int64
	err = tx.GetContext(ctx, &coins, `
		SELECT coins FROM users WHERE id = $1 FOR UPDATE
	`, req.RequesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, fmt.Errorf("user %s: %w", req.RequesterID, storage.ErrNotFound)
	}
	if err != nil {
		return request.Request{}, err
	}
	if coins < req.Reward {
		return request.Request{}, fmt.Errorf("user %s: %w", req.RequesterID, storage.ErrInsufficientCoins)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET coins = coins - $2 WHERE id = $1
	`, req.RequesterID, req.Reward); err != nil {
		return request.Request{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO requests (id, title, description, difficulty, reward, xp_value, requester_id, helper_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, req.ID, req.Title, req.Description, req.Difficulty, req.Reward, req.XPValue,
		req.RequesterID, toNullString(req.HelperID), req.Status, req.CreatedAt); err != nil {
		return request.Request{}, err
	}

	if err := tx.Commit(); err != nil {
		return request.Request{}, err
	}
	return req, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	existing, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		return request.Request{}, err
	}
	req.CreatedAt = existing.CreatedAt

	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET title = $2, description = $3, helper_id = $4, status = $5
		WHERE id = $1
	`, req.ID, req.Title, req.Description, toNullString(req.HelperID), req.Status)
	if err != nil {
		return request.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	var req request.Request
	err := s.db.GetContext(ctx, &req, `
		SELECT id, title, description, difficulty, reward, xp_value, requester_id,
		       COALESCE(helper_id, '') AS helper_id, status, created_at
		FROM requests
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return req, err
}

func (s *Store) SettleRequest(ctx context.Context, req request.Request) (request.Request, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return request.Request{}, err
	}
	defer tx.Rollback()

	var current request.Request
	err = tx.GetContext(ctx, &current, `
		SELECT id, title, description, difficulty, reward, xp_value, requester_id,
		       COALESCE(helper_id, '') AS helper_id, status, created_at
		FROM requests
		WHERE id = $1
		FOR UPDATE
	`, req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}
	if err != nil {
		return request.Request{}, err
	}
	if current.Status != request.StatusConfirmedByHelper {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET coins = coins + $2, xp = xp + $3 WHERE id = $1
	`, current.HelperID, current.Reward, current.XPValue)
	if err != nil {
		return request.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("user %s: %w", current.HelperID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE requests SET status = $2 WHERE id = $1
	`, current.ID, request.StatusCompleted); err != nil {
		return request.Request{}, err
	}

	if err := tx.Commit(); err != nil {
		return request.Request{}, err
	}
	current.Status = request.StatusCompleted
	return current, nil
}

func (s *Store) ListLiveRequests(ctx context.Context, excludeUserID string) ([]request.Request, error) {
	var result []request.Request
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, title, description, difficulty, reward, xp_value, requester_id,
		       COALESCE(helper_id, '') AS helper_id, status, created_at
		FROM requests
		WHERE status = $1 AND requester_id <> $2
		ORDER BY created_at DESC
	`, request.StatusLive, excludeUserID)
	return result, err
}

func (s *Store) ListUserRequests(ctx context.Context, userID string) ([]request.Request, error) {
	var result []request.Request
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, title, description, difficulty, reward, xp_value, requester_id,
		       COALESCE(helper_id, '') AS helper_id, status, created_at
		FROM requests
		WHERE requester_id = $1 OR helper_id = $1
		ORDER BY created_at DESC
	`, userID)
	return result, err
}

// --- MessageStore -----------------------------------------------------------

func (s *Store) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, request_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.RequestID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, requestID string) ([]message.Message, error) {
	var result []message.Message
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, request_id, sender_id, content, created_at
		FROM messages
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	return result, err
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return session.Session{}, fmt.Errorf("session: %w", storage.ErrAlreadyExists)
		}
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	var sess session.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return sess, err
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// --- Helpers ----------------------------------------------------------------

func toNullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
