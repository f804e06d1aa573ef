// Package storage defines the persistence interfaces shared by the memory
// and postgres backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/karmicapp/karmic/internal/domain/message"
	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/domain/session"
	"github.com/karmicapp/karmic/internal/domain/user"
)

// Sentinel errors returned by all store implementations.
var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrInsufficientCoins = errors.New("insufficient coins")
)

// UserStore persists account records. Accounts are never deleted.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// RequestStore persists favor requests. CreateRequest atomically debits the
// requester's coins by the reward and inserts the record, failing with
// ErrInsufficientCoins and writing nothing when the balance is short.
// SettleRequest atomically credits the helper's coins and experience and
// moves the request from Confirmed_By_Helper to Completed; a request not in
// that state settles nothing and reports ErrNotFound.
type RequestStore interface {
	CreateRequest(ctx context.Context, req request.Request) (request.Request, error)
	UpdateRequest(ctx context.Context, req request.Request) (request.Request, error)
	GetRequest(ctx context.Context, id string) (request.Request, error)
	SettleRequest(ctx context.Context, req request.Request) (request.Request, error)
	ListLiveRequests(ctx context.Context, excludeUserID string) ([]request.Request, error)
	ListUserRequests(ctx context.Context, userID string) ([]request.Request, error)
}

// MessageStore persists chat messages. ListMessages returns the thread in
// ascending creation order.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg message.Message) (message.Message, error)
	ListMessages(ctx context.Context, requestID string) ([]message.Message, error)
}

// SessionStore persists login sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, sess session.Session) (session.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
