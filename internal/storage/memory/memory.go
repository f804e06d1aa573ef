package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/karmicapp/karmic/internal/domain/message"
	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/domain/session"
	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[string]user.User
	usersByName map[string]string
	requests    map[string]request.Request
	messages    map[string][]message.Message
	sessions    map[string]session.Session
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.MessageStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[string]user.User),
		usersByName: make(map[string]string),
		requests:    make(map[string]request.Request),
		messages:    make(map[string][]message.Message),
		sessions:    make(map[string]session.Session),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// Ping reports the store as reachable; the maps live in-process.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[u.Username]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.Username, storage.ErrAlreadyExists)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrAlreadyExists)
	}

	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByName[u.Username] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	return result, nil
}

// RequestStore implementation -------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req request.Request) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requester, ok := s.users[req.RequesterID]
	if !ok {
		return request.Request{}, fmt.Errorf("user %s: %w", req.RequesterID, storage.ErrNotFound)
	}
	if requester.Coins < req.Reward {
		return request.Request{}, fmt.Errorf("user %s: %w", req.RequesterID, storage.ErrInsufficientCoins)
	}

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.requests[req.ID]; exists {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrAlreadyExists)
	}
	req.CreatedAt = time.Now().UTC()

	requester.Coins -= req.Reward
	s.users[requester.ID] = requester
	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) UpdateRequest(_ context.Context, req request.Request) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.requests[req.ID]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}

	req.CreatedAt = original.CreatedAt

	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return req, nil
}

func (s *Store) SettleRequest(_ context.Context, req request.Request) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok || current.Status != request.StatusConfirmedByHelper {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}
	helper, ok := s.users[current.HelperID]
	if !ok {
		return request.Request{}, fmt.Errorf("user %s: %w", current.HelperID, storage.ErrNotFound)
	}

	helper.Coins += current.Reward
	helper.XP += current.XPValue
	current.Status = request.StatusCompleted

	s.users[helper.ID] = helper
	s.requests[current.ID] = current
	return current, nil
}

func (s *Store) ListLiveRequests(_ context.Context, excludeUserID string) ([]request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]request.Request, 0)
	for _, req := range s.requests {
		if req.Status == request.StatusLive && req.RequesterID != excludeUserID {
			result = append(result, req)
		}
	}
	return result, nil
}

func (s *Store) ListUserRequests(_ context.Context, userID string) ([]request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]request.Request, 0)
	for _, req := range s.requests {
		if req.RequesterID == userID || (req.HelperID != "" && req.HelperID == userID) {
			result = append(result, req)
		}
	}
	return result, nil
}

// MessageStore implementation -------------------------------------------------

func (s *Store) CreateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = s.nextIDLocked()
	}
	msg.CreatedAt = time.Now().UTC()

	s.messages[msg.RequestID] = append(s.messages[msg.RequestID], msg)
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, requestID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]message.Message(nil), s.messages[requestID]...), nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	sess.CreatedAt = time.Now().UTC()

	s.sessions[sess.TokenHash] = sess
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return session.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return sess, nil
}

func (s *Store) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for hash, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}
