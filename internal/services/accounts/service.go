// Package accounts manages registration, authentication and the user
// leaderboard.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/storage"
	"github.com/karmicapp/karmic/pkg/logger"
)

// Service provides account management over a user store.
type Service struct {
	users      storage.UserStore
	log        *logger.Logger
	bcryptCost int
}

// Option configures optional service behavior.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// New constructs an accounts service.
func New(users storage.UserStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	s := &Service{
		users:      users,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Errors
var (
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Profile is the dashboard header view of an account.
type Profile struct {
	User user.User
	Rank string
}

// LeaderboardEntry is one row of the public leaderboard.
type LeaderboardEntry struct {
	Username string
	Coins    int64
	XP       int64
	Rank     string
}

// Register creates a new account with the starting coin balance.
func (s *Service) Register(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return user.User{}, ErrEmptyCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: string(hash),
		Coins:        user.StartingCoins,
		XP:           0,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return user.User{}, ErrUsernameTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", created.ID).
		WithField("username", created.Username).
		Info("user registered")

	return created, nil
}

// Authenticate checks a username and password pair. Unknown usernames and
// wrong passwords both report ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return user.User{}, ErrEmptyCredentials
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Profile loads a user together with the derived rank label.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("get user: %w", err)
	}
	return Profile{User: u, Rank: user.Rank(u.XP)}, nil
}

// Leaderboard returns the top users sorted descending by experience, coins
// and username. It is recomputed on every call.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	all, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].XP != all[j].XP {
			return all[i].XP > all[j].XP
		}
		if all[i].Coins != all[j].Coins {
			return all[i].Coins > all[j].Coins
		}
		return all[i].Username > all[j].Username
	})
	if len(all) > 10 {
		all = all[:10]
	}

	result := make([]LeaderboardEntry, 0, len(all))
	for _, u := range all {
		result = append(result, LeaderboardEntry{
			Username: u.Username,
			Coins:    u.Coins,
			XP:       u.XP,
			Rank:     user.Rank(u.XP),
		})
	}
	return result, nil
}

// Seed creates a bootstrap account with a fixed balance unless the username
// is already taken. Existing accounts are left untouched.
func (s *Service) Seed(ctx context.Context, username, password string, coins, xp int64) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: string(hash),
		Coins:        coins,
		XP:           xp,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", created.ID).
		WithField("username", created.Username).
		Info("seed user created")
	return nil
}
