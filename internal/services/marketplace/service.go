// Package marketplace implements the favor request lifecycle: escrowed
// creation, acceptance, the two-step confirmation protocol and settlement.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/storage"
	"github.com/karmicapp/karmic/pkg/logger"
)

// Service drives request lifecycle transitions over the request and user
// stores.
type Service struct {
	users    storage.UserStore
	requests storage.RequestStore
	log      *logger.Logger
}

// New constructs a marketplace service.
func New(users storage.UserStore, requests storage.RequestStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("marketplace")
	}
	return &Service{
		users:    users,
		requests: requests,
		log:      log,
	}
}

// Errors
var (
	ErrEmptyTitle        = errors.New("title and description are required")
	ErrInsufficientCoins = errors.New("not enough coins to fund the reward")
	ErrOwnRequest        = errors.New("cannot accept your own request")
	ErrNotLive           = errors.New("request is no longer available")
	ErrNotHelper         = errors.New("request is not assigned to you")
	ErrNotRequester      = errors.New("only the requester can approve")
	ErrWrongStatus       = errors.New("request is not ready for this step")
)

// RequestSummary joins a request with its participants' usernames for
// display.
type RequestSummary struct {
	request.Request
	RequesterName string
	HelperName    string
}

// RewardFor returns the coin reward (and equal XP value) a difficulty label
// commands. An empty label means Medium.
func RewardFor(difficulty string) int64 {
	if difficulty == "" {
		difficulty = request.DefaultDifficulty
	}
	return request.XPValue(difficulty)
}

// Create posts a new Live request and places the reward in escrow. The
// difficulty label fixes both reward and XP value at creation; an empty
// label means Medium. The requester's balance is debited in the same store
// operation that persists the record, so a rejected create leaves no trace.
func (s *Service) Create(ctx context.Context, actorID, title, description, difficulty string) (request.Request, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return request.Request{}, ErrEmptyTitle
	}
	if difficulty == "" {
		difficulty = request.DefaultDifficulty
	}
	xp := RewardFor(difficulty)

	created, err := s.requests.CreateRequest(ctx, request.Request{
		Title:       title,
		Description: description,
		Difficulty:  difficulty,
		Reward:      xp,
		XPValue:     xp,
		RequesterID: actorID,
		Status:      request.StatusLive,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientCoins) {
			return request.Request{}, ErrInsufficientCoins
		}
		return request.Request{}, fmt.Errorf("create request: %w", err)
	}

	s.log.WithField("request_id", created.ID).
		WithField("requester_id", actorID).
		WithField("reward", created.Reward).
		Info("request created")

	return created, nil
}

// Accept assigns the acting user as helper on a Live request.
func (s *Service) Accept(ctx context.Context, actorID, requestID string) (request.Request, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return request.Request{}, fmt.Errorf("get request: %w", err)
	}
	if req.Status != request.StatusLive {
		return request.Request{}, ErrNotLive
	}
	if req.RequesterID == actorID {
		return request.Request{}, ErrOwnRequest
	}

	req.HelperID = actorID
	req.Status = request.StatusAccepted
	updated, err := s.requests.UpdateRequest(ctx, req)
	if err != nil {
		return request.Request{}, fmt.Errorf("update request: %w", err)
	}

	s.log.WithField("request_id", updated.ID).
		WithField("helper_id", actorID).
		Info("request accepted")

	return updated, nil
}

// HelperConfirm marks an Accepted request as done from the helper's side.
func (s *Service) HelperConfirm(ctx context.Context, actorID, requestID string) (request.Request, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return request.Request{}, fmt.Errorf("get request: %w", err)
	}
	if req.HelperID != actorID {
		return request.Request{}, ErrNotHelper
	}
	if req.Status != request.StatusAccepted {
		return request.Request{}, ErrWrongStatus
	}

	req.Status = request.StatusConfirmedByHelper
	updated, err := s.requests.UpdateRequest(ctx, req)
	if err != nil {
		return request.Request{}, fmt.Errorf("update request: %w", err)
	}

	s.log.WithField("request_id", updated.ID).
		WithField("helper_id", actorID).
		Info("helper confirmed completion")

	return updated, nil
}

// RequesterApprove settles a confirmed request: the helper receives the
// escrowed coins and the XP value, exactly once, and the request becomes
// Completed.
func (s *Service) RequesterApprove(ctx context.Context, actorID, requestID string) (request.Request, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return request.Request{}, fmt.Errorf("get request: %w", err)
	}
	if req.RequesterID != actorID {
		return request.Request{}, ErrNotRequester
	}
	if req.Status != request.StatusConfirmedByHelper {
		return request.Request{}, ErrWrongStatus
	}

	settled, err := s.requests.SettleRequest(ctx, req)
	if err != nil {
		// The settle guard re-checks the status inside the transaction, so a
		// request settled by a concurrent approve surfaces as not found.
		if errors.Is(err, storage.ErrNotFound) {
			return request.Request{}, ErrWrongStatus
		}
		return request.Request{}, fmt.Errorf("settle request: %w", err)
	}

	s.log.WithField("request_id", settled.ID).
		WithField("helper_id", settled.HelperID).
		WithField("reward", settled.Reward).
		WithField("xp", settled.XPValue).
		Info("request settled")

	return settled, nil
}

// LiveFeed lists open requests from other users, newest first.
func (s *Service) LiveFeed(ctx context.Context, viewerID string) ([]RequestSummary, error) {
	reqs, err := s.requests.ListLiveRequests(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list live requests: %w", err)
	}
	return s.summarize(ctx, reqs)
}

// MyRequests lists the requests the viewer posted or is helping with,
// newest first.
func (s *Service) MyRequests(ctx context.Context, viewerID string) ([]RequestSummary, error) {
	reqs, err := s.requests.ListUserRequests(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list user requests: %w", err)
	}
	return s.summarize(ctx, reqs)
}

// Helper methods

func (s *Service) summarize(ctx context.Context, reqs []request.Request) ([]RequestSummary, error) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})

	names, err := s.usernames(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]RequestSummary, 0, len(reqs))
	for _, req := range reqs {
		result = append(result, RequestSummary{
			Request:       req,
			RequesterName: names[req.RequesterID],
			HelperName:    names[req.HelperID],
		})
	}
	return result, nil
}

func (s *Service) usernames(ctx context.Context) (map[string]string, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}
