// Package chat manages the per-request message threads between requester
// and helper.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/karmicapp/karmic/internal/domain/message"
	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/storage"
	"github.com/karmicapp/karmic/pkg/logger"
)

// Service provides chat over the request and message stores.
type Service struct {
	users    storage.UserStore
	requests storage.RequestStore
	messages storage.MessageStore
	log      *logger.Logger
}

// New constructs a chat service.
func New(users storage.UserStore, requests storage.RequestStore, messages storage.MessageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	return &Service{
		users:    users,
		requests: requests,
		messages: messages,
		log:      log,
	}
}

// Errors
var (
	ErrNotParticipant = errors.New("not a participant of this request")
	ErrEmptyMessage   = errors.New("message content is required")
)

// MessageView joins a message with its sender's username.
type MessageView struct {
	message.Message
	SenderName string `json:"sender_name"`
}

// Thread is the chat page view of a request: the request itself, the other
// participant's username (empty while no helper is assigned) and all
// messages oldest first.
type Thread struct {
	Request  request.Request
	Partner  string
	Messages []MessageView
}

// Post appends a message to a request's thread. Only the requester and the
// assigned helper may post, and content must be non-empty after trimming.
func (s *Service) Post(ctx context.Context, actorID, requestID, content string) (message.Message, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return message.Message{}, fmt.Errorf("get request: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return message.Message{}, ErrEmptyMessage
	}
	if !isParticipant(req, actorID) {
		return message.Message{}, ErrNotParticipant
	}

	created, err := s.messages.CreateMessage(ctx, message.Message{
		RequestID: requestID,
		SenderID:  actorID,
		Content:   content,
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("create message: %w", err)
	}

	s.log.WithField("request_id", requestID).
		WithField("sender_id", actorID).
		Info("message posted")

	return created, nil
}

// Authorize checks that the acting user may read a request's thread without
// loading any messages. The live stream endpoint gates subscriptions on it.
func (s *Service) Authorize(ctx context.Context, actorID, requestID string) error {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if !isParticipant(req, actorID) {
		return ErrNotParticipant
	}
	return nil
}

// Thread loads the full conversation for a request. The same participant
// authorization as Post applies.
func (s *Service) Thread(ctx context.Context, actorID, requestID string) (Thread, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return Thread{}, fmt.Errorf("get request: %w", err)
	}
	if !isParticipant(req, actorID) {
		return Thread{}, ErrNotParticipant
	}

	msgs, err := s.messages.ListMessages(ctx, requestID)
	if err != nil {
		return Thread{}, fmt.Errorf("list messages: %w", err)
	}

	names, err := s.participantNames(ctx, req)
	if err != nil {
		return Thread{}, err
	}

	views := make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, MessageView{Message: msg, SenderName: names[msg.SenderID]})
	}

	partnerID := req.RequesterID
	if actorID == req.RequesterID {
		partnerID = req.HelperID
	}

	return Thread{
		Request:  req,
		Partner:  names[partnerID],
		Messages: views,
	}, nil
}

// Helper methods

func isParticipant(req request.Request, actorID string) bool {
	return actorID == req.RequesterID || (req.HelperID != "" && actorID == req.HelperID)
}

func (s *Service) participantNames(ctx context.Context, req request.Request) (map[string]string, error) {
	names := make(map[string]string, 2)
	requester, err := s.users.GetUser(ctx, req.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}
	names[requester.ID] = requester.Username

	if req.HelperID != "" {
		helper, err := s.users.GetUser(ctx, req.HelperID)
		if err != nil {
			return nil, fmt.Errorf("get helper: %w", err)
		}
		names[helper.ID] = helper.Username
	}
	return names, nil
}
