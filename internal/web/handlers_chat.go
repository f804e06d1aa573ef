package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/karmicapp/karmic/internal/domain/message"
	"github.com/karmicapp/karmic/internal/metrics"
	"github.com/karmicapp/karmic/internal/services/chat"
	"github.com/karmicapp/karmic/internal/storage"
)

type chatPage struct {
	page
	Thread chat.Thread
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	thread, err := s.chat.Thread(r.Context(), viewer.ID, mux.Vars(r)["id"])
	switch {
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, storage.ErrNotFound):
		setFlash(w, "You are not authorized to view this chat.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		s.fail(w, r, err, "/")
		return
	}

	s.render(w, "chat", chatPage{
		page:   s.viewerPage(w, r, viewer),
		Thread: thread,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	id := mux.Vars(r)["id"]
	posted, err := s.chat.Post(r.Context(), viewer.ID, id, r.FormValue("content"))
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, storage.ErrNotFound):
		setFlash(w, "Cannot send empty message or task does not exist.")
		http.Redirect(w, r, "/chat/"+id, http.StatusSeeOther)
		return
	case errors.Is(err, chat.ErrNotParticipant):
		setFlash(w, "You are not authorized to chat about this task.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		s.fail(w, r, err, "/chat/"+id)
		return
	}

	metrics.RecordMessage()
	s.publish(posted, viewer.Username)
	http.Redirect(w, r, "/chat/"+id, http.StatusSeeOther)
}

// publish pushes a freshly stored message to the thread's websocket
// subscribers.
func (s *Server) publish(msg message.Message, senderName string) {
	payload, err := json.Marshal(chat.MessageView{Message: msg, SenderName: senderName})
	if err != nil {
		s.log.WithError(err).Warn("encode broadcast payload failed")
		return
	}
	s.hub.Broadcast(msg.RequestID, payload)
}

// handleChatSocket upgrades a participant's connection and subscribes it to
// the request's room. The stream is outbound-only; posting still goes
// through the form endpoint.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.chat.Authorize(r.Context(), viewer.ID, id); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := newClient(s.hub, conn, id, viewer.ID)
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}
