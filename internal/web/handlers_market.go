package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/metrics"
	"github.com/karmicapp/karmic/internal/services/marketplace"
	"github.com/karmicapp/karmic/internal/storage"
)

type createRequestPage struct {
	page
	Difficulties []difficultyOption
}

type difficultyOption struct {
	Label  string
	Reward int64
}

func (s *Server) handleCreateRequestPage(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	labels := request.Difficulties()
	opts := make([]difficultyOption, 0, len(labels))
	for _, label := range labels {
		opts = append(opts, difficultyOption{Label: label, Reward: request.XPValue(label)})
	}

	s.render(w, "create_request", createRequestPage{
		page:         s.viewerPage(w, r, viewer),
		Difficulties: opts,
	})
}

func (s *Server) handleCreateRequestSubmit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	difficulty := r.FormValue("difficulty")
	created, err := s.market.Create(r.Context(), viewer.ID, r.FormValue("title"), r.FormValue("description"), difficulty)
	switch {
	case errors.Is(err, marketplace.ErrEmptyTitle):
		setFlash(w, "Please fill in both a title and a description.")
		http.Redirect(w, r, "/create_request", http.StatusSeeOther)
	case errors.Is(err, marketplace.ErrInsufficientCoins):
		setFlash(w, fmt.Sprintf("You don't have enough Coins to offer this reward! Need %d Coins.", marketplace.RewardFor(difficulty)))
		http.Redirect(w, r, "/create_request", http.StatusSeeOther)
	case err != nil:
		s.fail(w, r, err, "/create_request")
	default:
		metrics.RecordTransition("create")
		setFlash(w, fmt.Sprintf("Request %q posted successfully! %d Coins are in escrow.", created.Title, created.Reward))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleAcceptTask(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	accepted, err := s.market.Accept(r.Context(), viewer.ID, mux.Vars(r)["id"])
	switch {
	case errors.Is(err, marketplace.ErrNotLive), errors.Is(err, storage.ErrNotFound):
		setFlash(w, "This request is no longer available.")
	case errors.Is(err, marketplace.ErrOwnRequest):
		setFlash(w, "You cannot accept your own request!")
	case err != nil:
		s.fail(w, r, err, "/")
		return
	default:
		metrics.RecordTransition("accept")
		setFlash(w, fmt.Sprintf("You accepted the task: %q. Use the chat feature to coordinate!", accepted.Title))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHelperConfirm(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	_, err := s.market.HelperConfirm(r.Context(), viewer.ID, mux.Vars(r)["id"])
	switch {
	case errors.Is(err, marketplace.ErrNotHelper),
		errors.Is(err, marketplace.ErrWrongStatus),
		errors.Is(err, storage.ErrNotFound):
		setFlash(w, "Error: This task is not assigned to you or is not ready for confirmation.")
	case err != nil:
		s.fail(w, r, err, "/")
		return
	default:
		metrics.RecordTransition("helper_confirm")
		setFlash(w, "You confirmed completion. Awaiting approval from the Requester!")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRequesterApprove(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	settled, err := s.market.RequesterApprove(r.Context(), viewer.ID, mux.Vars(r)["id"])
	switch {
	case errors.Is(err, marketplace.ErrNotRequester),
		errors.Is(err, marketplace.ErrWrongStatus),
		errors.Is(err, storage.ErrNotFound):
		setFlash(w, "Error: You are not the requester or the helper has not yet confirmed completion.")
	case err != nil:
		s.fail(w, r, err, "/")
		return
	default:
		metrics.RecordTransition("requester_approve")
		metrics.RecordSettlement(settled.Reward)
		rank := ""
		if profile, perr := s.accounts.Profile(r.Context(), settled.HelperID); perr == nil {
			rank = profile.Rank
		}
		setFlash(w, fmt.Sprintf("Approval successful! %d Coins and %d XP transferred to the Helper. Helper's new rank: %s",
			settled.Reward, settled.XPValue, rank))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
