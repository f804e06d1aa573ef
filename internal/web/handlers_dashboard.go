package web

import (
	"net/http"

	"github.com/karmicapp/karmic/internal/services/accounts"
	"github.com/karmicapp/karmic/internal/services/marketplace"
)

type dashboardPage struct {
	page
	Live        []marketplace.RequestSummary
	Mine        []marketplace.RequestSummary
	Leaderboard []accounts.LeaderboardEntry
}

// handleDashboard composes the landing page: open requests from others, the
// viewer's own requests in both roles, and the leaderboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	live, err := s.market.LiveFeed(r.Context(), viewer.ID)
	if err != nil {
		s.internalError(w, err, "load live feed")
		return
	}
	mine, err := s.market.MyRequests(r.Context(), viewer.ID)
	if err != nil {
		s.internalError(w, err, "load my requests")
		return
	}
	board, err := s.accounts.Leaderboard(r.Context())
	if err != nil {
		s.internalError(w, err, "load leaderboard")
		return
	}

	s.render(w, "dashboard", dashboardPage{
		page:        s.viewerPage(w, r, viewer),
		Live:        live,
		Mine:        mine,
		Leaderboard: board,
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error, what string) {
	s.log.WithError(err).Error(what + " failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
