// Package web serves the HTML surface of the favor marketplace: the combined
// login form, the dashboard, request lifecycle actions, per-request chat
// with a live websocket stream, and the operational endpoints.
package web

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/karmicapp/karmic/internal/metrics"
	"github.com/karmicapp/karmic/internal/services/accounts"
	"github.com/karmicapp/karmic/internal/services/chat"
	"github.com/karmicapp/karmic/internal/services/marketplace"
	"github.com/karmicapp/karmic/internal/services/sessions"
	"github.com/karmicapp/karmic/pkg/logger"
)

// Pinger is the slice of the storage layer the health endpoint depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Deps bundles the services the HTTP layer exposes.
type Deps struct {
	Accounts *accounts.Service
	Market   *marketplace.Service
	Chat     *chat.Service
	Sessions *sessions.Service
	Store    Pinger
	Hub      *Hub
	Log      *logger.Logger

	// Login throttling; zero values fall back to 10 per minute, burst 5.
	LoginPerMinute int
	LoginBurst     int
}

// Server carries the handler set and its collaborators.
type Server struct {
	accounts *accounts.Service
	market   *marketplace.Service
	chat     *chat.Service
	sessions *sessions.Service
	store    Pinger
	hub      *Hub
	log      *logger.Logger

	loginLimiter *rateLimiter
}

// NewServer wires the handler set around the given services.
func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("karmic")
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(log)
	}
	perMinute := deps.LoginPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := deps.LoginBurst
	if burst <= 0 {
		burst = 5
	}

	return &Server{
		accounts:     deps.Accounts,
		market:       deps.Market,
		chat:         deps.Chat,
		sessions:     deps.Sessions,
		store:        deps.Store,
		hub:          hub,
		log:          log.WithComponent("web"),
		loginLimiter: newRateLimiter(perMinute, burst),
	}
}

// Hub returns the websocket hub; the runtime owns its Run loop.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the full route table. The login page, health probe and
// metrics scrape stay public; everything else requires a session.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.Use(s.logRequests)

	r.HandleFunc("/login_signup", s.handleLoginPage).Methods(http.MethodGet)
	r.Handle("/login_signup", s.limitLogin(http.HandlerFunc(s.handleLoginSubmit))).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	authed.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)
	authed.HandleFunc("/create_request", s.handleCreateRequestPage).Methods(http.MethodGet)
	authed.HandleFunc("/create_request", s.handleCreateRequestSubmit).Methods(http.MethodPost)
	authed.HandleFunc("/accept_task/{id}", s.handleAcceptTask).Methods(http.MethodGet)
	authed.HandleFunc("/helper_confirm/{id}", s.handleHelperConfirm).Methods(http.MethodGet)
	authed.HandleFunc("/requester_approve/{id}", s.handleRequesterApprove).Methods(http.MethodGet)
	authed.HandleFunc("/chat/{id}", s.handleChat).Methods(http.MethodGet)
	authed.HandleFunc("/chat/{id}/ws", s.handleChatSocket).Methods(http.MethodGet)
	authed.HandleFunc("/send_message/{id}", s.handleSendMessage).Methods(http.MethodPost)

	return r
}
