package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/realtime"
	"sparkclean/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api/v1"

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the HTTP API: REST routes, the realtime websocket and health
// probes.
type Server struct {
	cfg      *config.Config
	svc      *service.Services
	hub      *realtime.Hub
	db       Pinger
	limiter  *rateLimiter
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	handler http.Handler
	server  *http.Server
}

func NewServer(cfg *config.Config, svc *service.Services, hub *realtime.Hub, db Pinger, logger *zerolog.Logger) *Server {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		hub:     hub,
		db:      db,
		limiter: newRateLimiter(&cfg.API),
		logger:  l,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = s.recoverPanics(s.requestID(s.logRequests(s.cors(s.rateLimit(s.authenticate(mux))))))
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, h))
	}
	api := func(method, path string, h http.HandlerFunc) {
		handle(method+" "+apiPrefix+path, h)
	}

	handle("GET /healthz", s.handleHealth)
	handle("GET /readyz", s.handleReady)

	api("POST", "/auth/signup", s.handleSignUp)
	api("POST", "/auth/signin", s.handleSignIn)
	api("POST", "/auth/signout", protected(s.handleSignOut))
	api("POST", "/auth/confirm", s.handleConfirm)
	api("GET", "/auth/confirm", s.handleConfirm)
	api("POST", "/auth/resend", s.handleResend)
	api("POST", "/auth/forgot-password", s.handleForgotPassword)
	api("POST", "/auth/reset-password", s.handleResetPassword)

	api("GET", "/me", protected(s.handleGetMe))
	api("PATCH", "/me", protected(s.handleUpdateMe))
	api("GET", "/me/bookings", protected(s.handleMyBookings))

	api("GET", "/bookings", protected(s.handleListBookings))
	api("POST", "/bookings", protected(s.handleCreateBooking))
	api("POST", "/bookings/inspection", protected(s.handleBookInspection))
	api("GET", "/bookings/{id}", protected(s.handleGetBooking))
	api("PATCH", "/bookings/{id}", protected(s.handleUpdateBooking))
	api("DELETE", "/bookings/{id}", protected(s.handleDeleteBooking))
	api("PATCH", "/admin/bookings/{id}/price", admin(s.handleInspectionPrice))
	api("GET", "/admin/bookings/export", admin(s.handleExportBookings))

	api("GET", "/addresses", protected(s.handleListAddresses))
	api("POST", "/addresses", protected(s.handleCreateAddress))
	api("PATCH", "/addresses/{id}", protected(s.handleUpdateAddress))
	api("DELETE", "/addresses/{id}", protected(s.handleDeleteAddress))
	api("POST", "/addresses/{id}/default", protected(s.handleSetDefaultAddress))

	api("GET", "/support/tickets", protected(s.handleListTickets))
	api("POST", "/support/tickets", protected(s.handleCreateTicket))
	api("PATCH", "/support/tickets/{id}", protected(s.handleUpdateTicket))
	api("GET", "/support/tickets/{id}/messages", protected(s.handleListTicketMessages))
	api("POST", "/support/tickets/{id}/messages", protected(s.handleAddTicketMessage))

	api("POST", "/chat/sessions", protected(s.handleStartChat))
	api("GET", "/chat/sessions/{id}/messages", protected(s.handleListChatMessages))
	api("POST", "/chat/sessions/{id}/messages", protected(s.handlePostChatMessage))
	api("GET", "/admin/chat/sessions", admin(s.handleListChatSessions))
	api("PATCH", "/admin/chat/sessions/{id}", admin(s.handleUpdateChatSession))

	api("GET", "/services", s.handleListServices)
	api("POST", "/admin/services", admin(s.handleCreateService))
	api("PATCH", "/admin/services/{id}", admin(s.handleUpdateService))

	api("POST", "/contact", s.handleSubmitContact)
	api("GET", "/admin/contact-messages", admin(s.handleListContactMessages))
	api("PATCH", "/admin/contact-messages/{id}", admin(s.handleUpdateContactMessage))

	api("GET", "/pickups", protected(s.handleListPickups))
	api("POST", "/pickups", protected(s.handleSchedulePickup))
	api("PATCH", "/admin/pickups/{id}", admin(s.handleUpdatePickup))

	api("GET", "/complaints", protected(s.handleListComplaints))
	api("POST", "/complaints", protected(s.handleFileComplaint))
	api("PATCH", "/admin/complaints/{id}", admin(s.handleUpdateComplaint))

	api("GET", "/admin/users", admin(s.handleListUsers))
	api("PATCH", "/admin/users/{id}/credits", admin(s.handleAdjustCredits))
	api("GET", "/admin/stats", admin(s.handleStats))
	api("GET", "/admin/notifications", admin(s.handleListNotifications))
	api("PATCH", "/admin/notifications/{id}", admin(s.handleMarkNotificationRead))

	api("GET", "/gallery", s.handleListGallery)
	api("GET", "/gallery/{id}/image", s.handleGalleryImage)
	api("POST", "/admin/gallery", admin(s.handleUploadGallery))
	api("DELETE", "/admin/gallery/{id}", admin(s.handleDeleteGallery))

	api("GET", "/realtime", s.handleRealtime)
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
