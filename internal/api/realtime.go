package api

import (
	"net/http"

	"sparkclean/internal/realtime"
)

// handleRealtime upgrades to the change feed. Anonymous callers may only
// follow public tables; the access rules are applied per subscription.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	authorize := s.svc.Access.For(actorFrom(r))
	realtime.NewConn(s.hub, ws, authorize, &s.logger).Serve()
}
