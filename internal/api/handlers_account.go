package api

import (
	"net/http"

	"sparkclean/internal/models"
)

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.GetProfile(r.Context(), actorFrom(r), 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var patch models.UserProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	user, err := s.svc.Users.UpdateProfile(r.Context(), actorFrom(r), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.ListUsers(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta float64 `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.svc.Users.AdjustCredits(r.Context(), actorFrom(r), id, req.Delta)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.svc.Addresses.ListAddresses(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(addrs))
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var a models.Address
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := s.svc.Addresses.CreateAddress(r.Context(), actorFrom(r), &a); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.AddressPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	a, err := s.svc.Addresses.UpdateAddress(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleSetDefaultAddress answers with every address of the caller so the
// client sees the old default cleared in the same response.
func (s *Server) handleSetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	addrs, err := s.svc.Addresses.SetDefaultAddress(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(addrs))
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Addresses.DeleteAddress(r.Context(), actorFrom(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats.GetStats(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
