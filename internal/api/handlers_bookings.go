package api

import (
	"net/http"
	"strconv"

	"sparkclean/internal/export"
	"sparkclean/internal/models"
)

func bookingFilter(r *http.Request) models.BookingFilter {
	q := r.URL.Query()
	f := models.BookingFilter{
		Status:   q.Get("status"),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}
	if uid, err := strconv.ParseInt(q.Get("user_id"), 10, 64); err == nil {
		f.UserID = uid
	}
	return f
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actorFrom(r), bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

// handleMyBookings lists the caller's own bookings, admins included.
func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	f := bookingFilter(r)
	f.UserID = actor.UserID
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actor, f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var b models.Booking
	if !decodeJSON(w, r, &b) {
		return
	}
	if err := s.svc.Bookings.CreateBooking(r.Context(), actorFrom(r), &b); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBookInspection(w http.ResponseWriter, r *http.Request) {
	var req models.InspectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Bookings.BookInspection(r.Context(), actorFrom(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Bookings.GetBooking(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.BookingPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	b, err := s.svc.Bookings.UpdateBooking(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Bookings.DeleteBooking(r.Context(), actorFrom(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInspectionPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Price float64 `json:"price"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Bookings.UpdateInspectionPrice(r.Context(), actorFrom(r), id, req.Price)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleExportBookings streams the filtered bookings as an XLSX workbook.
func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actor, bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	users, err := s.svc.Users.ListUsers(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := export.WriteBookings(w, bookings, byID); err != nil {
		s.logger.Error().Err(err).Msg("export bookings")
	}
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
