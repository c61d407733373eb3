package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"sparkclean/internal/models"
	"sparkclean/internal/service"
)

func parsePositive(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.New("must be positive")
	}
	return v, nil
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	actor := actorFrom(r)
	if !actor.IsAdmin() {
		includeInactive = false
	}
	list, err := s.svc.Catalog.ListServices(r.Context(), actor, includeInactive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var svc models.Service
	if !decodeJSON(w, r, &svc) {
		return
	}
	if err := s.svc.Catalog.CreateService(r.Context(), actorFrom(r), &svc); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.ServicePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	svc, err := s.svc.Catalog.UpdateService(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleSubmitContact(w http.ResponseWriter, r *http.Request) {
	var m models.ContactMessage
	if !decodeJSON(w, r, &m) {
		return
	}
	if err := s.svc.Catalog.SubmitContact(r.Context(), &m); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListContactMessages(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListContactMessages(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleUpdateContactMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.svc.Catalog.UpdateContactStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListPickups(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListPickups(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var p models.PickupDelivery
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.svc.Catalog.SchedulePickup(r.Context(), actorFrom(r), &p); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePickup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status       string `json:"status"`
		DeliveryDate string `json:"delivery_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.Catalog.UpdatePickupStatus(r.Context(), actorFrom(r), id, req.Status, req.DeliveryDate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListComplaints(r.Context(), actorFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleFileComplaint(w http.ResponseWriter, r *http.Request) {
	var c models.UserComplaint
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := s.svc.Catalog.FileComplaint(r.Context(), actorFrom(r), &c); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateComplaint(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.svc.Catalog.UpdateComplaintStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) gallery(w http.ResponseWriter) (*service.GalleryService, bool) {
	if s.svc.Gallery == nil {
		writeError(w, http.StatusServiceUnavailable, "gallery storage is not configured")
		return nil, false
	}
	return s.svc.Gallery, true
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gallery(w)
	if !ok {
		return
	}
	list, err := g.ListImages(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGalleryImage(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gallery(w)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	img, data, err := g.OpenImage(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

// handleUploadGallery takes a multipart form with a title and an image file.
func (s *Server) handleUploadGallery(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gallery(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxGalleryImageSize+(1<<16))
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	img, err := g.UploadImage(r.Context(), actorFrom(r), r.FormValue("title"), contentType, data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) handleDeleteGallery(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gallery(w)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := g.DeleteImage(r.Context(), actorFrom(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
