// Package httpserver exposes the publish-governance operations over HTTP.
// Handlers are thin: input decoding and error-kind to status-code mapping;
// all decision logic lives in the publish service.
package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/apperr"
	"github.com/eventloom/publish-governance/internal/auth"
	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/publish"
	"github.com/eventloom/publish-governance/internal/store"
)

type Server struct {
	service   *publish.Service
	store     store.Store
	jwtSecret []byte
}

func New(service *publish.Service, st store.Store, jwtSecret []byte) *Server {
	return &Server{
		service:   service,
		store:     st,
		jwtSecret: jwtSecret,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(auth.NewMiddleware(s.jwtSecret))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Get("/events/{id}/readiness", s.handleReadiness)
	r.Get("/events/{id}/history", s.handleHistory)
	r.Get("/events/{id}/publish-request", s.handleLatestRequest)
	r.Get("/workspaces/{id}/publish-config", s.handleGetConfig)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAnyRole(auth.RoleOrganizer, auth.RoleWorkspaceAdmin))
		r.Post("/events/{id}/publish-request", s.handleSubmit)
		r.Delete("/publish-requests/{id}", s.handleCancel)
		r.Post("/events/{id}/publish", s.handlePublish)
		r.Post("/events/{id}/unpublish", s.handleUnpublish)
		r.Post("/events/{id}/status", s.handleChangeStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAnyRole(auth.RoleReviewer))
		r.Get("/publish-requests", s.handleListRequests)
		r.Post("/publish-requests/{id}/approve", s.handleApprove)
		r.Post("/publish-requests/{id}/reject", s.handleReject)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAnyRole(auth.RoleWorkspaceAdmin))
		r.Put("/workspaces/{id}/publish-config", s.handlePutConfig)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.service.EvaluateReadiness(r.Context(), eventID)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type submitRequest struct {
	Priority models.Priority `json:"priority"`
	Notes    string          `json:"notes"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.service.SubmitRequest(r.Context(), publish.SubmitInput{
		EventID:  eventID,
		Actor:    subject(r),
		Priority: req.Priority,
		Notes:    req.Notes,
	})
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleLatestRequest(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	req, err := s.service.LatestRequest(r.Context(), eventID)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	f := store.RequestFilter{
		Status: models.RequestStatus(r.URL.Query().Get("status")),
	}
	if ws := r.URL.Query().Get("workspace"); ws != "" {
		id, err := uuid.Parse(ws)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid workspace id")
			return
		}
		f.WorkspaceID = id
	}
	reqs, err := s.service.ListRequests(r.Context(), f)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	if reqs == nil {
		reqs = []models.PublishRequest{}
	}
	respondJSON(w, http.StatusOK, reqs)
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resolved, err := s.service.ApproveRequest(r.Context(), publish.ResolveInput{
		RequestID: requestID,
		Reviewer:  subject(r),
		Notes:     req.Notes,
	})
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resolved, err := s.service.RejectRequest(r.Context(), publish.ResolveInput{
		RequestID: requestID,
		Reviewer:  subject(r),
		Notes:     req.Notes,
	})
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.CancelRequest(r.Context(), requestID, subject(r)); err != nil {
		respondAppErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, func(eventID uuid.UUID) (models.Event, error) {
		return s.service.PublishEvent(r.Context(), eventID, subject(r))
	})
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, func(eventID uuid.UUID) (models.Event, error) {
		return s.service.UnpublishEvent(r.Context(), eventID, subject(r))
	})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(uuid.UUID) (models.Event, error)) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	ev, err := op(eventID)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

type changeStatusRequest struct {
	Status models.EventStatus `json:"status"`
	Reason *string            `json:"reason,omitempty"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.service.ChangeEventStatus(r.Context(), publish.ChangeStatusInput{
		EventID:   eventID,
		NewStatus: req.Status,
		Actor:     subject(r),
		Reason:    req.Reason,
	})
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entries, err := s.service.StatusHistory(r.Context(), eventID)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	cfg, err := s.service.PublishConfig(r.Context(), workspaceID)
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

type putConfigRequest struct {
	RequiresApproval bool                       `json:"requiresApproval"`
	Requirements     models.PublishRequirements `json:"requirements"`
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req putConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.service.UpdatePublishConfig(r.Context(), models.WorkspacePublishConfig{
		WorkspaceID:      workspaceID,
		RequiresApproval: req.RequiresApproval,
		Requirements:     req.Requirements,
	}, subject(r))
	if err != nil {
		respondAppErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// subject returns the authenticated caller's subject, or "" when anonymous.
func subject(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON tolerates an empty body so optional payloads (e.g. approval
// notes) can be omitted entirely.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondAppErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	respondError(w, status, err.Error())
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
