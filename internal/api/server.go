package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

// PersonHeader carries the authenticated person's id. It is set by the
// authenticating proxy in front of the API.
const PersonHeader = "X-Person-ID"

// Server provides the HTTP API.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Members
	s.mux.HandleFunc("GET /api/members", s.handleListMembers)
	s.mux.HandleFunc("POST /api/members", s.handleCreateAccount)
	s.mux.HandleFunc("POST /api/members/invite", s.handleInvite)
	s.mux.HandleFunc("POST /api/children", s.handleCreateChild)
	s.mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	s.mux.HandleFunc("PATCH /api/members/{id}", s.handleUpdateProfile)
	s.mux.HandleFunc("GET /api/members/{id}/list", s.handleMemberList)
	s.mux.HandleFunc("POST /api/members/{id}/resend-invite", s.handleResendInvite)

	// API – Lifecycle
	s.mux.HandleFunc("POST /api/members/{id}/archive", s.handleArchive)
	s.mux.HandleFunc("POST /api/members/{id}/restore", s.handleRestore)
	s.mux.HandleFunc("POST /api/members/{id}/promote", s.handlePromote)
	s.mux.HandleFunc("DELETE /api/members/{id}", s.handleDelete)

	// API – Current person
	s.mux.HandleFunc("PUT /api/me/password", s.handleChangePassword)
	s.mux.HandleFunc("GET /api/me/claims", s.handleMyClaims)
	s.mux.HandleFunc("POST /api/invitations/{token}", s.handleCompleteInvitation)

	// API – Password reset
	s.mux.HandleFunc("POST /api/password-reset", s.handleRequestPasswordReset)
	s.mux.HandleFunc("POST /api/password-reset/{token}", s.handleResetPassword)

	// API – Lists and items
	s.mux.HandleFunc("GET /api/lists/{id}", s.handleRenderList)
	s.mux.HandleFunc("GET /api/lists/{id}/audit", s.handleAudit)
	s.mux.HandleFunc("POST /api/lists/{id}/items", s.handleAddItem)
	s.mux.HandleFunc("PUT /api/lists/{id}/items/{itemID}/rank", s.handleReorder)
	s.mux.HandleFunc("PUT /api/items/{id}", s.handleEditItem)
	s.mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("POST /api/items/{id}/move", s.handleMoveItem)

	// API – Claims
	s.mux.HandleFunc("POST /api/items/{id}/claim", s.handleClaim)
	s.mux.HandleFunc("DELETE /api/items/{id}/claim", s.handleUnclaim)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to a status code. Domain errors
// are reported to the caller; anything else is logged and hidden.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	var deps *models.DependentsError
	if errors.As(err, &deps) {
		s.respondJSON(w, http.StatusConflict, map[string]any{
			"error":      err.Error(),
			"dependents": deps.DependentIDs(),
		})
		return
	}

	if !models.IsDomainError(err) {
		s.logger.WithError(err).Errorf("failed to %s", op)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", op))
		return
	}

	s.respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrSelfClaimForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidRank),
		errors.Is(err, models.ErrConfirmationMismatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvitationExpired), errors.Is(err, models.ErrResetTokenExpired):
		return http.StatusGone
	default:
		return http.StatusConflict
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts a numeric path value and converts it to int64.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// requirePerson reads the acting person from the identity header.  It writes
// an error response and returns false when the header is absent or invalid.
func (s *Server) requirePerson(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(PersonHeader)
	if raw == "" {
		s.respondError(w, http.StatusUnauthorized, PersonHeader+" header is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusUnauthorized, PersonHeader+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// personAndID combines requirePerson and pathID for the common case.
func (s *Server) personAndID(w http.ResponseWriter, r *http.Request, what string) (int64, int64, bool) {
	personID, ok := s.requirePerson(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, 0, false
	}
	return personID, id, true
}
