package api

import (
	"net/http"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

type inviteRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type createChildRequest struct {
	DisplayName string `json:"display_name"`
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"
	persons, err := s.svc.ListMembers(r.Context(), viewerID, includeArchived)
	if err != nil {
		s.respondServiceError(w, "list members", err)
		return
	}
	if persons == nil {
		persons = []*models.Person{}
	}

	s.respondJSON(w, http.StatusOK, persons)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	var req models.NewAccount
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.svc.CreateAccount(r.Context(), actorID, req)
	if err != nil {
		s.respondServiceError(w, "create account", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := s.svc.InviteAccount(r.Context(), actorID, req.DisplayName, req.Email)
	if err != nil {
		s.respondServiceError(w, "invite account", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleResendInvite(w http.ResponseWriter, r *http.Request) {
	actorID, personID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	result, err := s.svc.ResendInvitation(r.Context(), actorID, personID)
	if err != nil {
		s.respondServiceError(w, "resend invitation", err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	managerID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	var req createChildRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.svc.CreateChildProfile(r.Context(), managerID, req.DisplayName)
	if err != nil {
		s.respondServiceError(w, "create child profile", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	viewerID, personID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	person, err := s.svc.GetPerson(r.Context(), viewerID, personID)
	if err != nil {
		s.respondServiceError(w, "get member", err)
		return
	}

	s.respondJSON(w, http.StatusOK, person)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID, personID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	var req service.ProfileUpdate
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	person, err := s.svc.UpdateProfile(r.Context(), actorID, personID, req)
	if err != nil {
		s.respondServiceError(w, "update profile", err)
		return
	}

	s.respondJSON(w, http.StatusOK, person)
}

func (s *Server) handleMemberList(w http.ResponseWriter, r *http.Request) {
	viewerID, personID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	listID, err := s.svc.ListIDForPerson(r.Context(), personID)
	if err != nil {
		s.respondServiceError(w, "find wish list", err)
		return
	}

	s.renderList(w, r, listID, viewerID)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

type archiveRequest struct {
	Reason string `json:"reason"`
}

type promoteRequest struct {
	Email string `json:"email"`
}

type deleteRequest struct {
	Credential   string `json:"credential"`
	Confirmation string `json:"confirmation"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	actorID, targetID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	// The reason is optional, and so is the body.
	var req archiveRequest
	if r.ContentLength != 0 {
		if ok, msg := s.decodeJSON(r, &req); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return
		}
	}

	if err := s.svc.ArchiveUser(r.Context(), targetID, actorID, req.Reason); err != nil {
		s.respondServiceError(w, "archive member", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	actorID, targetID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	if err := s.svc.RestoreUser(r.Context(), targetID, actorID); err != nil {
		s.respondServiceError(w, "restore member", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	actorID, childID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	var req promoteRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := s.svc.PromoteChild(r.Context(), childID, actorID, req.Email)
	if err != nil {
		s.respondServiceError(w, "promote child profile", err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, targetID, ok := s.personAndID(w, r, "member")
	if !ok {
		return
	}

	var req deleteRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.DeleteUser(r.Context(), targetID, actorID, req.Credential, req.Confirmation); err != nil {
		s.respondServiceError(w, "delete member", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Current person
// ---------------------------------------------------------------------------

type changePasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

type completeInvitationRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	personID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.ChangePassword(r.Context(), personID, req.Current, req.New); err != nil {
		s.respondServiceError(w, "change password", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMyClaims(w http.ResponseWriter, r *http.Request) {
	personID, ok := s.requirePerson(w, r)
	if !ok {
		return
	}

	items, err := s.svc.MyClaims(r.Context(), personID)
	if err != nil {
		s.respondServiceError(w, "list claims", err)
		return
	}
	if items == nil {
		items = []*models.WishItem{}
	}

	s.respondJSON(w, http.StatusOK, items)
}

// handleCompleteInvitation needs no identity header: the token identifies
// the person.
func (s *Server) handleCompleteInvitation(w http.ResponseWriter, r *http.Request) {
	var req completeInvitationRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	person, err := s.svc.CompleteInvitation(r.Context(), r.PathValue("token"), req.Password)
	if err != nil {
		s.respondServiceError(w, "complete invitation", err)
		return
	}

	s.respondJSON(w, http.StatusOK, person)
}

// ---------------------------------------------------------------------------
// Password reset
// ---------------------------------------------------------------------------

// passwordResetRequested is the reply to every well-formed reset request,
// whether or not the address belongs to anyone.
const passwordResetRequested = "If that email is registered, you will receive password reset instructions."

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.respondServiceError(w, "request password reset", err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": passwordResetRequested})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req completeInvitationRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	person, err := s.svc.ResetPassword(r.Context(), r.PathValue("token"), req.Password)
	if err != nil {
		s.respondServiceError(w, "reset password", err)
		return
	}

	s.respondJSON(w, http.StatusOK, person)
}
