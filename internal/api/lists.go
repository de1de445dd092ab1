package api

import (
	"net/http"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

type reorderRequest struct {
	Rank int `json:"rank"`
}

type moveRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleRenderList(w http.ResponseWriter, r *http.Request) {
	viewerID, listID, ok := s.personAndID(w, r, "list")
	if !ok {
		return
	}

	s.renderList(w, r, listID, viewerID)
}

func (s *Server) renderList(w http.ResponseWriter, r *http.Request, listID, viewerID int64) {
	opts := service.RenderOptions{AvailableOnly: r.URL.Query().Get("available") == "true"}

	view, err := s.svc.RenderList(r.Context(), listID, viewerID, opts)
	if err != nil {
		s.respondServiceError(w, "render list", err)
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	adminID, listID, ok := s.personAndID(w, r, "list")
	if !ok {
		return
	}

	audit, err := s.svc.AuditClaims(r.Context(), adminID, listID)
	if err != nil {
		s.respondServiceError(w, "audit claims", err)
		return
	}
	if audit == nil {
		audit = []models.ClaimAudit{}
	}

	s.respondJSON(w, http.StatusOK, audit)
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := s.personAndID(w, r, "list")
	if !ok {
		return
	}

	var req models.ItemDraft
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.AddItem(r.Context(), actorID, listID, req)
	if err != nil {
		s.respondServiceError(w, "add wish item", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	actorID, itemID, ok := s.personAndID(w, r, "wish item")
	if !ok {
		return
	}

	var req models.ItemDraft
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.EditItem(r.Context(), actorID, itemID, req)
	if err != nil {
		s.respondServiceError(w, "update wish item", err)
		return
	}

	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	actorID, itemID, ok := s.personAndID(w, r, "wish item")
	if !ok {
		return
	}

	if err := s.svc.DeleteItem(r.Context(), actorID, itemID); err != nil {
		s.respondServiceError(w, "delete wish item", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	actorID, listID, ok := s.personAndID(w, r, "list")
	if !ok {
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wish item id")
		return
	}

	var req reorderRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.ReorderItem(r.Context(), actorID, listID, itemID, req.Rank); err != nil {
		s.respondServiceError(w, "reorder wish item", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]int{"rank": req.Rank})
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	actorID, itemID, ok := s.personAndID(w, r, "wish item")
	if !ok {
		return
	}

	var req moveRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.MoveItem(r.Context(), actorID, itemID, service.Direction(req.Direction)); err != nil {
		s.respondServiceError(w, "move wish item", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Claims
// ---------------------------------------------------------------------------

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID, ok := s.personAndID(w, r, "wish item")
	if !ok {
		return
	}

	claim, err := s.svc.Claim(r.Context(), itemID, viewerID)
	if err != nil {
		s.respondServiceError(w, "claim wish item", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, claim)
}

func (s *Server) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	viewerID, itemID, ok := s.personAndID(w, r, "wish item")
	if !ok {
		return
	}

	if err := s.svc.Unclaim(r.Context(), itemID, viewerID); err != nil {
		s.respondServiceError(w, "unclaim wish item", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}
