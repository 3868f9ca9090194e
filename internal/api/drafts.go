package api

import (
	"net/http"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	draft, err := h.service.GetDraft(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := wire.GetDraftResponse{}
	if draft != nil {
		created := draft.CreatedAt
		resp.Draft = &wire.Draft{
			ID:           draft.ID,
			Name:         draft.Name,
			Data:         draft.Data,
			LastSyncedAt: draft.LastSyncedAt,
			CreatedAt:    &created,
			ExpiresAt:    draft.ExpiresAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req wire.SaveDraftRequest
	if !decodeBody(w, r, &req) {
		return
	}

	draft, err := h.service.SaveDraft(r.Context(), domain.SaveDraftInput{Owner: caller, Name: req.Name, Data: req.Data})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.SaveDraftResponse{Draft: wire.Draft{
		ID:           draft.ID,
		Name:         draft.Name,
		LastSyncedAt: draft.LastSyncedAt,
		ExpiresAt:    draft.ExpiresAt,
	}})
}

func (h *Handler) deleteDrafts(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteDraft(r.Context(), caller, r.URL.Query().Get("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.DeleteDraftsResponse{Success: true, DeletedCount: deleted})
}
