package api

import (
	"encoding/json"
	"net/http"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	var req wire.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]domain.SyncItem, 0, len(req.CompletedWorkouts))
	for _, raw := range req.CompletedWorkouts {
		var item domain.SyncItem
		if err := json.Unmarshal(raw, &item.Submission); err != nil {
			item = domain.SyncItem{Err: domain.DecodeError(err)}
		}
		items = append(items, item)
	}

	report, err := h.service.Sync(r.Context(), domain.SyncInput{
		Owner:          caller,
		Items:          items,
		DeleteDraftIDs: req.DeleteDraftIDs,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := wire.SyncResponse{
		Success:        true,
		SyncedWorkouts: make([]wire.SyncedWorkout, 0, len(report.Outcomes)),
		Skipped:        make([]wire.SkippedWorkout, 0),
		DeletedDrafts:  report.DeletedDrafts,
	}
	for _, o := range report.Synced() {
		resp.SyncedWorkouts = append(resp.SyncedWorkouts, wire.SyncedWorkout{
			ClientID: o.ClientID,
			ServerID: o.ServerID,
			Name:     o.Name,
			Status:   string(o.Status),
		})
	}
	for _, o := range report.Skipped() {
		resp.Skipped = append(resp.Skipped, wire.SkippedWorkout{
			Index:    o.Index,
			ClientID: o.ClientID,
			Reason:   o.Reason,
			Code:     string(o.Code),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
