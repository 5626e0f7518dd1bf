package api

import (
	"net/http"
)

type harvestResponse struct {
	Status string `json:"status"`
}

// HarvestHandler starts passes on demand.
type HarvestHandler struct {
	trigger Trigger
}

// NewHarvestHandler creates a new harvest handler.
func NewHarvestHandler(trigger Trigger) *HarvestHandler {
	return &HarvestHandler{trigger: trigger}
}

// HandlePostHarvest handles POST /harvest: 202 when a pass was started,
// 409 when one is already running.
func (h *HarvestHandler) HandlePostHarvest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !h.trigger.Trigger(r.Context()) {
		writeError(w, http.StatusConflict, "harvest_running", ErrHarvestBusy)
		return
	}
	writeJSON(w, http.StatusAccepted, harvestResponse{Status: "accepted"})
}
