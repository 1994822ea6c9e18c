package handlers

import (
	"net"
	"net/http"

	"driftcast/internal/dispatch"
	"driftcast/internal/httpkit"
	appErr "driftcast/internal/pkg/errors"
)

type triggerRequest struct {
	Tasks []string `json:"tasks"`
}

// PostTrigger runs the requested scheduler tasks out of band. The response
// status summarizes the outcomes: 202 when anything was dispatched, 429 when
// everything sat in cooldown, 200 otherwise.
func (h *Handler) PostTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}

	tasks, err := dispatch.ValidateTasks(req.Tasks)
	if err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, string(appErr.GetCode(err)), err.Error(), nil)
		return
	}

	outcomes, err := h.trigger.Run(r.Context(), callerID(r), tasks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, triggerStatus(outcomes), map[string]any{"results": outcomes})
}

func triggerStatus(outcomes map[string]dispatch.Outcome) int {
	allCooldown := true
	for _, outcome := range outcomes {
		switch outcome {
		case dispatch.OutcomeDispatched:
			return http.StatusAccepted
		case dispatch.OutcomeCooldown:
		default:
			allCooldown = false
		}
	}
	if allCooldown && len(outcomes) > 0 {
		return http.StatusTooManyRequests
	}
	return http.StatusOK
}

// callerID keys the trigger cooldown, per client address.
func callerID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
