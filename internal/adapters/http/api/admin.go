package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/ratings/internal/domain/period"
	"github.com/okian/ratings/internal/domain/types"
	"github.com/okian/ratings/internal/scheduler"
)

// maxAdminBody caps POST /admin/recalculate payloads.
const maxAdminBody = 1 << 12

// AdminDependencies exposes the scheduler to operators.
type AdminDependencies interface {
	SchedulerStatus(ctx context.Context) (types.SchedulerStatus, error)
	// TriggerRecalculation blocks until the run finishes.
	TriggerRecalculation(ctx context.Context, period *string) error
}

type recalculateRequest struct {
	Period *string `json:"period"`
}

// AdminHandler handles the scheduler status and manual trigger.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleSchedulerStatus handles GET /admin/scheduler requests.
func (h *AdminHandler) HandleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st, err := h.deps.SchedulerStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRecalculate handles POST /admin/recalculate requests. An empty body
// recalculates the last completed month.
func (h *AdminHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req recalculateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, types.RecalculationResult{Error: err.Error()})
		return
	}

	res := types.RecalculationResult{}
	if req.Period != nil {
		res.Period = *req.Period
	}
	err := h.deps.TriggerRecalculation(r.Context(), req.Period)
	switch {
	case err == nil:
		res.Success = true
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, period.ErrInvalidPeriod):
		res.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, res)
	case errors.Is(err, scheduler.ErrRunInProgress):
		res.Error = err.Error()
		writeJSON(w, http.StatusConflict, res)
	default:
		res.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, res)
	}
}
