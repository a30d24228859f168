package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vulnscan/api/internal/app"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/logger"
)

// ScanHandler serves the scan endpoints.
type ScanHandler struct {
	scans  *app.ScanService
	diffs  *app.DiffService
	quotas *app.QuotaService
	logger *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(scans *app.ScanService, diffs *app.DiffService, quotas *app.QuotaService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scans:  scans,
		diffs:  diffs,
		quotas: quotas,
		logger: log.With("component", "scan_handler"),
	}
}

// scanResponse is the JSON representation of a scan.
type scanResponse struct {
	ID            string              `json:"id"`
	TargetID      string              `json:"target_id"`
	OrgID         string              `json:"org_id"`
	Profile       string              `json:"profile"`
	Modules       []string            `json:"modules"`
	Status        string              `json:"status"`
	Progress      int                 `json:"progress"`
	CurrentModule string              `json:"current_module,omitempty"`
	Counts        scan.SeverityCounts `json:"severity_counts"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toScanResponse(s *scan.Scan) scanResponse {
	return scanResponse{
		ID:            s.ID.String(),
		TargetID:      s.TargetID.String(),
		OrgID:         s.OrgID.String(),
		Profile:       string(s.Profile),
		Modules:       s.Modules,
		Status:        string(s.Status),
		Progress:      s.Progress,
		CurrentModule: s.CurrentModule,
		Counts:        s.Counts,
		ErrorMessage:  s.ErrorMessage,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		CreatedAt:     s.CreatedAt,
	}
}

// Create handles POST /v1/scans.
func (h *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateScanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", shared.ErrValidation))
		return
	}

	sc, err := h.scans.Create(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScanResponse(sc))
}

// Get handles GET /v1/scans/{id}.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid scan id", shared.ErrValidation))
		return
	}

	sc, err := h.scans.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanResponse(sc))
}

// Cancel handles POST /v1/scans/{id}/cancel.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid scan id", shared.ErrValidation))
		return
	}

	if err := h.scans.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Diff handles GET /v1/scans/{id}/diff.
func (h *ScanHandler) Diff(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid scan id", shared.ErrValidation))
		return
	}

	diff, err := h.diffs.Diff(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// Quota handles GET /v1/organizations/{id}/quota.
func (h *ScanHandler) Quota(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid organization id", shared.ErrValidation))
		return
	}

	usage, err := h.quotas.Usage(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
