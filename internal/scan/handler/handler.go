package handler

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
)

// Scans is the scan service used by the handler
type Scans interface {
	Start(ctx context.Context, req *domain.Request) (*domain.Job, error)
	Get(id string) (*domain.Job, error)
	ReportPath(id string) (string, error)
}

// Handler handles smart scan HTTP requests
type Handler struct {
	scans Scans
	log   *logger.Logger
}

// NewHandler creates a new scan handler
func NewHandler(scans Scans, log *logger.Logger) *Handler {
	return &Handler{
		scans: scans,
		log:   log,
	}
}

// Create handles POST /api/v1/scans
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.RequestedBy = httputil.GetUserID(r.Context())

	job, err := h.scans.Start(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/scans/"+job.ID)
	httputil.Accepted(w, job)
}

// Get handles GET /api/v1/scans/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.scans.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, job)
}

// Report handles GET /api/v1/scans/{id}/report and streams the PDF
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := h.scans.ReportPath(id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.log.Debug().Str("scan_id", id).Str("path", path).Msg("serving scan report")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
