package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/medflow/medinsight/internal/analysis/domain"
	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
)

// Analyzer runs a report analysis
type Analyzer interface {
	Analyze(ctx context.Context, req domain.Request) (*domain.Result, error)
}

type analyzeForm struct {
	FileType string `validate:"required,oneof=image pdf"`
}

// Handler handles report analysis requests
type Handler struct {
	analyzer  Analyzer
	maxUpload int64
	log       *logger.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(analyzer Analyzer, maxUpload int64, log *logger.Logger) *Handler {
	return &Handler{
		analyzer:  analyzer,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Analyze handles POST /api/v1/reports/analyze
// Accepts multipart form with:
// - file: the report image (JPEG/PNG) or PDF
// - file_type: image or pdf
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.Error(w, errors.BadRequest("file too large or invalid multipart form"))
		return
	}

	form := analyzeForm{FileType: r.FormValue("file_type")}
	if err := httputil.Validate(form); err != nil {
		httputil.Error(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, errors.BadRequest("missing file in request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.Error(w, errors.BadRequest("failed to read uploaded file"))
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), domain.Request{
		Kind:     document.Kind(form.FileType),
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		h.log.Error().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("report analysis failed")
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
