package handler

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
)

// FilesPath is the route prefix under which rendered artifacts are served
const FilesPath = "/api/v1/reports/files/"

// Renderer renders JSON insight reports and looks up stored artifacts
type Renderer interface {
	RenderJSON(data []byte, destination, title string) (string, error)
	BuildJSON(data []byte, title string) ([]byte, string, error)
	Artifact(name string) (string, error)
}

// RenderResponse is returned when the PDF is stored instead of downloaded
type RenderResponse struct {
	File string `json:"file"`
	URL  string `json:"url"`
}

// Handler exposes the PDF renderer over HTTP
type Handler struct {
	renderer Renderer
	maxBody  int64
	log      *logger.Logger
}

// NewHandler creates a new render handler
func NewHandler(renderer Renderer, maxBody int64, log *logger.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		maxBody:  maxBody,
		log:      log,
	}
}

// Render handles POST /api/v1/reports/render
// The body is the insight report JSON. Query parameters:
// - title: document title, defaults to the configured title
// - download: when true the PDF is built in memory and streamed back; nothing
//   is kept on the server
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.Error(w, errors.BadRequest("request body too large or unreadable"))
		return
	}

	download := false
	if v := r.URL.Query().Get("download"); v != "" {
		download, err = strconv.ParseBool(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("download must be a boolean"))
			return
		}
	}
	title := r.URL.Query().Get("title")

	if download {
		pdf, name, err := h.renderer.BuildJSON(data, title)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		servePDF(w, r, name, bytes.NewReader(pdf))
		return
	}

	path, err := h.renderer.RenderJSON(data, "", title)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Location", FilesPath+name)
	httputil.JSON(w, http.StatusCreated, RenderResponse{File: name, URL: FilesPath + name})
}

// File handles GET /api/v1/reports/files/{name}
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	path, err := h.renderer.Artifact(chi.URLParam(r, "name"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Warn().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("report render failed")
	httputil.Error(w, err)
}

func servePDF(w http.ResponseWriter, r *http.Request, name string, content io.ReadSeeker) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, time.Time{}, content)
}
