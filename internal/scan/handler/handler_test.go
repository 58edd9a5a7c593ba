package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/auth"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScans struct {
	started *domain.Request
	err     error
	jobs    map[string]*domain.Job
	reports map[string]string
}

func (f *fakeScans) Start(_ context.Context, req *domain.Request) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = req
	return &domain.Job{ID: "scan-1", PatientID: req.PatientID, Status: domain.StatusPending}, nil
}

func (f *fakeScans) Get(id string) (*domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.NotFound("scan")
	}
	return job, nil
}

func (f *fakeScans) ReportPath(id string) (string, error) {
	path, ok := f.reports[id]
	if !ok {
		return "", errors.New("SCAN_NOT_READY", "scan has not completed", http.StatusConflict)
	}
	return path, nil
}

func newRouter(scans Scans) http.Handler {
	h := NewHandler(scans, logger.Nop())
	r := chi.NewRouter()
	r.Post("/api/v1/scans", h.Create)
	r.Get("/api/v1/scans/{id}", h.Get)
	r.Get("/api/v1/scans/{id}/report", h.Report)
	return r
}

func TestCreate(t *testing.T) {
	scans := &fakeScans{}
	body := `{"patient_id":"p-1","patient_data":{"name":"Jane Doe"},"document_urls":["https://files.example/labs.pdf"]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", strings.NewReader(body))
	req = req.WithContext(httputil.WithClaims(req.Context(), &auth.Claims{UserID: "doctor-1", Role: auth.RoleDoctor}))
	rec := httptest.NewRecorder()
	newRouter(scans).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/scans/scan-1", rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	require.NotNil(t, scans.started)
	assert.Equal(t, "p-1", scans.started.PatientID)
	assert.Equal(t, "doctor-1", scans.started.RequestedBy)
	assert.JSONEq(t, `{"name":"Jane Doe"}`, string(scans.started.PatientData))
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"invalid json", `{"patient_id":`, nil, http.StatusBadRequest},
		{"validation", `{"patient_data":{}}`, errors.Validation(map[string]string{"PatientID": "this field is required"}), http.StatusBadRequest},
		{"internal", `{"patient_id":"p","patient_data":{}}`, assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newRouter(&fakeScans{err: tt.err}).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGet(t *testing.T) {
	scans := &fakeScans{jobs: map[string]*domain.Job{
		"scan-1": {ID: "scan-1", Status: domain.StatusCompleted, HasReport: true, ReportPath: "/srv/reports/x.pdf"},
	}}
	router := newRouter(scans)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_report":true`)
	assert.NotContains(t, rec.Body.String(), "/srv/reports", "server paths are not exposed")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smart_scan_scan-1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644))
	router := newRouter(&fakeScans{reports: map[string]string{"scan-1": path}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-1/report", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "smart_scan_scan-1.pdf")
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/scan-2/report", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
