package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medflow/medinsight/internal/analysis/domain"
	"github.com/medflow/medinsight/internal/analysis/service"
	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type stubModel struct{}

func (stubModel) GenerateText(context.Context, string) (string, error) { return "text analysis", nil }

func (stubModel) DescribeImage(context.Context, string, string, []byte) (string, error) {
	return "image analysis", nil
}

func multipartBody(t *testing.T, fileType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileType != "" {
		require.NoError(t, mw.WriteField("file_type", fileType))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("file", "report.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newHandler(maxUpload int64) *Handler {
	svc := service.NewService(stubModel{}, gemini.RetryPolicy{Attempts: 1, Delay: time.Millisecond}, logger.Nop())
	return NewHandler(svc, maxUpload, logger.Nop())
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		fileType string
		data     []byte
		status   int
		code     string
	}{
		{"image ok", "image", pngData, http.StatusOK, ""},
		{"missing file type", "", pngData, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown file type", "docx", pngData, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing file", "image", nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"type mismatch", "pdf", pngData, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fileType, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/analyze", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			newHandler(20<<20).Analyze(rec, req)
			assert.Equal(t, tt.status, rec.Code)

			var resp struct {
				Success bool           `json:"success"`
				Data    *domain.Result `json:"data"`
				Error   *struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			if tt.code != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
				return
			}
			require.NotNil(t, resp.Data)
			assert.Equal(t, "image analysis", resp.Data.Analysis)
			assert.Equal(t, document.KindImage, resp.Data.Kind)
			assert.Equal(t, "report.png", resp.Data.Filename)
		})
	}
}

func TestAnalyze_TooLarge(t *testing.T) {
	body, contentType := multipartBody(t, "image", append(pngData, make([]byte, 4096)...))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newHandler(1024).Analyze(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
