package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/medflow/medinsight/internal/analysis/domain"
	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeModel struct {
	failures int
	calls    int
	prompts  []string
	formats  []string
}

func (f *fakeModel) respond() (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.UpstreamUnavailable("gemini", assert.AnError)
	}
	return "**Response:** Normal ranges.", nil
}

func (f *fakeModel) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.respond()
}

func (f *fakeModel) DescribeImage(_ context.Context, prompt, format string, _ []byte) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.formats = append(f.formats, format)
	return f.respond()
}

func labPDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Cell(0, 14, "Hemoglobin 13.5 g/dL within range")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func newService(model Model) *Service {
	return NewService(model, gemini.RetryPolicy{Attempts: 3, Delay: time.Millisecond}, logger.Nop())
}

func TestAnalyze_Image(t *testing.T) {
	model := &fakeModel{}
	res, err := newService(model).Analyze(context.Background(), domain.Request{Kind: document.KindImage, Data: pngData})
	require.NoError(t, err)

	assert.Equal(t, "**Response:** Normal ranges.", res.Analysis)
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, []string{"png"}, model.formats)
	assert.Empty(t, res.Preview)
}

func TestAnalyze_PDFSendsExtractedText(t *testing.T) {
	model := &fakeModel{}
	res, err := newService(model).Analyze(context.Background(), domain.Request{Kind: document.KindPDF, Data: labPDF(t)})
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	assert.True(t, strings.HasPrefix(model.prompts[0], analysisPrompt))
	assert.Contains(t, model.prompts[0], "Hemoglobin")
	assert.Contains(t, res.Preview, "Hemoglobin")
	assert.Positive(t, res.WordCount)
}

func TestAnalyze_RetriesThenSucceeds(t *testing.T) {
	model := &fakeModel{failures: 2}
	res, err := newService(model).Analyze(context.Background(), domain.Request{Kind: document.KindImage, Data: pngData})
	require.NoError(t, err)

	assert.False(t, res.Fallback)
	assert.Equal(t, 3, res.Attempts)
}

func TestAnalyze_FallbackAfterRetries(t *testing.T) {
	t.Run("image", func(t *testing.T) {
		model := &fakeModel{failures: 10}
		res, err := newService(model).Analyze(context.Background(), domain.Request{Kind: document.KindImage, Data: pngData})
		require.NoError(t, err)

		assert.True(t, res.Fallback)
		assert.Equal(t, 3, model.calls)
		assert.Equal(t, imageFallback, res.Analysis)
	})

	t.Run("pdf", func(t *testing.T) {
		model := &fakeModel{failures: 10}
		res, err := newService(model).Analyze(context.Background(), domain.Request{Kind: document.KindPDF, Data: labPDF(t)})
		require.NoError(t, err)

		assert.True(t, res.Fallback)
		assert.Contains(t, res.Analysis, "Fallback Analysis:")
		assert.Contains(t, res.Analysis, fmt.Sprintf("Approximately %d words", res.WordCount))
	})
}

func TestAnalyze_NoModelUsesFallback(t *testing.T) {
	res, err := newService(nil).Analyze(context.Background(), domain.Request{Kind: document.KindImage, Data: pngData})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Zero(t, res.Attempts)
}

func TestAnalyze_RejectsBadUploads(t *testing.T) {
	tests := []struct {
		name string
		req  domain.Request
	}{
		{"declared pdf but image", domain.Request{Kind: document.KindPDF, Data: pngData}},
		{"plain text", domain.Request{Kind: document.KindImage, Data: []byte("hello")}},
		{"broken pdf", domain.Request{Kind: document.KindPDF, Data: []byte("%PDF-1.7 garbage")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{}
			_, err := newService(model).Analyze(context.Background(), tt.req)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "BAD_REQUEST", appErr.Code)
			assert.Zero(t, model.calls)
		})
	}
}

func TestAnalyze_CancelledContextIsNotFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(&fakeModel{failures: 10}).Analyze(ctx, domain.Request{Kind: document.KindImage, Data: pngData})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreview(t *testing.T) {
	short := "Hemoglobin 13.5"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("é", domain.PreviewLength+5)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, domain.PreviewLength+3, len([]rune(got)))
}
