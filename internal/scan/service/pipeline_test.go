package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/medflow/medinsight/internal/report"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/internal/scan/store"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIngester emits one chunk per content with a fixed embedding
type fakeIngester struct {
	contents   []string
	embeddings [][]float32
	err        error
}

func (f *fakeIngester) Ingest(_ context.Context, sessionID string, _ *domain.Request) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	chunks := make([]domain.Chunk, len(f.contents))
	for i, c := range f.contents {
		chunks[i] = domain.Chunk{SessionID: sessionID, Position: i, Content: c, Embedding: f.embeddings[i]}
	}
	return chunks, nil
}

type fakeQueryEmbedder struct {
	vec   []float32
	err   error
	query string
}

func (f *fakeQueryEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	return f.vec, f.err
}

type fakeGenerator struct {
	context string
	report  report.Value
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, contextText string) (report.Value, error) {
	f.context = contextText
	return f.report, f.err
}

type pipelineFixture struct {
	pipeline  *Pipeline
	store     *store.MemoryStore
	ingester  *fakeIngester
	embedder  *fakeQueryEmbedder
	generator *fakeGenerator
	outDir    string
}

func newPipelineFixture(t *testing.T, topK int, retain bool) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store: store.NewMemoryStore(),
		ingester: &fakeIngester{
			contents:   []string{"name: Jane Doe", "allergies: [\"penicillin\"]", "HbA1c 7.1 percent"},
			embeddings: [][]float32{{0, 1}, {0.2, 1}, {1, 0}},
		},
		embedder: &fakeQueryEmbedder{vec: []float32{1, 0}},
		generator: &fakeGenerator{report: report.Map(
			report.F("patient_summary", report.String("Type 2 diabetes, well controlled")),
			report.F("allergies", report.List(report.String("penicillin"))),
		)},
		outDir: t.TempDir(),
	}
	renderer := report.NewRenderer(report.Options{OutputDir: f.outDir}, logger.Nop())
	f.pipeline = NewPipeline(PipelineConfig{
		Ingester:     f.ingester,
		Store:        f.store,
		Embedder:     f.embedder,
		Generator:    f.generator,
		Renderer:     renderer,
		TopK:         topK,
		RetainChunks: retain,
	}, logger.Nop())
	return f
}

func TestPipeline_RunSession(t *testing.T) {
	f := newPipelineFixture(t, 2, false)

	res, err := f.pipeline.RunSession(context.Background(), "scan-1", &domain.Request{PatientID: "p-1"})
	require.NoError(t, err)

	assert.Equal(t, "scan-1", res.SessionID)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 2, res.Retrieved)
	assert.Equal(t, filepath.Join(f.outDir, "smart_scan_scan-1.pdf"), res.ReportPath)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	assert.Equal(t, domain.Query, f.embedder.query)
	assert.Equal(t, "HbA1c 7.1 percent\n\nallergies: [\"penicillin\"]", f.generator.context)
	assert.Zero(t, f.store.Len("scan-1"), "chunks are dropped after the run")
}

func TestPipeline_RetainChunks(t *testing.T) {
	f := newPipelineFixture(t, 10, true)

	res, err := f.pipeline.Run(context.Background(), &domain.Request{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 3, res.Retrieved)
	assert.Equal(t, 3, f.store.Len(res.SessionID))
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("ingest", func(t *testing.T) {
		f := newPipelineFixture(t, 2, false)
		f.ingester.err = errors.BadRequest("patient_data must be a JSON object")

		_, err := f.pipeline.RunSession(context.Background(), "s", &domain.Request{})
		assert.ErrorIs(t, err, errors.ErrBadRequest)
	})

	t.Run("query embedding", func(t *testing.T) {
		f := newPipelineFixture(t, 2, false)
		f.embedder.err = assert.AnError

		_, err := f.pipeline.RunSession(context.Background(), "s", &domain.Request{})
		assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
		assert.Zero(t, f.store.Len("s"))
	})

	t.Run("generation", func(t *testing.T) {
		f := newPipelineFixture(t, 2, false)
		f.generator.err = errors.ContractViolation("insight report must be a JSON object", assert.AnError)

		_, err := f.pipeline.RunSession(context.Background(), "s", &domain.Request{})
		assert.ErrorIs(t, err, errors.ErrContractViolation)
	})

	t.Run("non-mapping report", func(t *testing.T) {
		f := newPipelineFixture(t, 2, false)
		f.generator.report = report.List(report.String("x"))

		_, err := f.pipeline.RunSession(context.Background(), "s", &domain.Request{})
		assert.ErrorIs(t, err, errors.ErrContractViolation)
		assert.NoFileExists(t, filepath.Join(f.outDir, "smart_scan_s.pdf"))
	})
}
