package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medinsight/internal/report"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/internal/scan/insight"
	"github.com/medflow/medinsight/internal/scan/store"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
)

// Ingester turns a request into embedded chunks
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, req *domain.Request) ([]domain.Chunk, error)
}

// QueryEmbedder embeds the retrieval query
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator writes the insight report for a retrieval context
type Generator interface {
	Generate(ctx context.Context, contextText string) (report.Value, error)
}

// Renderer writes an insight report to a PDF artifact
type Renderer interface {
	Render(v report.Value, destination, title string) (string, error)
}

// Pipeline runs one smart scan end to end: ingest, retrieve, generate, render
type Pipeline struct {
	ingester  Ingester
	store     store.Store
	embedder  QueryEmbedder
	generator Generator
	renderer  Renderer
	topK      int
	retain    bool
	log       *logger.Logger
}

// PipelineConfig carries the pipeline's collaborators
type PipelineConfig struct {
	Ingester  Ingester
	Store     store.Store
	Embedder  QueryEmbedder
	Generator Generator
	Renderer  Renderer
	TopK      int
	// RetainChunks keeps the session's chunks after the run
	RetainChunks bool
}

// NewPipeline creates a pipeline
func NewPipeline(cfg PipelineConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{
		ingester:  cfg.Ingester,
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		generator: cfg.Generator,
		renderer:  cfg.Renderer,
		topK:      cfg.TopK,
		retain:    cfg.RetainChunks,
		log:       log.WithComponent("scan-pipeline"),
	}
}

// Run processes req under a fresh session id
func (p *Pipeline) Run(ctx context.Context, req *domain.Request) (*domain.Result, error) {
	return p.RunSession(ctx, uuid.New().String(), req)
}

// RunSession processes req under sessionID and returns the rendered report path
func (p *Pipeline) RunSession(ctx context.Context, sessionID string, req *domain.Request) (*domain.Result, error) {
	log := p.log.WithScanID(sessionID)
	start := time.Now()

	chunks, err := p.ingester.Ingest(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	if err := p.store.Add(ctx, chunks); err != nil {
		return nil, err
	}
	if !p.retain {
		defer func() {
			// The run's context may already be cancelled
			if err := p.store.DeleteSession(context.WithoutCancel(ctx), sessionID); err != nil {
				log.Warn().Err(err).Msg("failed to delete session chunks")
			}
		}()
	}

	query, err := p.embedder.EmbedQuery(ctx, domain.Query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.UpstreamUnavailable("embedding model", err)
	}

	hits, err := p.store.Search(ctx, sessionID, query, p.topK)
	if err != nil {
		return nil, err
	}

	insightReport, err := p.generator.Generate(ctx, insight.BuildContext(hits))
	if err != nil {
		return nil, err
	}

	path, err := p.renderer.Render(insightReport, "smart_scan_"+sessionID+".pdf", req.Title)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("chunks", len(chunks)).
		Int("retrieved", len(hits)).
		Str("report", path).
		Dur("duration", time.Since(start)).
		Msg("smart scan completed")

	return &domain.Result{
		SessionID:  sessionID,
		ReportPath: path,
		Chunks:     len(chunks),
		Retrieved:  len(hits),
	}, nil
}
