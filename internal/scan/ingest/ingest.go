package ingest

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/internal/report"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/tmc/langchaingo/textsplitter"
)

// Embedder turns texts into vectors for the store
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingester turns patient data and documents into embedded chunks
type Ingester struct {
	fetcher  Fetcher
	embedder Embedder
	splitter textsplitter.TextSplitter
	log      *logger.Logger
}

// New creates an ingester that splits text into chunkSize pieces overlapping by overlap characters
func New(fetcher Fetcher, embedder Embedder, chunkSize, overlap int, log *logger.Logger) *Ingester {
	return &Ingester{
		fetcher:  fetcher,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
		log: log.WithComponent("ingest"),
	}
}

// Sources collects the raw texts of a request: one per patient data entry
// followed by one per non-empty PDF page of each document, in request order.
func (in *Ingester) Sources(ctx context.Context, req *domain.Request) ([]string, error) {
	texts, err := PatientEntries(req.PatientData)
	if err != nil {
		return nil, err
	}

	for _, url := range req.DocumentURLs {
		data, err := in.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if _, err := document.DetectAs(data, document.KindPDF); err != nil {
			return nil, errors.BadRequest(fmt.Sprintf("document %s is not a PDF", url))
		}

		pages, err := document.ExtractPages(data)
		if err != nil {
			if stderrors.Is(err, document.ErrNoText) {
				in.log.Warn().Str("url", url).Msg("document has no extractable text, skipping")
				continue
			}
			return nil, errors.BadRequest(fmt.Sprintf("document %s could not be read", url))
		}
		texts = append(texts, pages...)
	}
	return texts, nil
}

// Split cuts every source text into overlapping chunks
func (in *Ingester) Split(texts []string) ([]string, error) {
	var chunks []string
	for _, t := range texts {
		parts, err := in.splitter.SplitText(t)
		if err != nil {
			return nil, fmt.Errorf("failed to split text: %w", err)
		}
		for _, p := range parts {
			if p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return chunks, nil
}

// Ingest produces the embedded chunks for a session
func (in *Ingester) Ingest(ctx context.Context, sessionID string, req *domain.Request) ([]domain.Chunk, error) {
	sources, err := in.Sources(ctx, req)
	if err != nil {
		return nil, err
	}
	texts, err := in.Split(sources)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, errors.BadRequest("no patient text to analyze")
	}

	vectors, err := in.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errors.UpstreamUnavailable("embedding model", err)
	}
	if len(vectors) != len(texts) {
		return nil, errors.UpstreamUnavailable("embedding model",
			fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(texts)))
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{SessionID: sessionID, Position: i, Content: t, Embedding: vectors[i]}
	}

	in.log.Debug().
		Str("session_id", sessionID).
		Int("sources", len(sources)).
		Int("chunks", len(chunks)).
		Msg("patient data ingested")
	return chunks, nil
}

// PatientEntries renders each top-level entry of the patient data object as
// "key: value". Nested values are written as compact JSON.
func PatientEntries(raw []byte) ([]string, error) {
	v, err := report.Parse(raw)
	if err != nil {
		return nil, errors.BadRequest("patient_data is not valid JSON")
	}
	if v.Kind() != report.KindMapping {
		return nil, errors.BadRequest("patient_data must be a JSON object")
	}

	entries := make([]string, 0, v.Len())
	for _, f := range v.Fields() {
		text := f.Value.Text()
		if !f.Value.IsLeaf() {
			b, err := f.Value.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", f.Key, err)
			}
			text = string(b)
		}
		entries = append(entries, f.Key+": "+text)
	}
	return entries, nil
}
