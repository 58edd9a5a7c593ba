// Package gemini wraps the Google generative AI client used for report
// analysis, insight generation and chunk embeddings.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/medflow/medinsight/pkg/config"
	"github.com/medflow/medinsight/pkg/logger"
	"google.golang.org/api/option"
)

// maxEmbedBatch is the request limit of BatchEmbedContents
const maxEmbedBatch = 100

var (
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("gemini: empty response")
	// ErrMissingAPIKey is returned by New without credentials
	ErrMissingAPIKey = errors.New("gemini: api key not configured")
)

// Client talks to the Gemini chat and embedding models
type Client struct {
	client   *genai.Client
	chat     *genai.GenerativeModel
	jsonChat *genai.GenerativeModel
	embedder *genai.EmbeddingModel
	timeout  time.Duration
	logger   *logger.Logger
}

// New creates a client for the configured models
func New(ctx context.Context, cfg *config.GeminiConfig, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	chat := client.GenerativeModel(cfg.ChatModel)
	chat.SetTemperature(cfg.Temperature)

	jsonChat := client.GenerativeModel(cfg.ChatModel)
	jsonChat.SetTemperature(cfg.Temperature)
	jsonChat.ResponseMIMEType = "application/json"

	log.Info().
		Str("chat_model", cfg.ChatModel).
		Str("embedding_model", cfg.EmbeddingModel).
		Msg("gemini client ready")

	return &Client{
		client:   client,
		chat:     chat,
		jsonChat: jsonChat,
		embedder: client.EmbeddingModel(cfg.EmbeddingModel),
		timeout:  cfg.Timeout,
		logger:   log.WithComponent("gemini"),
	}, nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateText sends a text prompt to the chat model
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.chat, genai.Text(prompt))
}

// GenerateJSON sends a prompt and asks the model to answer with JSON only
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.jsonChat, genai.Text(prompt))
}

// DescribeImage sends a prompt together with an image. format is the image
// subtype such as "jpeg" or "png".
func (c *Client) DescribeImage(ctx context.Context, prompt, format string, data []byte) (string, error) {
	return c.generate(ctx, c.chat, genai.Text(prompt), genai.ImageData(format, data))
}

func (c *Client) generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}

	c.logger.Debug().Dur("duration", time.Since(start)).Int("chars", len(text)).Msg("generation finished")
	return text, nil
}

// EmbedDocuments embeds texts for storage in the vector store
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, genai.TaskTypeRetrievalDocument, texts)
}

// EmbedQuery embeds a single search query
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, genai.TaskTypeRetrievalQuery, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, task genai.TaskType, texts []string) ([][]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// EmbeddingModel carries the task type as a field, so use a copy per call
	em := *c.embedder
	em.TaskType = task

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, maxEmbedBatch) {
		b := em.NewBatch()
		for _, text := range batch {
			b.AddContent(genai.Text(text))
		}

		resp, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(resp.Embeddings), len(batch))
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func batches(texts []string, size int) [][]string {
	var out [][]string
	for len(texts) > size {
		out = append(out, texts[:size])
		texts = texts[size:]
	}
	if len(texts) > 0 {
		out = append(out, texts)
	}
	return out
}
