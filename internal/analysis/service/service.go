package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medinsight/internal/analysis/domain"
	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/logger"
)

// Model is the generative model the analyzer talks to
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	DescribeImage(ctx context.Context, prompt, format string, data []byte) (string, error)
}

// Service analyzes uploaded medical reports with a generative model
type Service struct {
	model  Model
	policy gemini.RetryPolicy
	log    *logger.Logger
}

// NewService creates an analyzer. A nil model makes every analysis use the fallback text.
func NewService(model Model, policy gemini.RetryPolicy, log *logger.Logger) *Service {
	return &Service{
		model:  model,
		policy: policy,
		log:    log.WithComponent("analysis"),
	}
}

// Analyze validates the upload, extracts PDF text and asks the model for an
// analysis, retrying per the policy and falling back to a canned answer.
func (s *Service) Analyze(ctx context.Context, req domain.Request) (*domain.Result, error) {
	start := time.Now()

	detected, err := document.DetectAs(req.Data, req.Kind)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	result := &domain.Result{
		ID:        uuid.New().String(),
		Kind:      detected.Kind,
		MIME:      detected.MIME,
		Filename:  req.Filename,
		CreatedAt: start.UTC(),
	}
	log := s.log.With().Str("analysis_id", result.ID).Str("kind", string(detected.Kind)).Logger()

	var call func(ctx context.Context) (string, error)
	var fallback string

	switch detected.Kind {
	case document.KindPDF:
		text, err := document.ExtractText(req.Data)
		if err != nil {
			if stderrors.Is(err, document.ErrNoText) {
				return nil, errors.BadRequest("the PDF contains no extractable text")
			}
			return nil, errors.BadRequest("the PDF could not be read")
		}
		result.Preview = preview(text)
		result.WordCount = len(strings.Fields(text))
		fallback = textFallback(result.WordCount)
		call = func(ctx context.Context) (string, error) {
			return s.model.GenerateText(ctx, textPrompt(text))
		}
	default:
		fallback = imageFallback
		call = func(ctx context.Context) (string, error) {
			return s.model.DescribeImage(ctx, analysisPrompt, detected.Format, req.Data)
		}
	}

	if s.model == nil {
		log.Warn().Msg("no model configured, using fallback analysis")
		result.Analysis, result.Fallback = fallback, true
		result.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	err = gemini.Retry(ctx, s.policy, s.log, func(ctx context.Context) error {
		result.Attempts++
		text, err := call(ctx)
		if err != nil {
			return err
		}
		result.Analysis = text
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error().Err(err).Int("attempts", result.Attempts).Msg("analysis failed, using fallback")
		result.Analysis, result.Fallback = fallback, true
	}

	result.DurationMs = time.Since(start).Milliseconds()
	log.Info().
		Bool("fallback", result.Fallback).
		Int("attempts", result.Attempts).
		Int64("duration_ms", result.DurationMs).
		Msg("report analyzed")

	return result, nil
}
