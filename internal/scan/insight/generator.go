// Package insight asks the language model for a structured insight report
// about a patient and decodes it into a renderable value.
package insight

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/medflow/medinsight/internal/report"
	"github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/logger"
)

// Model produces JSON text for a prompt
type Model interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Generator turns a retrieval context into an insight report
type Generator struct {
	model  Model
	policy gemini.RetryPolicy
	log    *logger.Logger
}

// NewGenerator creates a generator that retries per policy
func NewGenerator(model Model, policy gemini.RetryPolicy, log *logger.Logger) *Generator {
	return &Generator{model: model, policy: policy, log: log.WithComponent("insight")}
}

// Generate asks the model for a report. Model failures and undecodable output
// are retried; a decoded report whose top level is not an object is not.
func (g *Generator) Generate(ctx context.Context, contextText string) (report.Value, error) {
	prompt := Prompt(contextText)

	var out report.Value
	err := gemini.Retry(ctx, g.policy, g.log, func(ctx context.Context) error {
		raw, err := g.model.GenerateJSON(ctx, prompt)
		if err != nil {
			return err
		}

		v, err := report.ParseLenient(raw)
		if err != nil {
			return fmt.Errorf("model returned undecodable JSON: %w", err)
		}
		if v.Kind() != report.KindMapping {
			return backoff.Permanent(errors.ContractViolation(
				"insight report must be a JSON object", fmt.Errorf("got %s", v.Kind())))
		}
		out = v
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report.Value{}, ctxErr
		}
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return report.Value{}, appErr
		}
		return report.Value{}, errors.UpstreamUnavailable("language model", err)
	}

	g.log.Debug().Int("sections", out.Len()).Msg("insight report generated")
	return out, nil
}
