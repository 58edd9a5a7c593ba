package main

import (
	"context"
	"fmt"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/medflow/medinsight/internal/analysis/domain"
	"github.com/medflow/medinsight/internal/analysis/service"
	"github.com/medflow/medinsight/internal/document"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a medical report image or PDF",
		Long: `Analyze a single medical report (JPEG, PNG or PDF) with the configured
Gemini model and print the result as JSON. Without GEMINI_API_KEY, or when
the model keeps failing, a fallback analysis is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd, cmd.ErrOrStderr())

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			kind := document.Kind("")
			if t, _ := cmd.Flags().GetString("type"); t != "" {
				kind = document.Kind(t)
			} else {
				detected, err := document.Detect(data)
				if err != nil {
					return err
				}
				kind = detected.Kind
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var model service.Model
			if cfg.Gemini.APIKey != "" {
				client, err := gemini.New(ctx, &cfg.Gemini, log)
				if err != nil {
					return err
				}
				defer client.Close()
				model = client
			}

			result, err := service.NewService(model, gemini.PolicyFrom(&cfg.Gemini), log).Analyze(ctx, domain.Request{
				Kind:     kind,
				Filename: filepath.Base(args[0]),
				Data:     data,
			})
			if err != nil {
				return err
			}

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().String("type", "", "Report type: image or pdf (detected from content when empty)")
	return cmd
}
