package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/internal/scan/ingest"
	"github.com/medflow/medinsight/internal/scan/insight"
	"github.com/medflow/medinsight/internal/scan/service"
	"github.com/medflow/medinsight/internal/scan/store"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <patient.json|->",
		Short: "Run a smart scan and render the insight report",
		Long: `Run the smart scan pipeline locally: the patient data (a JSON object) and
the PDFs given with --doc are chunked and embedded in memory, the most
relevant chunks are summarized by Gemini and the insight report is
rendered to smart_scan_<id>.pdf. Requires GEMINI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Gemini.APIKey == "" {
				return errors.New("scan requires GEMINI_API_KEY")
			}
			log := newLogger(cmd, cmd.ErrOrStderr())

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			docs, _ := cmd.Flags().GetStringSlice("doc")
			title, _ := cmd.Flags().GetString("title")
			patientID, _ := cmd.Flags().GetString("patient-id")

			req := &domain.Request{
				PatientID:    patientID,
				PatientData:  data,
				DocumentURLs: docs,
				Title:        title,
			}
			if err := httputil.Validate(req); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client, err := gemini.New(ctx, &cfg.Gemini, log)
			if err != nil {
				return err
			}
			defer client.Close()

			pipeline := service.NewPipeline(service.PipelineConfig{
				Ingester: ingest.New(
					ingest.NewHTTPFetcher(cfg.Scan.FetchTimeout, cfg.Scan.MaxDocumentBytes),
					client, cfg.Scan.ChunkSize, cfg.Scan.ChunkOverlap, log,
				),
				Store:     store.NewMemoryStore(),
				Embedder:  client,
				Generator: insight.NewGenerator(client, gemini.PolicyFrom(&cfg.Gemini), log),
				Renderer:  newRenderer(cfg, log),
				TopK:      cfg.Scan.TopK,
			}, log)

			result, err := pipeline.Run(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.ReportPath)
			return nil
		},
	}

	cmd.Flags().StringSlice("doc", nil, "URL of a PDF document to include (repeatable)")
	cmd.Flags().String("title", "", "Document title")
	cmd.Flags().String("patient-id", "local", "Patient identifier recorded with the scan")
	return cmd
}
