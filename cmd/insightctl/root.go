package main

import (
	"fmt"
	"io"
	"os"

	"github.com/medflow/medinsight/internal/report"
	"github.com/medflow/medinsight/pkg/config"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const cliName = "insightctl"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   cliName,
		Short: "Render, analyze and summarize medical reports",
		Long: `insightctl renders structured insight reports to PDF, analyzes single
medical reports with the configured language model and runs smart scans
over patient data and documents.

Configuration is read from the environment (MEDINSIGHT_*, GEMINI_API_KEY),
an optional .env file and ./config/insightctl.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")
	cmd.PersistentFlags().String("output-dir", "", "Directory for generated PDFs (overrides report.output_dir)")

	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewScanCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cliName)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Report.OutputDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger logs warnings to w, or everything when verbose is set
func newLogger(cmd *cobra.Command, w io.Writer) *logger.Logger {
	level := zerolog.WarnLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: w, NoColor: true}, cliName)
	return &logger.Logger{Logger: log.Level(level)}
}

func newRenderer(cfg *config.Config, log *logger.Logger) *report.Renderer {
	return report.NewRenderer(report.Options{
		OutputDir: cfg.Report.OutputDir,
		Title:     cfg.Report.Title,
		MaxDepth:  cfg.Report.MaxDepth,
	}, log)
}

// readInput reads a file, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
