package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRenderCmd creates the render command
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <report.json|->",
		Short: "Render an insight report JSON file to PDF",
		Long: `Render an insight report to PDF. The report must be a JSON object.
Without --output the PDF is named medical_report_<timestamp>.pdf in the
output directory. The absolute path of the PDF is printed on success.`,
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

			output, _ := cmd.Flags().GetString("output")
			title, _ := cmd.Flags().GetString("title")

			path, err := newRenderer(cfg, log).RenderJSON(data, output, title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Destination PDF path")
	cmd.Flags().StringP("title", "t", "", "Document title")
	return cmd
}
