package main

import (
	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mathhub",
	Short: "OCR ingestion pipeline for a Korean math problem bank",
	Long: `MathHub turns scanned Korean math exam PDFs into a reviewable
problem bank.

The pipeline includes:
  - Presigned PDF uploads to object storage
  - Mathpix OCR with page-level sync and progress tracking
  - Problem segmentation tuned for Korean exam layouts
  - AI classification into curriculum units with a keyword fallback
  - Idempotent materialization into reviewable problem rows`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.mathhub/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "mathhub home directory (default: ~/.mathhub)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
