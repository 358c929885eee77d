package main

import (
	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running MathHub server via HTTP.

These commands require a running server (mathhub serve).
Use --server to specify a custom server URL.

Examples:
  mathhub api health                    # Check server health
  mathhub api jobs list                 # List all OCR jobs
  mathhub api jobs submit <id>          # Hand a job to the OCR provider
  mathhub api problems list             # Browse the problem bank`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "OCR job pipeline commands",
}

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "Problem bank commands",
}

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Source PDF upload commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Curriculum units at top level
	apiCmd.AddCommand((&endpoints.ListUnitsEndpoint{}).Command(getServerURL))

	// Jobs as subcommand group
	for _, ep := range endpoints.JobCommands() {
		jobsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Problems as subcommand group
	for _, ep := range endpoints.ProblemCommands() {
		problemsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Uploads as subcommand group
	uploadsCmd.AddCommand((&endpoints.PresignUploadEndpoint{}).Command(getServerURL))

	// Settings as subcommand group
	for _, ep := range endpoints.SettingsCommands() {
		settingsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Swagger spec fetch
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(jobsCmd)
	apiCmd.AddCommand(problemsCmd)
	apiCmd.AddCommand(uploadsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
