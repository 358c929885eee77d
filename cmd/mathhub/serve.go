package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/config"
	"github.com/parksorry96/mathhub/internal/defra"
	"github.com/parksorry96/mathhub/internal/home"
	"github.com/parksorry96/mathhub/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MathHub server",
	Long: `Start the MathHub HTTP server.

This starts both the HTTP API server and the DefraDB container.
When the server shuts down (via Ctrl+C or SIGTERM), DefraDB is also stopped.

The server provides:
  - /health      - Basic server health check
  - /ready       - Readiness check (includes DefraDB status)
  - /api/jobs    - OCR job pipeline
  - /api/problems - Materialized problem bank

Examples:
  mathhub serve                    # Start on default port 8080
  mathhub serve --port 3000        # Start on custom port
  mathhub serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load file config with hot reload
		cfgPath := cfgFile
		if cfgPath == "" && h.ConfigExists() {
			cfgPath = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(cfgPath)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		// Refuse to race another server over the same DefraDB container
		pidPath := filepath.Join(h.Path(), "mathhub.pid")
		if pid := defra.LivePid(pidPath); pid != 0 {
			return fmt.Errorf("another mathhub server is already running (pid %d)", pid)
		}
		if err := defra.WritePidFile(pidPath); err != nil {
			return err
		}
		defer defra.RemovePidFile(pidPath)

		// Ensure defradb data directory exists
		defraDataPath := filepath.Join(h.Path(), "defradb")
		if err := os.MkdirAll(defraDataPath, 0755); err != nil {
			return err
		}

		defraCfg := cfgMgr.Get().Defra

		// Create server
		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			DefraDataPath: defraDataPath,
			DefraConfig: defra.DockerConfig{
				ContainerName: defraCfg.ContainerName,
				Image:         defraCfg.Image,
				HostPort:      defraCfg.Port,
				HomePath:      h.Path(),
			},
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
