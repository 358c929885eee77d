package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/assets"
	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/config"
	"github.com/parksorry96/mathhub/internal/curriculum"
	"github.com/parksorry96/mathhub/internal/defra"
	"github.com/parksorry96/mathhub/internal/home"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/schema"
	"github.com/parksorry96/mathhub/internal/server/endpoints"
	"github.com/parksorry96/mathhub/internal/storage"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// Server is the main MathHub HTTP server.
// It manages the DefraDB container lifecycle - starting it on server start
// and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	defraManager *defra.DockerManager
	defraClient  *defra.Client
	defraSink    *defra.Sink
	jobManager   *jobs.Manager
	configMgr    *config.Manager
	home         *home.Dir
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// DefraDataPath is the path to persist DefraDB data
	DefraDataPath string
	// DefraConfig holds DefraDB container settings
	DefraConfig defra.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// SwaggerSpecPath points at the generated swagger.json
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SwaggerSpecPath == "" {
		cfg.SwaggerSpecPath = endpoints.GetSwaggerSpecPath()
	}

	// Set up DefraDB data path
	if cfg.DefraDataPath != "" {
		cfg.DefraConfig.DataPath = cfg.DefraDataPath
	}

	defraManager, err := defra.NewDockerManager(cfg.DefraConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create defra manager: %w", err)
	}

	homeDir, err := home.New(cfg.DefraConfig.HomePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	s := &Server{
		defraManager: defraManager,
		configMgr:    cfg.ConfigManager,
		home:         homeDir,
		logger:       cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		DefraManager:    defraManager,
		SwaggerSpecPath: cfg.SwaggerSpecPath,
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and DefraDB.
// It blocks until the context is cancelled or an error occurs.
// If an existing DefraDB container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Validate any existing container matches our config
	if err := s.defraManager.ValidateExisting(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("existing DefraDB container incompatible: %w", err)
	}

	// Start DefraDB
	s.logger.Info("starting DefraDB")
	if err := s.defraManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start DefraDB: %w", err)
	}

	// Create client after DefraDB is up
	s.defraClient = defra.NewClient(s.defraManager.URL())

	// Verify DefraDB is healthy
	if err := s.defraClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up DefraDB on failure
		return fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", s.defraManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.defraClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Batched write sink for asset rows and bulk mutations
	s.defraSink = defra.NewSink(defra.SinkConfig{
		Client: s.defraClient,
		Logger: s.logger,
	})
	s.defraSink.Start(ctx)

	// Seed runtime settings on first run
	configStore := config.NewStore(s.defraClient)
	if err := config.SeedDefaults(ctx, configStore, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("config seeding failed: %w", err)
	}

	// Create job manager
	s.jobManager = jobs.NewManager(s.defraClient, s.logger)

	// Assemble the service graph from file config
	fileCfg := config.DefaultConfig()
	if s.configMgr != nil {
		fileCfg = s.configMgr.Get()
	}
	s.setServices(s.buildServices(fileCfg, configStore))

	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			s.setServices(s.buildServices(c, configStore))
			s.logger.Info("services rebuilt from config")
		})
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up DefraDB on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildServices wires provider clients and the problem pipeline from file
// config. The storage client and AI classifier are optional: without S3
// credentials uploads fall back to public URLs, and without an OpenAI key
// classification runs on the keyword heuristic.
func (s *Server) buildServices(cfg *config.Config, store config.Store) *svcctx.Services {
	ocrClient := ocr.NewClient(ocr.Config{
		AppID:      config.ResolveEnvVars(cfg.Mathpix.AppID),
		AppKey:     config.ResolveEnvVars(cfg.Mathpix.AppKey),
		BaseURL:    cfg.Mathpix.BaseURL,
		Timeout:    time.Duration(cfg.Mathpix.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Mathpix.MaxRetries,
	})

	var classifier classify.Classifier = classify.Heuristic{}
	if key := config.ResolveEnvVars(cfg.AI.APIKey); key != "" {
		ai, err := classify.NewAIClassifier(classify.AIConfig{
			APIKey:  key,
			Model:   cfg.AI.Model,
			BaseURL: cfg.AI.BaseURL,
			Logger:  s.logger,
		})
		if err != nil {
			s.logger.Warn("AI classifier unavailable, using heuristic", "error", err)
		} else {
			classifier = ai
		}
	}

	var (
		store3    *storage.Client
		extractor *assets.Extractor
	)
	if cfg.Storage.Bucket != "" && config.ResolveEnvVars(cfg.Storage.AccessKey) != "" {
		store3 = storage.New(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: config.ResolveEnvVars(cfg.Storage.AccessKey),
			SecretKey: config.ResolveEnvVars(cfg.Storage.SecretKey),
		})
		extractor = assets.NewExtractor(store3, cfg.Storage.AssetPrefix, s.logger)
	} else {
		s.logger.Warn("object storage not configured, asset extraction disabled")
	}

	units := curriculum.NewDirectory(curriculum.DefaultUnits())
	repo := problems.NewRepository(s.defraClient, s.defraSink, s.logger)

	return &svcctx.Services{
		DefraClient:  s.defraClient,
		DefraSink:    s.defraSink,
		JobManager:   s.jobManager,
		OCRClient:    ocrClient,
		Classifier:   classifier,
		Storage:      store3,
		Problems:     repo,
		Materializer: problems.NewMaterializer(repo, s.jobManager, units, extractor, s.logger),
		Curriculum:   units,
		ConfigStore:  store,
		Logger:       s.logger,
		Home:         s.home,
		UploadPrefix: cfg.Storage.UploadPrefix,
	}
}

func (s *Server) setServices(svcs *svcctx.Services) {
	s.mu.Lock()
	s.services = svcs
	s.mu.Unlock()
}

// shutdown performs graceful shutdown of both HTTP server and DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drain pending writes before the database goes away
	if s.defraSink != nil {
		s.defraSink.Stop()
	}

	// Stop DefraDB
	s.logger.Info("stopping DefraDB")
	if err := s.defraManager.Stop(shutdownCtx); err != nil {
		s.logger.Error("DefraDB stop error", "error", err)
	}

	// Close Docker client
	if err := s.defraManager.Close(); err != nil {
		s.logger.Error("DefraDB manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// DefraClient returns the DefraDB client.
// Returns nil if the server hasn't started yet.
func (s *Server) DefraClient() *defra.Client {
	return s.defraClient
}

// JobManager returns the job manager.
// Returns nil if the server hasn't started yet.
func (s *Server) JobManager() *jobs.Manager {
	return s.jobManager
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		svcs := s.services
		s.mu.RUnlock()

		ctx := r.Context()
		if svcs != nil {
			ctx = svcctx.WithServices(ctx, svcs)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if DefraDB or job manager aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.defraClient == nil || s.jobManager == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
