package config

// Config holds mathhub configuration.
// Stored at: ~/.mathhub/config.yaml
type Config struct {
	APIKeys  map[string]string `mapstructure:"api_keys" yaml:"api_keys"` // Supports ${ENV_VAR} syntax
	Mathpix  MathpixCfg        `mapstructure:"mathpix" yaml:"mathpix"`
	AI       AICfg             `mapstructure:"ai" yaml:"ai"`
	Storage  StorageCfg        `mapstructure:"storage" yaml:"storage"`
	Defaults DefaultsCfg       `mapstructure:"defaults" yaml:"defaults"`
	Defra    DefraConfig       `mapstructure:"defra" yaml:"defra"`
}

// MathpixCfg configures the OCR provider client.
type MathpixCfg struct {
	AppID          string `mapstructure:"app_id" yaml:"app_id"`
	AppKey         string `mapstructure:"app_key" yaml:"app_key"` // Supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// AICfg configures the AI classification client.
type AICfg struct {
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// StorageCfg configures the S3-compatible object store.
type StorageCfg struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	Region       string `mapstructure:"region" yaml:"region"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key"` // Supports ${ENV_VAR} syntax
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key"` // Supports ${ENV_VAR} syntax
	AssetPrefix  string `mapstructure:"asset_prefix" yaml:"asset_prefix"`
	UploadPrefix string `mapstructure:"upload_prefix" yaml:"upload_prefix"`
}

// DefaultsCfg holds pipeline tuning defaults.
type DefaultsCfg struct {
	MinConfidence     int    `mapstructure:"min_confidence" yaml:"min_confidence"`           // Materialization threshold (0-100)
	ClassifyBatchSize int    `mapstructure:"classify_batch_size" yaml:"classify_batch_size"` // Candidates per classify step
	SyncPollAttempts  int    `mapstructure:"sync_poll_attempts" yaml:"sync_poll_attempts"`   // Bounded provider polling
	SyncPollSeconds   int    `mapstructure:"sync_poll_seconds" yaml:"sync_poll_seconds"`     // Delay between polls
	MinAxisArtifacts  int    `mapstructure:"min_axis_artifacts" yaml:"min_axis_artifacts"`   // Axis-noise filter threshold
	CurriculumCode    string `mapstructure:"curriculum_code" yaml:"curriculum_code"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: mathhub-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIKeys: map[string]string{
			"mathpix": "${MATHPIX_APP_KEY}",
			"openai":  "${OPENAI_API_KEY}",
		},
		Mathpix: MathpixCfg{
			AppKey:         "${MATHPIX_APP_KEY}",
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
		AI: AICfg{
			Model:  "gpt-4o-mini",
			APIKey: "${OPENAI_API_KEY}",
		},
		Storage: StorageCfg{
			Region:       "ap-northeast-2",
			Bucket:       "mathhub-scans",
			AccessKey:    "${MATHHUB_S3_ACCESS_KEY}",
			SecretKey:    "${MATHHUB_S3_SECRET_KEY}",
			AssetPrefix:  "ocr-problem-assets",
			UploadPrefix: "ocr-uploads",
		},
		Defaults: DefaultsCfg{
			MinConfidence:     60,
			ClassifyBatchSize: 10,
			SyncPollAttempts:  60,
			SyncPollSeconds:   5,
			MinAxisArtifacts:  3,
			CurriculumCode:    "2015",
		},
		Defra: DefraConfig{
			ContainerName: "mathhub-defra",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
	}
}

// ResolveAPIKey returns the API key for a provider with ${ENV_VAR}
// references expanded.
func (c *Config) ResolveAPIKey(name string) string {
	return ResolveEnvVars(c.APIKeys[name])
}
