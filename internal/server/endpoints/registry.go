package endpoints

import (
	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DefraManager    *defra.DockerManager
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},

		// Upload endpoints
		&PresignUploadEndpoint{},

		// Job endpoints
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&DeleteJobEndpoint{},
		&CancelJobEndpoint{},
		&SubmitJobEndpoint{},
		&SyncJobEndpoint{},
		&ListJobPagesEndpoint{},
		&ListCandidatesEndpoint{},
		&ClassifyJobEndpoint{},
		&MaterializeJobEndpoint{},

		// Problem endpoints
		&ListProblemsEndpoint{},
		&GetProblemEndpoint{},
		&ReviewProblemEndpoint{},

		// Curriculum endpoints
		&ListUnitsEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}

// JobCommands returns the endpoints grouped under the "jobs" CLI subcommand.
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&DeleteJobEndpoint{},
		&CancelJobEndpoint{},
		&SubmitJobEndpoint{},
		&SyncJobEndpoint{},
		&ListJobPagesEndpoint{},
		&ListCandidatesEndpoint{},
		&ClassifyJobEndpoint{},
		&MaterializeJobEndpoint{},
	}
}

// ProblemCommands returns the endpoints grouped under the "problems" CLI
// subcommand.
func ProblemCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListProblemsEndpoint{},
		&GetProblemEndpoint{},
		&ReviewProblemEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
	}
}
