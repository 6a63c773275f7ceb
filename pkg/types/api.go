package types

// Response headers set on every successful /generate call. They always
// describe the artifact that produced the output.
const (
	HeaderModelVersion = "X-Model-Version"
	HeaderModelRepoID  = "X-Model-Repo-Id"
)

// GenerateRequest represents a serve request payload.
type GenerateRequest struct {
	// Required input text.
	// example: What is machine learning?
	Input string `json:"input"`
	// Optional system prompt prepended by the engine.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty"`
	// Sampling temperature (0 = greedy).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	Output string `json:"output"`
}

// UpdateModelRequest asks a replica to load and swap to an artifact.
type UpdateModelRequest struct {
	// example: Qwen/Qwen2.5-7B-Instruct
	ArtifactID string `json:"artifact_id"`
}

// UpdateModelResponse acknowledges an accepted update. The load itself
// runs in the background; poll GET /status for the outcome.
type UpdateModelResponse struct {
	OK         bool   `json:"ok"`
	ArtifactID string `json:"artifact_id"`
	Message    string `json:"message"`
}

// StatusResponse is returned by GET /status and polled by the orchestrator.
type StatusResponse struct {
	// Monotonic swap counter, starts at 1.
	// example: 3
	Version int64 `json:"version"`
	// Artifact currently served (or being initially loaded).
	ArtifactID string `json:"artifact_id"`
	// True while an update attempt is in flight.
	Updating bool `json:"updating"`
	// Diagnostic of the last failed attempt, cleared when a new attempt starts.
	LastError string `json:"last_error,omitempty"`
	// True once an artifact has been loaded successfully.
	Ready bool `json:"ready"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready      bool   `json:"ready"`
	Message    string `json:"message,omitempty"`
	ArtifactID string `json:"artifact_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// example: invalid JSON body
	Error string `json:"error"`
	// example: 400
	Code int `json:"code"`
}
