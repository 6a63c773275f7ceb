// Package engine defines the boundary to the external inference engine and
// ships the engines the replica daemon can run with:
//
//   - sim: an in-process simulated engine for development and tests.
//   - llama: in-process go-llama.cpp, compiled with `-tags=llama`.
//     Without the tag a stub reports the dependency as unavailable.
//   - remote: an OpenAI-compatible completion server (e.g. llama.cpp server).
//
// Loading is the expensive step; a Handle is only ever returned fully loaded.
package engine

import (
	"context"
	"strings"
)

// Loader loads an artifact by id. It may block for a long time and must
// return either a ready Handle or an error, never a partial Handle.
type Loader interface {
	Load(ctx context.Context, artifactID string) (Handle, error)
}

// Handle is a loaded, ready-to-serve artifact.
type Handle interface {
	// Run executes one request. Implementations must be safe for concurrent use.
	Run(ctx context.Context, req Request) (string, error)
	// Close releases resources associated with the handle.
	Close() error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, artifactID string) (Handle, error)

func (f LoaderFunc) Load(ctx context.Context, artifactID string) (Handle, error) {
	return f(ctx, artifactID)
}

// Request is a single serve call.
type Request struct {
	Input        string
	SystemPrompt string
	Params       Params
}

// Params captures generation parameters passed to the engine.
type Params struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// DefaultMaxTokens is applied when a request leaves MaxTokens unset.
const DefaultMaxTokens = 128

// FormatPrompt joins an optional system prompt and the input the way plain
// completion models expect it.
func FormatPrompt(system, input string) string {
	if strings.TrimSpace(system) == "" {
		return input
	}
	return system + "\n\n" + input
}
