//go:build llama

package engine

// The rpath of $ORIGIN lets the loader find libllama.so next to the binary.

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"

import (
	"context"
	"errors"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelswap/pkg/types"
)

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = true

// Llama loads GGUF artifacts in-process through go-llama.cpp.
type Llama struct {
	resolver Resolver
	ctxSize  int
	threads  int
}

// NewLlama constructs the in-process engine. Artifact ids are resolved to
// on-disk paths through resolver.
func NewLlama(resolver Resolver, ctxSize, threads int) *Llama {
	return &Llama{resolver: resolver, ctxSize: ctxSize, threads: threads}
}

func (l *Llama) Load(ctx context.Context, artifactID string) (Handle, error) {
	art, ok := l.lookup(artifactID)
	if !ok {
		return nil, ErrArtifactNotFound(artifactID)
	}
	type result struct {
		m   *llama.LLama
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := llama.New(art.Path, llama.SetContext(l.ctxSize))
		done <- result{m: m, err: err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return &llamaHandle{model: r.m, threads: l.threads}, nil
	case <-ctx.Done():
		// Free the model once the abandoned load completes.
		go func() {
			if r := <-done; r.m != nil {
				r.m.Free()
			}
		}()
		return nil, ctx.Err()
	}
}

func (l *Llama) lookup(id string) (types.Artifact, bool) {
	if l.resolver == nil {
		return types.Artifact{}, false
	}
	return l.resolver.Lookup(id)
}

// llamaHandle owns the loaded model. go-llama.cpp models are not safe for
// concurrent prediction, so Run is serialized.
type llamaHandle struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

func (h *llamaHandle) Run(ctx context.Context, req Request) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return "", errors.New("llama model not initialized")
	}
	h.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := h.model.Predict(FormatPrompt(req.SystemPrompt, req.Input), predictOptions(req.Params, h.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(p.MaxTokens, DefaultMaxTokens)),
		llama.SetThreads(zn(threads, 1)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
