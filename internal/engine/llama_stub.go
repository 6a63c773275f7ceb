//go:build !llama

package engine

import "context"

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = false

// Llama refuses to load anything when built without the 'llama' tag, keeping
// default builds CGO-free.
type Llama struct {
	resolver Resolver
	ctxSize  int
	threads  int
}

func NewLlama(resolver Resolver, ctxSize, threads int) *Llama {
	return &Llama{resolver: resolver, ctxSize: ctxSize, threads: threads}
}

func (l *Llama) Load(ctx context.Context, artifactID string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
