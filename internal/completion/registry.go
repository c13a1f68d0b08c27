package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ProviderFactory builds a Provider bound to a model name.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry routes (provider name, model) pairs to factories. Tenants carry
// their own provider/model settings, so the worker registers every backend
// it supports once and resolves per conversation.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown completion provider: %s", name)
	}
	return f(ctx, model)
}
