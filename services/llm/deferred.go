package llm

import (
	"context"
	"sync"
)

// DeferredClient builds its backend on the first Generate call.
//
// Processes that may never call the model (plan listing, task updates)
// use it so a missing credential only surfaces when synthesis runs. A
// failed build is not cached; the next call tries again.
type DeferredClient struct {
	cfg Config

	mu     sync.Mutex
	client LLMClient
}

// NewDeferredClient returns a client for cfg without contacting or
// validating the backend.
func NewDeferredClient(cfg Config) *DeferredClient {
	return &DeferredClient{cfg: cfg}
}

func (d *DeferredClient) backend(ctx context.Context) (LLMClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	client, err := NewClient(ctx, d.cfg)
	if err != nil {
		return nil, err
	}
	d.client = client
	return client, nil
}

// Generate builds the backend if needed and forwards the call.
func (d *DeferredClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	client, err := d.backend(ctx)
	if err != nil {
		return "", err
	}
	return client.Generate(ctx, prompt, params)
}

var _ LLMClient = (*DeferredClient)(nil)
