package jobs

import (
	"context"
	"sync"
)

// cancelRegistry tracks one context.CancelFunc per running job id, the
// "cancellation signal threaded through every blocking call" spec §5
// requires without a fabricated distributed cancellation bus (SPEC_FULL
// §10.5).
type cancelRegistry struct {
	mu    sync.Mutex
	funcs map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{funcs: make(map[string]context.CancelFunc)}
}

// register derives a cancellable context for jobID from parent and
// records its CancelFunc.
func (r *cancelRegistry) register(parent context.Context, jobID string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.funcs[jobID] = cancel
	r.mu.Unlock()
	return ctx
}

// release forgets jobID's CancelFunc once its worker returns.
func (r *cancelRegistry) release(jobID string) {
	r.mu.Lock()
	delete(r.funcs, jobID)
	r.mu.Unlock()
}

// cancel invokes jobID's CancelFunc if it is still running, returning
// false if the job was already finished (or unknown).
func (r *cancelRegistry) cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.funcs[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
