package yolodetect

import (
	"sync"
)

// Pool holds multiple instances of the same Model so concurrent detect
// calls can each run against their own session
type Pool struct {
	// pool of models
	models chan Model
	// size of pool
	size   int
	mu     sync.Mutex
	closed bool
}

// NewPool creates a new model pool, calling factory once per instance
func NewPool(size int, factory func() (Model, error)) (*Pool, error) {
	p := &Pool{
		models: make(chan Model, size),
		size:   size,
	}

	for i := 0; i < size; i++ {
		m, err := factory()

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(m)
	}

	return p, nil
}

// Get a model from the pool, blocking until one is available
func (p *Pool) Get() Model {
	return <-p.models
}

// Return a model to the pool.  A model handed back after Close is destroyed
// instead of pooled.
func (p *Pool) Return(m Model) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		destroyModel(m)
		return
	}

	select {
	case p.models <- m:
	default:
		// pool is full
	}
}

// Close the pool and destroy all models in it.  Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	p.mu.Unlock()

	// close channel and destroy pooled models
	close(p.models)

	for next := range p.models {
		destroyModel(next)
	}
}

// destroyModel releases a model that supports explicit destruction
func destroyModel(m Model) {
	if d, ok := m.(interface{ Destroy() error }); ok {
		_ = d.Destroy()
	}
}
