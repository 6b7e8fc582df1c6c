package yolodetect

import (
	"fmt"
	"sync"
)

// BufferPool holds a set of named float32 buffer pools
type BufferPool struct {
	mu    sync.Mutex
	pools map[string]*bufferEntry
	// outstanding counts buffers drawn and not yet returned
	outstanding int
}

// bufferEntry defines a single buffer
type bufferEntry struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool returns an empty BufferPool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pools: make(map[string]*bufferEntry),
	}
}

// Create registers a new pool under 'name' that will produce buffers
// up to maxSize. Calling it twice with the same name returns an error.
func (b *BufferPool) Create(name string, maxSize int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pools[name]; exists {
		return fmt.Errorf("buffer pool %q already exists", name)
	}

	entry := &bufferEntry{maxSize: maxSize}

	entry.pool.New = func() any {
		return make([]float32, maxSize)
	}

	b.pools[name] = entry
	return nil
}

// get returns a []float32 slice of length 'size' from the named pool,
// creating the pool on first use.  If size > maxSize it allocates a new
// slice of exactly size.
func (b *BufferPool) get(name string, size int) []float32 {
	b.mu.Lock()
	b.outstanding++
	entry, ok := b.pools[name]

	if !ok {
		entry = &bufferEntry{maxSize: size}
		max := size
		entry.pool.New = func() any {
			return make([]float32, max)
		}
		b.pools[name] = entry
	}
	b.mu.Unlock()

	buf := entry.pool.Get().([]float32)

	if cap(buf) < size {
		return make([]float32, size)
	}

	// get buffer of required size
	buf = buf[:size]

	// zero out the buffer
	for i := range buf {
		buf[i] = 0
	}

	return buf
}

// put returns a buffer back into its named pool
func (b *BufferPool) put(name string, buf []float32) {
	b.mu.Lock()
	b.outstanding--
	entry, ok := b.pools[name]
	b.mu.Unlock()

	if !ok {
		return
	}

	if cap(buf) < entry.maxSize {
		return
	}

	// restore to full capacity so it matches entry.New next time
	entry.pool.Put(buf[:entry.maxSize])
}

// Outstanding returns the number of buffers currently drawn from the pool
// and not yet returned.  A detect call that has fully released its arena
// leaves this at zero.
func (b *BufferPool) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outstanding
}

// Arena owns every intermediate allocation made during a single detect call.
// Pipeline steps draw scratch buffers from it and register cleanups with it,
// a single Release call at call scope exit frees everything on both success
// and failure paths.  An Arena must not be shared between concurrent detect
// calls.
type Arena struct {
	pool     *BufferPool
	cleanups []func()
	released bool
}

// NewArena returns an Arena drawing buffers from the given pool.  A nil pool
// is allowed, buffers are then plain allocations left to the garbage
// collector.
func NewArena(pool *BufferPool) *Arena {
	return &Arena{
		pool: pool,
	}
}

// Float32s returns a zeroed scratch buffer of length n scoped to this arena.
// The buffer is returned to the backing pool when the arena is released and
// must not be retained past that point.
func (a *Arena) Float32s(name string, n int) []float32 {

	if a.pool == nil {
		return make([]float32, n)
	}

	buf := a.pool.get(name, n)

	a.Defer(func() {
		a.pool.put(name, buf)
	})

	return buf
}

// Defer registers a cleanup to run when the arena is released.  Cleanups run
// in reverse registration order.
func (a *Arena) Defer(f func()) {
	a.cleanups = append(a.cleanups, f)
}

// Release frees every registered intermediate.  It is idempotent so it can
// be deferred at scope open and also called early.
func (a *Arena) Release() {

	if a.released {
		return
	}

	a.released = true

	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}

	a.cleanups = nil
}
