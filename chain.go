package wsola

import "sync"

// AudioProcessor is the capability every chain member implements: Process
// mutates event and returns whether the chain should continue to the next
// processor for this event; Finished is called exactly once, either when the
// processor is removed from the chain or when the chain itself is torn down.
type AudioProcessor interface {
	Process(event *AudioEvent) bool
	Finished()
}

// ProcessorChain is a concurrency-safe ordered list of AudioProcessor. Reads
// (ForEach) take a stable snapshot so that Add/Remove from another goroutine
// never corrupts an in-progress iteration and insertion order survives every
// snapshot.
type ProcessorChain struct {
	mu         sync.Mutex
	processors []AudioProcessor
}

// NewProcessorChain returns an empty chain.
func NewProcessorChain() *ProcessorChain {
	return &ProcessorChain{}
}

// Add appends p to the chain. It takes effect starting with the next event
// ForEach processes; a ForEach already in progress does not see it.
func (c *ProcessorChain) Add(p AudioProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]AudioProcessor, len(c.processors)+1)
	copy(next, c.processors)
	next[len(c.processors)] = p
	c.processors = next
}

// Remove detaches p from the chain and invokes p.Finished() exactly once.
// A no-op, without calling Finished, if p is not present.
func (c *ProcessorChain) Remove(p AudioProcessor) {
	c.mu.Lock()
	idx := -1
	for i, q := range c.processors {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	next := make([]AudioProcessor, 0, len(c.processors)-1)
	next = append(next, c.processors[:idx]...)
	next = append(next, c.processors[idx+1:]...)
	c.processors = next
	c.mu.Unlock()

	p.Finished()
}

// snapshot returns the current processor slice. Because Add/Remove always
// allocate a fresh backing array rather than mutating in place, the returned
// slice is safe to range over without holding the lock.
func (c *ProcessorChain) snapshot() []AudioProcessor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processors
}

// ForEach visits processors in insertion order against the snapshot taken at
// call time, stopping early if f returns false.
func (c *ProcessorChain) ForEach(f func(p AudioProcessor) bool) {
	for _, p := range c.snapshot() {
		if !f(p) {
			return
		}
	}
}

// Len returns the number of processors currently in the chain.
func (c *ProcessorChain) Len() int {
	return len(c.snapshot())
}

// Processors returns a debug-only copy of the chain's current members in
// insertion order.
func (c *ProcessorChain) Processors() []AudioProcessor {
	snap := c.snapshot()
	out := make([]AudioProcessor, len(snap))
	copy(out, snap)
	return out
}

// FinishAll invokes Finished exactly once on every processor currently in
// the chain, in insertion order, then empties the chain. Called by the
// dispatcher when its run loop exits.
func (c *ProcessorChain) FinishAll() {
	c.mu.Lock()
	snap := c.processors
	c.processors = nil
	c.mu.Unlock()

	for _, p := range snap {
		p.Finished()
	}
}
