package wsola

import (
	"io"
	"runtime"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// BufferedSink decouples the dispatcher worker's blocking Write from an
// underlying AudioSink's own pacing (§5 "Suspension points": the worker
// blocks in the sink's write, which is itself blocking back-pressure) by
// interposing a lock-free byte ring and a dedicated drain goroutine. It is
// optional — Player accepts a raw AudioSink directly — and exists for
// embedding applications that want the worker to hand bytes off instead of
// riding the sink's own blocking pace.
type BufferedSink struct {
	underlying AudioSink
	ring       *ringbuffer.RingBuffer

	drainOnce sync.Once
	drainErr  chan error
}

// NewBufferedSink wraps underlying in a ring buffer of the given byte
// capacity and starts the drain goroutine.
func NewBufferedSink(underlying AudioSink, capacity int) *BufferedSink {
	rb := ringbuffer.New(capacity).SetBlocking(true)
	b := &BufferedSink{
		underlying: underlying,
		ring:       rb,
		drainErr:   make(chan error, 1),
	}
	go b.drain()
	return b
}

// drain copies bytes out of the ring and into the underlying sink until the
// ring is closed, at which point it reports the first write error it saw
// (if any) on drainErr.
func (b *BufferedSink) drain() {
	buf := make([]byte, 32*1024)
	var firstErr error
	for {
		n, err := b.ring.Read(buf)
		if n > 0 {
			if _, werr := b.underlying.Write(buf[:n]); werr != nil && firstErr == nil {
				firstErr = werr
			}
		}
		if err != nil {
			if err == io.EOF {
				b.drainErr <- firstErr
				return
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
}

// Write implements AudioSink: it blocks until the ring has room, providing
// the same back-pressure contract as writing directly to the underlying
// sink, just decoupled in time.
func (b *BufferedSink) Write(p []byte) (int, error) {
	return b.ring.Write(p)
}

// Drain blocks until every byte written so far has reached the underlying
// sink, then forwards to the underlying sink's own Drain.
func (b *BufferedSink) Drain() error {
	for b.ring.Length() > 0 {
		runtime.Gosched()
	}
	return b.underlying.Drain()
}

// Close closes the ring (unblocking the drain goroutine), waits for it to
// finish flushing, and closes the underlying sink.
func (b *BufferedSink) Close() error {
	var err error
	b.drainOnce.Do(func() {
		b.ring.CloseWriter()
		if derr := <-b.drainErr; derr != nil {
			err = derr
		}
	})
	if uerr := b.underlying.Close(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
