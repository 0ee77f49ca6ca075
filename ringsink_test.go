package wsola

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	written []byte
	closed  bool
	drained int
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, p...)
	return len(p), nil
}
func (s *recordingSink) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained++
	return nil
}
func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
func (s *recordingSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

func TestBufferedSink_ForwardsBytesInOrder(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, 1024)

	n, err := sink.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = sink.Write([]byte("world"))
	require.NoError(t, err)

	require.NoError(t, sink.Drain())
	assert.Equal(t, "hello world", string(underlying.bytes()))
}

func TestBufferedSink_CloseFlushesAndClosesUnderlying(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, 1024)

	_, err := sink.Write([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	assert.True(t, underlying.closed)
	assert.Equal(t, "payload", string(underlying.bytes()))
}

func TestBufferedSink_WriteLargerThanRingCompletes(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, 4)

	done := make(chan struct{})
	go func() {
		_, _ = sink.Write(make([]byte, 64))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write did not complete; drain goroutine likely stalled")
	}
	require.NoError(t, sink.Close())
}
