package wsola

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ByteSource is the external byte-stream collaborator the dispatcher pulls
// from: a decoder or file reader exposing its AudioFormat alongside raw
// interleaved PCM bytes.
type ByteSource interface {
	// Read behaves like io.Reader: it returns the number of bytes read,
	// which may be fewer than len(p), and signals end of stream with
	// io.EOF.
	Read(p []byte) (int, error)
	// Skip advances the stream by n bytes and reports how many bytes were
	// actually skipped.
	Skip(n int64) (int64, error)
	Format() AudioFormat
	Close() error
}

// AudioSink is the external playback collaborator the chain eventually
// writes decoded, processed bytes to.
type AudioSink interface {
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

// AudioDispatcher owns the byte stream and drives the pull pipeline: decode
// raw bytes into a reusable float buffer, maintain overlap across reads, and
// push each resulting AudioEvent through a ProcessorChain.
type AudioDispatcher struct {
	source ByteSource
	format AudioFormat
	math   SampleMath
	chain  *ProcessorChain

	frameSize int

	bufferSize SampleIndex
	overlap    SampleIndex
	step       SampleIndex
	byteStep   int

	zeroPadFirst bool
	zeroPadLast  bool

	floatBuf *FloatBuffer
	byteBuf  []byte
	scratch  []float64

	bytesToSkip    int64
	bytesProcessed int64
	totalBytes     int64

	stopped atomic.Bool
	started atomic.Bool

	event *AudioEvent
	log   *log.Logger
}

// NewAudioDispatcher validates its configuration and returns a dispatcher
// reading from source, pushing events through chain. bufferSize and overlap
// are expressed in frames; 0 <= overlap < bufferSize must hold.
func NewAudioDispatcher(source ByteSource, chain *ProcessorChain, bufferSize, overlap SampleIndex, zeroPadFirst, zeroPadLast bool) (*AudioDispatcher, error) {
	if overlap < 0 || overlap >= bufferSize {
		return nil, fmt.Errorf("wsola: invalid dispatcher geometry: overlap=%d bufferSize=%d", overlap, bufferSize)
	}
	format := source.Format()

	d := &AudioDispatcher{
		source:       source,
		format:       format,
		math:         NewSampleMath(format.Channels),
		chain:        chain,
		frameSize:    format.FrameSize(),
		zeroPadFirst: zeroPadFirst,
		zeroPadLast:  zeroPadLast,
		floatBuf:     NewFloatBuffer(format.Channels, int(bufferSize)),
		log:          log.Default().With("component", "dispatcher"),
		event:        NewAudioEvent(format),
	}
	if err := d.setGeometryLocked(bufferSize, overlap); err != nil {
		return nil, err
	}
	return d, nil
}

// setGeometryLocked recomputes step/byteStep/byteBuf/scratch for a new
// (bufferSize, overlap) pair. Called both from the constructor and from
// SetStepAndOverlap.
func (d *AudioDispatcher) setGeometryLocked(bufferSize, overlap SampleIndex) error {
	if overlap < 0 || overlap >= bufferSize {
		return fmt.Errorf("wsola: invalid dispatcher geometry: overlap=%d bufferSize=%d", overlap, bufferSize)
	}
	d.bufferSize = bufferSize
	d.overlap = overlap
	d.step = bufferSize - overlap
	d.byteStep = int(d.step) * d.frameSize

	canonical := int(bufferSize) * d.frameSize
	if cap(d.byteBuf) < canonical {
		d.byteBuf = make([]byte, canonical)
	} else {
		d.byteBuf = d.byteBuf[:canonical]
	}
	scratchLen := int(d.math.ToArrayIndex(bufferSize))
	if cap(d.scratch) < scratchLen {
		d.scratch = make([]float64, scratchLen)
	} else {
		d.scratch = d.scratch[:scratchLen]
	}
	return nil
}

// SetStepAndOverlap reallocates the dispatcher's buffers for a new geometry.
// Must only be called between frames — in practice, synchronously from a
// processor's Process method on the worker goroutine, the way WSOLA's
// back-channel calls it when its tempo-derived sizes change.
func (d *AudioDispatcher) SetStepAndOverlap(bufferSize, overlap SampleIndex) error {
	return d.setGeometryLocked(bufferSize, overlap)
}

// Skip configures the dispatcher to skip the given duration, in seconds,
// before the first read. Must be called before Run.
func (d *AudioDispatcher) Skip(seconds float64) error {
	if d.started.Load() {
		return fmt.Errorf("wsola: Skip called after Run started")
	}
	frames := SampleIndex(int64(seconds*d.format.SampleRate + 0.5))
	d.bytesToSkip = int64(frames) * int64(d.frameSize)
	return nil
}

// SetTotalBytes records a caller-supplied total stream length, in bytes,
// used only to compute Progress.
func (d *AudioDispatcher) SetTotalBytes(n int64) {
	d.totalBytes = n
}

// Progress returns bytes-processed / total-bytes, or 0 if no total was set.
func (d *AudioDispatcher) Progress() float64 {
	if d.totalBytes <= 0 {
		return 0
	}
	return float64(d.bytesProcessed) / float64(d.totalBytes)
}

// Stop requests that the run loop exit at the next loop boundary. Safe to
// call from any goroutine.
func (d *AudioDispatcher) Stop() {
	d.stopped.Store(true)
}

// Stopped reports whether Stop has been called or the stream has ended.
func (d *AudioDispatcher) Stopped() bool {
	return d.stopped.Load()
}

// readFull reads into dst until it is full, EOF is reached, or Stop is
// called, returning the number of bytes actually placed and whether EOF was
// observed.
func (d *AudioDispatcher) readFull(dst []byte) (total int, eof bool, err error) {
	for total < len(dst) {
		if d.stopped.Load() {
			return total, false, nil
		}
		n, rerr := d.source.Read(dst[total:])
		total += n
		if rerr == io.EOF {
			return total, true, nil
		}
		if rerr != nil {
			return total, false, rerr
		}
		if n == 0 {
			return total, false, fmt.Errorf("wsola: byte source returned 0 bytes without EOF")
		}
	}
	return total, false, nil
}

// Run executes the dispatcher's pull loop on the calling goroutine — the
// worker thread, by convention. It returns when the stream ends or Stop is
// called, having invoked Finished exactly once on every processor that was
// ever in the chain.
func (d *AudioDispatcher) Run() error {
	d.started.Store(true)

	defer func() {
		d.stopped.Store(true)
		d.chain.FinishAll()
		if cerr := d.source.Close(); cerr != nil {
			d.log.Error("closing byte source", "err", cerr)
		}
	}()

	if d.bytesToSkip > 0 {
		skipped, serr := d.source.Skip(d.bytesToSkip)
		if serr != nil {
			return fmt.Errorf("wsola: skip: %w", serr)
		}
		if skipped != d.bytesToSkip {
			return fmt.Errorf("%w: requested %d, got %d", ErrShortSkip, d.bytesToSkip, skipped)
		}
	}

	first := true
	emittedFinalPad := false
	for !d.stopped.Load() {
		if emittedFinalPad {
			break
		}

		requestFrames, destOffset, overlapForEvent, isFirstFullRead := d.nextReadShape(first)

		if !isFirstFullRead {
			if err := d.floatBuf.RetainTail(d.overlap); err != nil && err != io.EOF {
				return fmt.Errorf("wsola: retaining overlap tail: %w", err)
			}
			if first && d.zeroPadFirst {
				d.floatBuf.Reset()
				if err := d.floatBuf.WriteZeroFrames(d.overlap); err != nil {
					return fmt.Errorf("wsola: zero-padding first buffer: %w", err)
				}
			}
		} else {
			d.floatBuf.Reset()
		}

		byteLen := int(requestFrames) * d.frameSize
		dst := d.byteBuf[destOffset : destOffset+byteLen]
		n, eof, rerr := d.readFull(dst)
		if rerr != nil {
			return fmt.Errorf("wsola: read: %w", rerr)
		}

		if n == 0 && (!eof || !d.zeroPadLast) {
			// Either genuinely nothing left to pad (zero-pad-last is off,
			// or already handled by a prior iteration), or stop fired
			// before any bytes arrived: nothing new to emit.
			break
		}

		samplesNew := SampleIndex(n / d.frameSize)
		full := n == byteLen

		if !full {
			if d.stopped.Load() && n != 0 {
				// Stop fired mid-block: discard the partial block, per the
				// "worker exits within one block" cancellation contract.
				break
			}
			if !eof {
				return fmt.Errorf("%w: expected %d bytes, got %d", ErrUnexpectedPartialRead, byteLen, n)
			}
			if d.zeroPadLast {
				for i := destOffset + n; i < destOffset+byteLen; i++ {
					d.byteBuf[i] = 0
				}
				samplesNew = requestFrames
				emittedFinalPad = true
			}
		}

		arrLen := int(d.math.ToArrayIndex(samplesNew))
		scratch := d.scratch[:arrLen]
		if err := DecodeBytes(d.byteBuf[destOffset:destOffset+int(samplesNew)*d.frameSize], d.format.Enc, scratch); err != nil {
			return fmt.Errorf("wsola: decode: %w", err)
		}
		if err := d.floatBuf.WriteFrames(scratch); err != nil {
			return fmt.Errorf("wsola: buffering decoded frames: %w", err)
		}

		d.bytesProcessed += int64(n)

		actualByteLen := int(samplesNew) * d.frameSize
		d.event.Float = d.floatBuf.Samples()
		d.event.Bytes = d.byteBuf[:destOffset+actualByteLen]
		d.event.Overlap = overlapForEvent
		d.event.BytesProcessed = d.bytesProcessed
		d.event.Channels = d.format.Channels
		d.event.RatioOutToIn = 1

		d.chain.ForEach(func(p AudioProcessor) bool {
			return p.Process(d.event)
		})

		first = false
	}

	return nil
}

// nextReadShape computes the read geometry for the next block, per the
// dispatcher's block read policy table: a first read with zero-pad-first
// disabled consumes a full canonical buffer from byte offset 0 with no
// retained overlap; every other read consumes one step's worth of fresh
// bytes appended after the retained overlap tail.
func (d *AudioDispatcher) nextReadShape(first bool) (requestFrames SampleIndex, destOffset int, overlapForEvent SampleIndex, isFirstFullRead bool) {
	if first && !d.zeroPadFirst {
		return d.bufferSize, 0, 0, true
	}
	byteOverlap := int(d.overlap) * d.frameSize
	return d.step, byteOverlap, d.overlap, false
}
