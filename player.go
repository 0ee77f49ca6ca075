package wsola

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/waveforge/wsola-go/internal/metrics"
)

// PlayerState is one node of the Player's state machine.
type PlayerState int

const (
	NoFileLoaded PlayerState = iota
	FileLoaded
	Playing
	Paused
	Stopped
)

// String implements fmt.Stringer for log-friendly state names.
func (s PlayerState) String() string {
	switch s {
	case NoFileLoaded:
		return "NO_FILE_LOADED"
	case FileLoaded:
		return "FILE_LOADED"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("PlayerState(%d)", int(s))
	}
}

// SourceOpener is the caller-supplied collaborator Player.Load uses to turn
// a name into a ByteSource plus the stream's total frame count (0 if
// unknown), keeping file-format parsing out of the core package per the
// engine's Non-goals.
type SourceOpener interface {
	Open(name string) (source ByteSource, totalFrames int64, err error)
}

// Player is the state machine coordinating load/play/pause/stop, tempo/gain
// updates, and worker-goroutine lifecycle described by spec §4.7. It is the
// only component that spawns the worker goroutine; the controller
// (embedding application) calls Player methods and setters from its own
// goroutine and never touches dispatcher buffers directly.
type Player struct {
	mu sync.Mutex

	id      uuid.UUID
	opener  SourceOpener
	sink    AudioSink
	log     *log.Logger
	metrics *metrics.Metrics

	state      PlayerState
	source     ByteSource
	format     AudioFormat
	totalBytes int64

	dispatcher *AudioDispatcher
	chain      *ProcessorChain
	gainProc   *GainProcessor
	wsolaProc  *WSOLA
	resampProc *Resampler

	pendingGain  float64
	pendingTempo float64
	resumeAt     float64

	wg        sync.WaitGroup
	runErr    atomic.Pointer[error]
	observers []func(old, new PlayerState)
}

// WSOLADefaults are the "music defaults" window sizes referenced in spec §8
// scenario 3, used by Play whenever the caller has not installed its own
// WSOLAParams via SetWSOLAParams.
var WSOLADefaults = WSOLAParams{SequenceMs: 40, SeekWindowMs: 15, OverlapMs: 8}

// NewPlayer returns a Player with no file loaded, unity gain/tempo pending,
// writing its audio to sink.
func NewPlayer(opener SourceOpener, sink AudioSink) *Player {
	return &Player{
		id:           uuid.New(),
		opener:       opener,
		sink:         sink,
		log:          log.Default().With("component", "player"),
		state:        NoFileLoaded,
		pendingGain:  1.0,
		pendingTempo: 1.0,
	}
}

// ID returns the correlation UUID attached to every log line this Player
// emits and used as the "player" label on its metrics, so an embedding
// application running several players can demux them. Observer callbacks
// receive only the old and new state, not the ID.
func (p *Player) ID() uuid.UUID {
	return p.id
}

// SetMetrics installs the Prometheus metrics bundle this Player populates:
// state-transition counts and, per event, the §6 observable outputs (time
// stamp, progress) plus the current WSOLA seek-window size. Optional — a
// Player with no metrics installed runs identically, just unobserved.
func (p *Player) SetMetrics(m *metrics.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// Observe registers a listener invoked, on the caller's goroutine, every
// time the Player's state transitions. Multiple listeners may be
// registered; they run in registration order.
func (p *Player) Observe(f func(old, new PlayerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, f)
}

// State returns the Player's current state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// setStateLocked transitions the Player and fires observers after releasing
// the lock, so a listener calling back into the Player does not deadlock.
func (p *Player) setStateLocked(next PlayerState) {
	old := p.state
	p.state = next
	observers := append([]func(old, new PlayerState){}, p.observers...)
	id := p.id
	m := p.metrics
	p.mu.Unlock()
	p.log.Info("state transition", "player", id, "from", old, "to", next)
	m.ObserveTransition(id.String(), next.String())
	for _, f := range observers {
		f(old, next)
	}
	p.mu.Lock()
}

// Load opens name via the configured SourceOpener. If a file is already
// loaded (in any state), it is ejected first.
func (p *Player) Load(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != NoFileLoaded {
		if err := p.ejectLocked(); err != nil {
			return err
		}
	}

	source, totalFrames, err := p.opener.Open(name)
	if err != nil {
		return fmt.Errorf("wsola: load %q: %w", name, err)
	}
	p.source = source
	p.format = source.Format()
	p.totalBytes = totalFrames * int64(p.format.FrameSize())
	p.setStateLocked(FileLoaded)
	return nil
}

// Play starts (or resumes) playback from the beginning. Legal from
// FileLoaded, Paused, or Stopped only.
func (p *Player) Play() error {
	return p.play(0)
}

// PlayFrom starts playback seeking to startSeconds first.
func (p *Player) PlayFrom(startSeconds float64) error {
	return p.play(startSeconds)
}

func (p *Player) play(startSeconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case FileLoaded, Paused, Stopped:
	default:
		return fmt.Errorf("%w: play from %s", ErrIllegalStateTransition, p.state)
	}
	if p.sink == nil {
		return ErrSinkUnavailable
	}
	if p.source == nil {
		return ErrNoFileLoaded
	}

	if p.state == Paused {
		startSeconds = p.resumeAt
	}

	chain := NewProcessorChain()
	wsolaParams := WSOLADefaults
	wsolaParams.Tempo = p.pendingTempo
	wsolaProc, err := NewWSOLA(int(p.format.SampleRate), p.format.Channels, wsolaParams)
	if err != nil {
		return fmt.Errorf("wsola: play: %w", err)
	}
	resampProc := NewResampler(p.format.Channels)
	gainProc := NewGainProcessor()
	gainProc.SetGain(p.pendingGain)

	chain.Add(wsolaProc)
	chain.Add(resampProc)
	chain.Add(gainProc)

	sampleReq, overlap := wsolaProc.SampleRequirement()
	dispatcher, err := NewAudioDispatcher(p.source, chain, sampleReq, overlap, false, true)
	if err != nil {
		return fmt.Errorf("wsola: play: %w", err)
	}
	wsolaProc.SetDispatcher(dispatcher)
	dispatcher.SetTotalBytes(p.totalBytes)

	if p.metrics != nil {
		chain.Add(newMetricsObserver(p.id.String(), p.metrics, wsolaProc, dispatcher))
	}
	chain.Add(newSinkWriter(p.sink))

	if startSeconds > 0 {
		if err := dispatcher.Skip(startSeconds); err != nil {
			return fmt.Errorf("wsola: play: %w", err)
		}
	}

	p.dispatcher = dispatcher
	p.chain = chain
	p.gainProc = gainProc
	p.wsolaProc = wsolaProc
	p.resampProc = resampProc

	p.wg.Add(1)
	p.runErr.Store(nil)
	go func() {
		defer p.wg.Done()
		if err := dispatcher.Run(); err != nil {
			p.log.Error("worker exited with error", "player", p.id, "err", err)
			p.runErr.Store(&err)
		}
		// The worker can exit on its own (end of stream) without a
		// controller-initiated Stop/Pause; reflect that in the state
		// machine so Play()/Progress() callers see it. A controller that
		// raced a Stop/Pause in just ahead of this already moved the
		// state elsewhere, so only natural end-of-stream transitions here.
		p.mu.Lock()
		if p.state == Playing {
			p.setStateLocked(Stopped)
		}
		p.mu.Unlock()
	}()

	p.setStateLocked(Playing)
	return nil
}

// RunError returns the error the worker goroutine exited with, if any, from
// the most recently finished playback.
func (p *Player) RunError() error {
	if e := p.runErr.Load(); e != nil {
		return *e
	}
	return nil
}

// Pause stops the dispatcher and records the resume point, expressed in
// seconds from the start of the stream. Legal from Playing or Paused.
func (p *Player) Pause(at float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Playing, Paused:
	default:
		return fmt.Errorf("%w: pause from %s", ErrIllegalStateTransition, p.state)
	}

	if p.dispatcher != nil {
		p.dispatcher.Stop()
	}
	p.resumeAt = at
	p.setStateLocked(Paused)
	return nil
}

// Stop stops the dispatcher and joins the worker goroutine. Legal from
// Playing or Paused.
func (p *Player) Stop() error {
	p.mu.Lock()

	switch p.state {
	case Playing, Paused:
	default:
		p.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrIllegalStateTransition, p.state)
	}

	if p.dispatcher != nil {
		p.dispatcher.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Stopped {
		p.setStateLocked(Stopped)
	}
	return nil
}

// Eject stops playback if running, drops the file handle, and returns to
// NoFileLoaded.
func (p *Player) Eject() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ejectLocked()
}

func (p *Player) ejectLocked() error {
	if p.state == Playing || p.state == Paused {
		if p.dispatcher != nil {
			p.dispatcher.Stop()
		}
		p.mu.Unlock()
		p.wg.Wait()
		p.mu.Lock()
	}
	p.source = nil
	p.dispatcher = nil
	p.chain = nil
	p.gainProc = nil
	p.wsolaProc = nil
	p.resampProc = nil
	p.setStateLocked(NoFileLoaded)
	return nil
}

// SetTempo updates the live WSOLA tempo when Playing, otherwise records it
// as pending for the next Play.
func (p *Player) SetTempo(tempo float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingTempo = tempo
	if p.state == Playing && p.wsolaProc != nil {
		params := WSOLADefaults
		params.Tempo = tempo
		return p.wsolaProc.SetParameters(params)
	}
	return nil
}

// SetGain updates the live gain when Playing, otherwise records it as
// pending for the next Play.
func (p *Player) SetGain(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingGain = gain
	if p.state == Playing && p.gainProc != nil {
		p.gainProc.SetGain(gain)
	}
}

// SetRate updates the live resampling rate when Playing; a no-op pending
// value otherwise, since the resampler is constructed fresh on every Play
// at ratio 1.0.
func (p *Player) SetRate(factor float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Playing && p.resampProc != nil {
		return p.resampProc.SetRate(factor)
	}
	return nil
}

// Progress returns the dispatcher's bytes-processed / total-bytes fraction,
// or 0 if nothing is playing or no total was known.
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dispatcher == nil {
		return 0
	}
	return p.dispatcher.Progress()
}

// ChainLen reports the number of processors in the current playback chain,
// 0 if nothing is loaded or playing.
func (p *Player) ChainLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chain == nil {
		return 0
	}
	return p.chain.Len()
}

// metricsObserver is a non-mutating AudioProcessor that forwards each
// event's §6 observable outputs, plus the owning WSOLA's current
// seek-window size, to a Metrics bundle. Inserted just before the
// sinkWriter so it observes the event after every rate-changing stage has
// run but still sees BytesProcessed/Progress untouched by encoding.
type metricsObserver struct {
	playerID   string
	m          *metrics.Metrics
	wsola      *WSOLA
	dispatcher *AudioDispatcher
	lastByte   int64
}

func newMetricsObserver(playerID string, m *metrics.Metrics, w *WSOLA, d *AudioDispatcher) *metricsObserver {
	return &metricsObserver{playerID: playerID, m: m, wsola: w, dispatcher: d}
}

func (o *metricsObserver) Process(event *AudioEvent) bool {
	delta := event.BytesProcessed - o.lastByte
	o.lastByte = event.BytesProcessed
	var progress float64
	if o.dispatcher != nil {
		progress = o.dispatcher.Progress()
	}
	o.m.ObserveEvent(o.playerID, int(delta), event.TimeStamp(), progress)
	if o.wsola != nil {
		o.m.ObserveSeekWindow(o.playerID, int(o.wsola.seekWindow))
	}
	return true
}

func (o *metricsObserver) Finished() {}

// sinkWriter is the terminal AudioProcessor that encodes each event's
// surviving float buffer back to bytes and writes them to the configured
// AudioSink, writing only the non-overlap tail except on the very first
// event (§6 "the dispatcher-chain integration writes only the non-overlap
// tail of each event's byte buffer except on the first event").
type sinkWriter struct {
	sink  AudioSink
	first bool
	buf   []byte
}

func newSinkWriter(sink AudioSink) *sinkWriter {
	return &sinkWriter{sink: sink, first: true}
}

func (s *sinkWriter) Process(event *AudioEvent) bool {
	enc := event.Format().Enc
	bps := enc.BytesPerSample()
	total := len(event.Float) * bps
	if cap(s.buf) < total {
		s.buf = make([]byte, total)
	} else {
		s.buf = s.buf[:total]
	}
	if err := EncodeBytes(event.Float, enc, s.buf); err != nil {
		return false
	}

	start := 0
	if !s.first {
		start = int(event.SampleMath().ToArrayIndex(event.Overlap)) * bps
	}
	s.first = false

	if _, err := s.sink.Write(s.buf[start:]); err != nil {
		return false
	}
	return true
}

func (s *sinkWriter) Finished() {
	_ = s.sink.Drain()
}
