package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/vad"
)

// Engine owns the capture stream and the goroutine that services it. The
// stream stays open for as long as the engine is prepared, independent of
// whether a recording session is active; frames captured outside a session
// only feed the level gauge.
type Engine struct {
	cfg      Config
	provider CaptureProvider
	log      *logger.Logger

	ring *Ring
	vad  *vad.Detector

	mu       sync.Mutex
	prepared bool
	done     chan struct{}

	running    atomic.Bool
	collecting atomic.Bool
	level      atomic.Uint64
}

// NewEngine creates a capture engine. The detector is configured at the
// hardware rate since it sees raw frames before any resampling.
func NewEngine(cfg Config, provider CaptureProvider, vadCfg vad.Config, log *logger.Logger) *Engine {
	vadCfg.SampleRate = cfg.HardwareRate
	return &Engine{
		cfg:      cfg,
		provider: provider,
		log:      log,
		ring:     NewRing(cfg.HardwareRate, cfg.HardwareRate*30),
		vad:      vad.New(vadCfg),
	}
}

// Prepare opens the capture stream and starts the capture goroutine.
// Calling Prepare on a prepared engine is a no-op.
func (e *Engine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prepared {
		return nil
	}

	if err := e.provider.Open(e.cfg.DeviceID, e.cfg.HardwareRate, e.cfg.FrameSize); err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}

	e.done = make(chan struct{})
	e.running.Store(true)
	go e.captureLoop(e.done)

	e.prepared = true
	e.log.Debug("capture prepared",
		logger.Int("device", e.cfg.DeviceID),
		logger.Int("rate", e.cfg.HardwareRate),
		logger.Int("frame", e.cfg.FrameSize))
	return nil
}

// Release stops the capture goroutine and closes the stream. The flag is
// cleared first and the goroutine joined, so an in-flight blocking read
// always completes before the stream is torn down.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.prepared {
		return
	}

	e.running.Store(false)
	<-e.done

	if err := e.provider.Close(); err != nil {
		e.log.Warn("capture close failed", logger.Error(err))
	}

	e.collecting.Store(false)
	e.prepared = false
	e.log.Debug("capture released")
}

// StartRecording arms sample collection, preparing the stream first if
// needed. The detector and any stale buffered audio are cleared so the
// session starts empty.
func (e *Engine) StartRecording() error {
	if err := e.Prepare(); err != nil {
		return err
	}

	e.vad.Reset()
	e.ring.Drain()
	e.collecting.Store(true)
	return nil
}

// StopRecording disarms collection and returns the session's audio
// resampled to the target rate.
func (e *Engine) StopRecording() []float32 {
	e.collecting.Store(false)
	raw := e.ring.Drain()
	e.vad.Reset()
	return Resample(raw, e.cfg.HardwareRate, e.cfg.TargetRate)
}

func (e *Engine) captureLoop(done chan struct{}) {
	defer close(done)

	frame := make([]float32, e.cfg.FrameSize)
	for e.running.Load() {
		if err := e.provider.Read(frame); err != nil {
			e.log.Error("capture read failed, stopping capture", logger.Error(err))
			return
		}

		e.storeLevel(frame)

		if !e.collecting.Load() {
			continue
		}

		voiced := e.vad.Process(frame)
		if len(voiced) > 0 {
			e.ring.Append(voiced)
		}
	}
}

func (e *Engine) storeLevel(frame []float32) {
	level := vad.RMS(frame)
	if level > 1 {
		level = 1
	}
	e.level.Store(math.Float64bits(level))
}

// Level returns the most recent frame's RMS level in [0, 1]. It is updated
// on every captured frame whether or not a session is collecting.
func (e *Engine) Level() float64 {
	return math.Float64frombits(e.level.Load())
}

// IsPrepared returns whether the capture stream is open
func (e *Engine) IsPrepared() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepared
}

// IsCollecting returns whether a recording session is collecting samples
func (e *Engine) IsCollecting() bool {
	return e.collecting.Load()
}

// SampleRate returns the hardware capture rate
func (e *Engine) SampleRate() int {
	return e.cfg.HardwareRate
}

// Ring exposes the session buffer for the continuous monitor
func (e *Engine) Ring() *Ring {
	return e.ring
}

// VAD exposes the detector for the continuous monitor
func (e *Engine) VAD() *vad.Detector {
	return e.vad
}
