package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yok-tottii/speak/internal/audio"
	"github.com/yok-tottii/speak/internal/config"
	"github.com/yok-tottii/speak/internal/history"
	"github.com/yok-tottii/speak/internal/logger"
	"github.com/yok-tottii/speak/internal/models"
	"github.com/yok-tottii/speak/internal/output"
	"github.com/yok-tottii/speak/internal/recognition"
	"github.com/yok-tottii/speak/internal/vad"
)

const (
	// maxChunkSamples is whisper's 30 s window at 16 kHz; longer sessions
	// are transcribed in consecutive chunks
	maxChunkSamples = 480_000
	// minSamples is 0.5 s at 16 kHz; shorter buffered sessions are
	// discarded as accidental taps
	minSamples = 8_000
	// continuousMinSamples is the smallest continuous flush, 1.5 s at
	// 16 kHz, scaled to the hardware rate before comparing raw counts
	continuousMinSamples = 24_000
)

// State is the daemon's externally visible activity state
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
)

// Pipeline wires the capture engine to the recognizer and the output
// injector. It owns the recording/transcribing state the control surface
// reports and the continuous-mode monitor goroutine.
type Pipeline struct {
	log      *logger.Logger
	engine   *audio.Engine
	models   *models.Manager
	injector output.Injector
	history  *history.Store
	perf     *Monitor

	settings atomic.Pointer[config.Settings]

	// newRecognizer is swapped for a fake in tests
	newRecognizer func(modelPath string, cfg recognition.Config) (recognition.Recognizer, error)

	recMu sync.Mutex
	rec   recognition.Recognizer

	recording    atomic.Bool
	transcribing atomic.Bool
	didOutput    atomic.Bool

	listener Listener

	contextMu sync.Mutex
	context   string

	monitorMu   sync.Mutex
	monitorStop chan struct{}
	monitorWG   sync.WaitGroup
}

// New creates a pipeline. The history store may be nil when history is
// disabled.
func New(settings *config.Settings, engine *audio.Engine, manager *models.Manager, injector output.Injector, hist *history.Store, log *logger.Logger) *Pipeline {
	p := &Pipeline{
		log:      log,
		engine:   engine,
		models:   manager,
		injector: injector,
		history:  hist,
		perf:     &Monitor{},
		newRecognizer: func(path string, cfg recognition.Config) (recognition.Recognizer, error) {
			return recognition.New(path, cfg)
		},
	}
	p.settings.Store(settings)
	return p
}

// VADConfig derives the detector configuration from persisted settings.
// The engine fills in the sample rate when it is constructed.
func VADConfig(s *config.Settings) vad.Config {
	return vad.Config{
		Enabled:          s.VADEnabled,
		SpeechThreshold:  s.VADSpeechThreshold,
		SilenceThreshold: s.VADSilenceThreshold,
		MinSpeechMs:      s.VADMinSpeechMs,
		MinSilenceMs:     s.VADMinSilenceMs,
		PrePaddingMs:     s.VADPrePaddingMs,
		PostPaddingMs:    s.VADPostPaddingMs,
	}
}

func recognizerConfig(s *config.Settings) recognition.Config {
	return recognition.Config{
		Language:         s.Language,
		Translate:        s.Translate,
		Threads:          s.ResolvedThreads(),
		BeamSize:         s.BeamSize,
		Temperature:      s.Temperature,
		EntropyThreshold: s.EntropyThreshold,
		InitialPrompt:    s.InitialPrompt,
	}
}

// Settings returns the current settings snapshot. The snapshot is
// immutable; mutations go through UpdateSettings.
func (p *Pipeline) Settings() *config.Settings {
	return p.settings.Load()
}

// UpdateSettings applies mutate to a clone of the current settings and
// swaps the clone in. It returns the new snapshot so the caller can
// persist it.
// Detector tuning is fixed at engine construction and is not re-applied
// here.
func (p *Pipeline) UpdateSettings(mutate func(*config.Settings)) *config.Settings {
	s := p.settings.Load().Clone()
	mutate(s)
	p.settings.Store(s)
	return s
}

// StartRecording arms the capture engine and, in continuous mode, starts
// the flush monitor. Calling it while already recording is a no-op.
func (p *Pipeline) StartRecording() error {
	if p.recording.Load() {
		return nil
	}

	p.setContext("")
	p.didOutput.Store(false)

	if err := p.engine.StartRecording(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	p.recording.Store(true)

	s := p.settings.Load()
	if s.TranscriptionMode == config.ModeContinuous {
		p.startMonitor()
	}

	p.emit(EventRecordingStarted)
	p.log.Info("recording started",
		logger.String("mode", s.TranscriptionMode),
		logger.Bool("vad", s.VADEnabled))
	return nil
}

// StopAndTranscribe ends the session, transcribes whatever was collected,
// and injects the text. Sessions shorter than half a second come back as
// an empty result. Recognizer failures also come back as an empty result;
// they are logged, never fatal.
func (p *Pipeline) StopAndTranscribe() *recognition.Result {
	if !p.recording.Load() {
		return &recognition.Result{}
	}

	p.stopMonitor()
	samples := p.engine.StopRecording()
	if !p.settings.Load().KeepMicWarm {
		p.engine.Release()
	}
	p.recording.Store(false)

	if len(samples) < minSamples {
		p.log.Debug("session below minimum, discarded", logger.Int("samples", len(samples)))
		return &recognition.Result{}
	}

	return p.transcribeAndOutput(samples)
}

func (p *Pipeline) transcribeAndOutput(samples []float32) *recognition.Result {
	rec := p.recognizer()
	if rec == nil {
		return &recognition.Result{}
	}

	p.transcribing.Store(true)
	p.emit(EventTranscriptionStarted)

	var result *recognition.Result
	if len(samples) > maxChunkSamples {
		result = p.transcribeChunked(rec, samples)
	} else {
		result = p.transcribe(rec, samples, "")
	}

	p.perf.Record(result)
	p.transcribing.Store(false)

	text := strings.Trim(result.FullText(), " \n")
	p.log.Info("transcription finished",
		logger.Int("chars", len(text)),
		logger.Int64("elapsed_ms", result.TranscriptionTimeMs),
		logger.Float64("rtf", result.RealTimeFactor()))

	if text != "" {
		p.outputText(text)
		p.recordHistory(text, result)
	}

	p.emit(EventTranscriptionEnded)
	return result
}

// transcribe runs one inference pass. A recognizer failure yields an
// empty-segment result with real duration and timing so stats stay
// truthful and the session continues.
func (p *Pipeline) transcribe(rec recognition.Recognizer, samples []float32, prompt string) *recognition.Result {
	start := time.Now()
	result, err := rec.Transcribe(samples, prompt)
	if err != nil {
		p.log.Error("transcription failed", logger.Error(err))
		return &recognition.Result{
			AudioDurationMs:     int64(len(samples)) * 1000 / recognition.SampleRate,
			TranscriptionTimeMs: time.Since(start).Milliseconds(),
			ModelName:           p.currentModelName(),
		}
	}
	return result
}

// transcribeChunked splits long audio into consecutive 30 s chunks and
// re-bases each chunk's segment times into session time. Chunks share no
// decoding context.
func (p *Pipeline) transcribeChunked(rec recognition.Recognizer, samples []float32) *recognition.Result {
	start := time.Now()
	var segments []recognition.Segment

	for offset := 0; offset < len(samples); offset += maxChunkSamples {
		end := offset + maxChunkSamples
		if end > len(samples) {
			end = len(samples)
		}

		chunk := p.transcribe(rec, samples[offset:end], "")
		offsetMs := int64(offset) / 16
		for _, seg := range chunk.Segments {
			segments = append(segments, recognition.Segment{
				Text:    seg.Text,
				StartMs: seg.StartMs + offsetMs,
				EndMs:   seg.EndMs + offsetMs,
			})
		}
	}

	return &recognition.Result{
		Segments:            segments,
		AudioDurationMs:     int64(len(samples)) / 16,
		TranscriptionTimeMs: time.Since(start).Milliseconds(),
		ModelName:           p.currentModelName(),
	}
}

func (p *Pipeline) outputText(text string) {
	p.didOutput.Store(true)
	s := p.settings.Load()

	var err error
	if s.OutputMode == config.OutputPaste {
		err = p.injector.Paste(text, s.RestoreClipboard)
	} else {
		err = p.injector.Type(text, s.TypeSpeedMs)
	}
	if err != nil {
		p.log.Error("text injection failed", logger.Error(err))
	}
}

func (p *Pipeline) recordHistory(text string, result *recognition.Result) {
	s := p.settings.Load()
	if p.history == nil || !s.HistoryEnabled {
		return
	}
	err := p.history.Record(history.Entry{
		Text:      text,
		Mode:      s.TranscriptionMode,
		Model:     result.ModelName,
		AudioMs:   result.AudioDurationMs,
		ElapsedMs: result.TranscriptionTimeMs,
	})
	if err != nil {
		p.log.Warn("history write failed", logger.Error(err))
	}
}

// LoadModel loads and warms up the given model, then swaps it in as the
// active recognizer and persists the selection.
func (p *Pipeline) LoadModel(model models.Model) error {
	s := p.settings.Load()
	rec, err := p.newRecognizer(model.Path, recognizerConfig(s))
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", model.Name(), err)
	}
	if err := rec.Warmup(); err != nil {
		rec.Close()
		return fmt.Errorf("model warmup failed: %w", err)
	}

	p.recMu.Lock()
	old := p.rec
	p.rec = rec
	p.recMu.Unlock()
	if old != nil {
		old.Close()
	}

	if err := p.models.MarkLoaded(model.ID); err != nil {
		p.log.Warn("failed to persist model selection", logger.Error(err))
	}

	p.log.Info("model loaded and warmed up", logger.String("model", model.Name()))
	return nil
}

// LoadSavedOrFirst loads the persisted model choice, falling back to the
// smallest available model.
func (p *Pipeline) LoadSavedOrFirst() error {
	model, err := p.models.SavedOrFirst()
	if err != nil {
		return err
	}
	return p.LoadModel(model)
}

// Shutdown stops the monitor, then closes the recognizer and releases
// the microphone.
func (p *Pipeline) Shutdown() {
	p.stopMonitor()

	p.recMu.Lock()
	rec := p.rec
	p.rec = nil
	p.recMu.Unlock()
	if rec != nil {
		if err := rec.Close(); err != nil {
			p.log.Warn("recognizer close failed", logger.Error(err))
		}
	}

	p.engine.Release()
}

// State reports recording over transcribing over idle; both flags can be
// set at once in continuous mode.
func (p *Pipeline) State() State {
	switch {
	case p.recording.Load():
		return StateRecording
	case p.transcribing.Load():
		return StateTranscribing
	default:
		return StateIdle
	}
}

// IsRecording reports whether a session is active.
func (p *Pipeline) IsRecording() bool {
	return p.recording.Load()
}

// IsTranscribing reports whether an inference pass is in flight.
func (p *Pipeline) IsTranscribing() bool {
	return p.transcribing.Load()
}

// DidOutput reports whether the session that just ended injected any
// text. The send-hotkey path only presses Return when it did.
func (p *Pipeline) DidOutput() bool {
	return p.didOutput.Load()
}

// HasRecognizer reports whether a model is loaded.
func (p *Pipeline) HasRecognizer() bool {
	return p.recognizer() != nil
}

// Perf returns the running transcription statistics.
func (p *Pipeline) Perf() *Monitor {
	return p.perf
}

// Models returns the model manager.
func (p *Pipeline) Models() *models.Manager {
	return p.models
}

// Engine returns the capture engine.
func (p *Pipeline) Engine() *audio.Engine {
	return p.engine
}

func (p *Pipeline) recognizer() recognition.Recognizer {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	return p.rec
}

func (p *Pipeline) currentModelName() string {
	if m, ok := p.models.Current(); ok {
		return m.Name()
	}
	return "unknown"
}

func (p *Pipeline) setContext(text string) {
	p.contextMu.Lock()
	p.context = text
	p.contextMu.Unlock()
}
