package vad

import (
	"math"
	"sync/atomic"
)

// State identifies the segmenter phase.
type State int

const (
	// StateSilence: no speech; incoming frames roll through the pre-speech window.
	StateSilence State = iota
	// StateSpeechOnset: speech energy seen, awaiting the minimum-duration confirmation.
	StateSpeechOnset
	// StateSpeaking: confirmed speech; frames pass straight through.
	StateSpeaking
	// StateSpeechOffset: silence seen while speaking, awaiting end-of-speech confirmation.
	StateSpeechOffset
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateSpeechOnset:
		return "speech_onset"
	case StateSpeaking:
		return "speaking"
	case StateSpeechOffset:
		return "speech_offset"
	default:
		return "unknown"
	}
}

// Config holds detector tuning. SpeechThreshold must exceed SilenceThreshold;
// the band between them is the hysteresis region.
type Config struct {
	SpeechThreshold  float64 // frame RMS at or above this counts as speech
	SilenceThreshold float64 // frame RMS below this counts as silence while speaking
	MinSpeechMs      int     // speech run required to confirm onset
	MinSilenceMs     int     // silence run required to confirm end of speech
	PrePaddingMs     int     // audio kept from before the detected onset
	PostPaddingMs    int     // trailing audio kept after the detected offset
	SampleRate       int
	Enabled          bool
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold:  0.007,
		SilenceThreshold: 0.003,
		MinSpeechMs:      60,
		MinSilenceMs:     600,
		PrePaddingMs:     200,
		PostPaddingMs:    300,
		SampleRate:       16000,
		Enabled:          true,
	}
}

// Detector converts a raw frame stream into a speech-only stream with
// natural padding around each speech run. The state machine is owned by a
// single goroutine (the capture loop); only the speaking flag is safe to
// read from other goroutines.
type Detector struct {
	cfg Config

	state          State
	preSpeech      []float32 // rolling window preceding onset, bounded by PrePaddingMs
	onset          []float32 // pending speech run awaiting confirmation
	postSpeech     []float32 // pending silence run awaiting confirmation
	speechSamples  int
	silenceSamples int

	speaking atomic.Bool
}

// New creates a detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the current configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// SetConfig replaces the configuration. Call while no recording is active.
func (d *Detector) SetConfig(cfg Config) {
	d.cfg = cfg
}

// IsSpeaking reports whether the detector is inside a confirmed speech run.
// Safe to call from any goroutine.
func (d *Detector) IsSpeaking() bool {
	return d.speaking.Load()
}

// State returns the current segmenter state.
func (d *Detector) State() State {
	return d.state
}

// Reset clears all accumulators and returns to silence. Call at the start
// of every recording session.
func (d *Detector) Reset() {
	d.state = StateSilence
	d.speaking.Store(false)
	d.preSpeech = d.preSpeech[:0]
	d.onset = d.onset[:0]
	d.postSpeech = d.postSpeech[:0]
	d.speechSamples = 0
	d.silenceSamples = 0
}

// Process runs input through the segmenter and returns the speech-qualified
// samples it emits. Input is chopped into 30 ms frames; a final partial
// frame is processed as-is so no samples are dropped. With the detector
// disabled the input passes through unchanged.
func (d *Detector) Process(input []float32) []float32 {
	if !d.cfg.Enabled {
		return input
	}

	frameSize := d.cfg.SampleRate * 30 / 1000
	var out []float32

	for offset := 0; offset < len(input); offset += frameSize {
		end := offset + frameSize
		if end > len(input) {
			end = len(input)
		}
		out = d.processFrame(input[offset:end], out)
	}
	return out
}

func (d *Detector) processFrame(frame []float32, out []float32) []float32 {
	rms := RMS(frame)

	switch d.state {
	case StateSilence:
		if rms >= d.cfg.SpeechThreshold {
			d.state = StateSpeechOnset
			d.speechSamples = len(frame)
			d.onset = append(d.onset[:0], frame...)
		} else {
			d.appendPreSpeech(frame)
		}

	case StateSpeechOnset:
		if rms >= d.cfg.SpeechThreshold {
			d.speechSamples += len(frame)
			d.onset = append(d.onset, frame...)

			if d.speechSamples >= d.minSpeechSamples() {
				d.state = StateSpeaking
				d.speaking.Store(true)
				out = append(out, d.preSpeech...)
				out = append(out, d.onset...)
				d.preSpeech = d.preSpeech[:0]
				d.onset = d.onset[:0]
			}
		} else {
			// False alarm: fold the pending run back into the rolling window.
			d.appendPreSpeech(d.onset)
			d.appendPreSpeech(frame)
			d.onset = d.onset[:0]
			d.speechSamples = 0
			d.state = StateSilence
		}

	case StateSpeaking:
		if rms < d.cfg.SilenceThreshold {
			d.state = StateSpeechOffset
			d.silenceSamples = len(frame)
			d.postSpeech = append(d.postSpeech[:0], frame...)
		} else {
			out = append(out, frame...)
		}

	case StateSpeechOffset:
		if rms < d.cfg.SilenceThreshold {
			d.silenceSamples += len(frame)
			d.postSpeech = append(d.postSpeech, frame...)

			if d.silenceSamples >= d.minSilenceSamples() {
				padding := d.postPaddingSamples()
				if padding > len(d.postSpeech) {
					padding = len(d.postSpeech)
				}
				out = append(out, d.postSpeech[:padding]...)
				d.postSpeech = d.postSpeech[:0]
				d.silenceSamples = 0
				d.state = StateSilence
				d.speaking.Store(false)
				d.preSpeech = d.preSpeech[:0]
			}
		} else {
			// Speech resumed: the whole pending silence run is emitted, even
			// when it exceeds the configured post padding.
			out = append(out, d.postSpeech...)
			out = append(out, frame...)
			d.postSpeech = d.postSpeech[:0]
			d.silenceSamples = 0
			d.state = StateSpeaking
		}
	}
	return out
}

// appendPreSpeech grows the rolling window, trimming the oldest samples
// beyond the padding maximum.
func (d *Detector) appendPreSpeech(data []float32) {
	d.preSpeech = append(d.preSpeech, data...)
	max := d.prePaddingSamples()
	if len(d.preSpeech) > max {
		excess := len(d.preSpeech) - max
		copy(d.preSpeech, d.preSpeech[excess:])
		d.preSpeech = d.preSpeech[:max]
	}
}

func (d *Detector) minSpeechSamples() int {
	return d.cfg.SampleRate * d.cfg.MinSpeechMs / 1000
}

func (d *Detector) minSilenceSamples() int {
	return d.cfg.SampleRate * d.cfg.MinSilenceMs / 1000
}

func (d *Detector) prePaddingSamples() int {
	return d.cfg.SampleRate * d.cfg.PrePaddingMs / 1000
}

func (d *Detector) postPaddingSamples() int {
	return d.cfg.SampleRate * d.cfg.PostPaddingMs / 1000
}

// RMS returns the root-mean-square energy of a frame, 0 for an empty frame.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
