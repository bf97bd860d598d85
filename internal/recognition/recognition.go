package recognition

// SampleRate is the rate recognizers consume. Callers resample before
// transcribing; there is no rate conversion inside this package.
const SampleRate = 16000

// Segment is one timed span of recognized text
type Segment struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Result holds the outcome of one transcription pass
type Result struct {
	Segments            []Segment
	AudioDurationMs     int64
	TranscriptionTimeMs int64
	ModelName           string
}

// FullText returns the concatenated segment texts. Whisper segments carry
// their own leading spaces, so no separator is inserted.
func (r *Result) FullText() string {
	var text string
	for _, seg := range r.Segments {
		text += seg.Text
	}
	return text
}

// RealTimeFactor returns transcription time over audio duration. Values
// below 1.0 mean faster than real time. Zero-length audio returns 0.
func (r *Result) RealTimeFactor() float64 {
	if r.AudioDurationMs == 0 {
		return 0
	}
	return float64(r.TranscriptionTimeMs) / float64(r.AudioDurationMs)
}

// Config holds recognition parameters applied to every pass
type Config struct {
	Language         string
	Translate        bool
	Threads          int // 0 = binding default
	BeamSize         int
	Temperature      float64
	EntropyThreshold float64
	// InitialPrompt is the static decoding prompt used when the caller
	// passes no per-call prompt
	InitialPrompt string
}

// DefaultConfig returns the default recognition configuration
func DefaultConfig() Config {
	return Config{
		Language:         "en",
		Translate:        false,
		Threads:          0,
		BeamSize:         5,
		Temperature:      0.0,
		EntropyThreshold: 2.4,
	}
}

// Recognizer is the interface for speech recognition
type Recognizer interface {
	// Transcribe runs one inference pass over 16kHz mono samples. A
	// non-empty prompt biases decoding toward recent context.
	Transcribe(samples []float32, prompt string) (*Result, error)

	// Warmup runs a throwaway pass so the first real transcription does
	// not pay first-call initialization costs
	Warmup() error

	// Close releases the model
	Close() error
}
