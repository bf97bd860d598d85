//go:build !whisper

package recognition

import "fmt"

// WhisperRecognizer is the stub used when the whisper bindings are not
// compiled in. The daemon still builds and runs; loading a model reports
// that recognition is unavailable.
type WhisperRecognizer struct{}

// New reports that recognition support is missing from this build
func New(modelPath string, config Config) (*WhisperRecognizer, error) {
	return nil, fmt.Errorf("recognition disabled in this build (rebuild with -tags whisper)")
}

// Transcribe always fails on the stub
func (r *WhisperRecognizer) Transcribe(samples []float32, prompt string) (*Result, error) {
	return nil, fmt.Errorf("recognition disabled in this build (rebuild with -tags whisper)")
}

// Warmup always fails on the stub
func (r *WhisperRecognizer) Warmup() error {
	return fmt.Errorf("recognition disabled in this build (rebuild with -tags whisper)")
}

// Close is a no-op on the stub
func (r *WhisperRecognizer) Close() error {
	return nil
}
