//go:build whisper

package recognition

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperRecognizer implements Recognizer using the whisper.cpp Go bindings
type WhisperRecognizer struct {
	model     whisper.Model
	modelPath string
	modelName string
	config    Config
	mu        sync.Mutex
}

// New loads a whisper model from the given path
func New(modelPath string, config Config) (*WhisperRecognizer, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", modelPath, err)
	}

	name := filepath.Base(modelPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &WhisperRecognizer{
		model:     model,
		modelPath: modelPath,
		modelName: name,
		config:    config,
	}, nil
}

// Transcribe runs one inference pass. Calls are serialized under a mutex, so
// chunked transcriptions run their sub-calls strictly one after another. Each
// pass gets a fresh decoding context; nothing leaks between calls except the
// prompt the caller chooses to pass.
func (r *WhisperRecognizer) Transcribe(samples []float32, prompt string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.model == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	start := time.Now()

	ctx, err := r.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := ctx.SetLanguage(r.config.Language); err != nil {
		return nil, fmt.Errorf("failed to set language %q: %w", r.config.Language, err)
	}
	ctx.SetTranslate(r.config.Translate)
	if r.config.Threads > 0 {
		ctx.SetThreads(uint(r.config.Threads))
	}
	if r.config.BeamSize > 0 {
		ctx.SetBeamSize(r.config.BeamSize)
	}
	ctx.SetTemperature(float32(r.config.Temperature))
	ctx.SetEntropyThold(float32(r.config.EntropyThreshold))

	if prompt == "" {
		prompt = r.config.InitialPrompt
	}
	if prompt != "" {
		ctx.SetInitialPrompt(prompt)
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to process audio: %w", err)
	}

	result := &Result{
		AudioDurationMs: int64(len(samples)) * 1000 / SampleRate,
		ModelName:       r.modelName,
	}
	for {
		segment, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read segment: %w", err)
		}
		result.Segments = append(result.Segments, Segment{
			Text:    segment.Text,
			StartMs: segment.Start.Milliseconds(),
			EndMs:   segment.End.Milliseconds(),
		})
	}

	result.TranscriptionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// Warmup transcribes one second of silence and discards the result
func (r *WhisperRecognizer) Warmup() error {
	if _, err := r.Transcribe(make([]float32, SampleRate), ""); err != nil {
		return fmt.Errorf("warmup failed: %w", err)
	}
	return nil
}

// ModelPath returns the path of the loaded model file
func (r *WhisperRecognizer) ModelPath() string {
	return r.modelPath
}

// Close releases the model
func (r *WhisperRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.model != nil {
		err := r.model.Close()
		r.model = nil
		return err
	}
	return nil
}
