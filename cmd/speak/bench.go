package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yok-tottii/speak/internal/config"
	"github.com/yok-tottii/speak/internal/pipeline"
	"github.com/yok-tottii/speak/internal/recognition"
)

// runBenchmark loads a model and times it against synthesized audio so
// machines and models can be compared without a microphone.
func runBenchmark(modelPath string, settings *config.Settings) int {
	fmt.Printf("speak benchmark\n===============\nModel: %s\n\n", modelPath)

	fmt.Println("Loading model...")
	loadStart := time.Now()
	rec, err := recognition.New(modelPath, recognition.Config{
		Language:         settings.Language,
		Translate:        settings.Translate,
		Threads:          settings.ResolvedThreads(),
		BeamSize:         settings.BeamSize,
		Temperature:      settings.Temperature,
		EntropyThreshold: settings.EntropyThreshold,
	})
	if err != nil {
		fmt.Printf("Error: failed to load model: %v\n", err)
		return 1
	}
	defer rec.Close()
	fmt.Printf("Model loaded in %.0f ms\n\n", float64(time.Since(loadStart).Milliseconds()))

	scenarios := []struct {
		name    string
		samples []float32
	}{
		{"Short utterance (2s)", benchTone(2 * time.Second)},
		{"Medium utterance (10s)", benchTone(10 * time.Second)},
		{"Long recording (60s)", benchTone(60 * time.Second)},
		{"Silence gap (5s, 2s gap)", benchToneWithGap(5*time.Second, 1500*time.Millisecond, 2*time.Second)},
	}

	fmt.Printf("%-28s  %8s  %10s  %7s  %4s  %8s\n", "Scenario", "Audio", "Transc.", "RTF", "Seg", "Mem MB")
	fmt.Println(strings.Repeat("-", 72))

	for _, sc := range scenarios {
		audioMs := float64(len(sc.samples)) / recognition.SampleRate * 1000
		memBefore := pipeline.ResidentMemoryMB()

		start := time.Now()
		result, err := rec.Transcribe(sc.samples, "")
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000

		memAfter := pipeline.ResidentMemoryMB()
		rtf := 0.0
		if audioMs > 0 {
			rtf = elapsedMs / audioMs
		}

		segments := 0
		text := ""
		if err == nil {
			segments = len(result.Segments)
			text = strings.TrimSpace(result.FullText())
		}

		fmt.Printf("%-28s  %8s  %10s  %6.3fx  %4d  %7.1f\n",
			sc.name,
			benchDuration(audioMs, "%.1f s"),
			benchDuration(elapsedMs, "%.2f s"),
			rtf, segments, memAfter-memBefore)

		if text != "" {
			if len(text) > 80 {
				text = text[:80] + "..."
			}
			fmt.Printf("  -> %s\n", text)
		}
	}

	fmt.Println("\nDone.")
	return 0
}

func benchDuration(ms float64, secFormat string) string {
	if ms < 1000 {
		return fmt.Sprintf("%.0f ms", ms)
	}
	return fmt.Sprintf(secFormat, ms/1000)
}

// benchTone synthesizes a 440 Hz tone with a few harmonics and a slow
// amplitude wobble, enough signal that whisper treats it as audio rather
// than silence.
func benchTone(d time.Duration) []float32 {
	const base = 440.0
	count := int(d.Seconds() * recognition.SampleRate)
	samples := make([]float32, count)

	harmonics := []struct{ freq, amp float64 }{
		{base, 0.3},
		{base * 2, 0.15},
		{base * 3, 0.08},
		{base * 0.5, 0.1},
	}

	for i := range samples {
		t := float64(i) / recognition.SampleRate
		var v float64
		for _, h := range harmonics {
			v += h.amp * math.Sin(2*math.Pi*h.freq*t)
		}
		envelope := 0.8 + 0.2*math.Sin(2*math.Pi*3*t)
		samples[i] = float32(v * envelope)
	}
	return samples
}

// benchToneWithGap silences a span in the middle of a tone.
func benchToneWithGap(total, gapStart, gapDur time.Duration) []float32 {
	samples := benchTone(total)
	from := int(gapStart.Seconds() * recognition.SampleRate)
	to := min(int((gapStart+gapDur).Seconds()*recognition.SampleRate), len(samples))
	for i := from; i < to; i++ {
		samples[i] = 0
	}
	return samples
}
