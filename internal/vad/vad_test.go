package vad

import (
	"math"
	"testing"
)

// testConfig returns the documented defaults at 16 kHz: 480-sample frames,
// onset confirm at 960 samples, offset confirm at 9600, padding 3200/4800.
func testConfig() Config {
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

// constSamples returns n samples of constant amplitude; the RMS of such a
// span equals the amplitude.
func constSamples(amp float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = amp
	}
	return s
}

// feedFrames pushes count frames of constant amplitude through the detector
// and returns everything emitted.
func feedFrames(d *Detector, amp float32, count int) []float32 {
	frameSize := d.Config().SampleRate * 30 / 1000
	var out []float32
	for i := 0; i < count; i++ {
		out = append(out, d.Process(constSamples(amp, frameSize))...)
	}
	return out
}

func sineTone(freq float64, amp float64, n, rate int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return s
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateSilence, "silence"},
		{StateSpeechOnset, "speech_onset"},
		{StateSpeaking, "speaking"},
		{StateSpeechOffset, "speech_offset"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDisabledIsIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	d := New(cfg)

	input := sineTone(440, 0.5, 1000, 16000)
	out := d.Process(input)

	if len(out) != len(input) {
		t.Fatalf("Expected %d samples out, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Fatalf("Sample %d differs: %v != %v", i, out[i], input[i])
		}
	}
	if d.State() != StateSilence {
		t.Errorf("Disabled detector should not change state, got %v", d.State())
	}
}

func TestSilenceEmitsNothing(t *testing.T) {
	d := New(testConfig())

	out := feedFrames(d, 0.001, 10)
	if len(out) != 0 {
		t.Errorf("Expected no output for quiet input, got %d samples", len(out))
	}
	if d.State() != StateSilence {
		t.Errorf("Expected silence state, got %v", d.State())
	}
	if d.IsSpeaking() {
		t.Error("IsSpeaking should be false")
	}
}

func TestOnsetConfirmationEmitsPaddingAndRun(t *testing.T) {
	d := New(testConfig())

	// 10 quiet frames fill the pre-speech window past its 3200-sample cap.
	feedFrames(d, 0.001, 10)

	out := feedFrames(d, 0.05, 2)
	if d.State() != StateSpeaking {
		t.Fatalf("Expected speaking after 60ms of speech, got %v", d.State())
	}
	if !d.IsSpeaking() {
		t.Error("IsSpeaking should be true")
	}

	// Bounded pre-speech window (3200) plus the confirmed onset run (960).
	if len(out) != 3200+960 {
		t.Errorf("Expected 4160 samples emitted at confirmation, got %d", len(out))
	}
}

func TestOnsetBelowMinimumEmitsNothing(t *testing.T) {
	d := New(testConfig())

	out := feedFrames(d, 0.05, 1)
	if len(out) != 0 {
		t.Errorf("Expected no output before the minimum speech run, got %d", len(out))
	}
	if d.State() != StateSpeechOnset {
		t.Errorf("Expected speech_onset, got %v", d.State())
	}
}

func TestOnsetFalseAlarmFoldsIntoPreSpeech(t *testing.T) {
	d := New(testConfig())

	feedFrames(d, 0.05, 1)         // looks like speech
	out := feedFrames(d, 0.001, 1) // but drops out before confirmation

	if len(out) != 0 {
		t.Errorf("False alarm should emit nothing, got %d samples", len(out))
	}
	if d.State() != StateSilence {
		t.Fatalf("Expected return to silence, got %v", d.State())
	}

	// The folded-back run stays in the window: the next confirmed onset
	// emits it (960 = one loud + one quiet frame) ahead of the new run.
	out = feedFrames(d, 0.05, 2)
	if len(out) != 960+960 {
		t.Errorf("Expected 1920 samples after refold, got %d", len(out))
	}
}

func TestHysteresisBetweenThresholds(t *testing.T) {
	// Frames with RMS strictly between the thresholds must not flip state.
	t.Run("from silence", func(t *testing.T) {
		d := New(testConfig())
		out := feedFrames(d, 0.005, 5)
		if len(out) != 0 {
			t.Errorf("Between-threshold frames from silence emitted %d samples", len(out))
		}
		if d.State() != StateSilence {
			t.Errorf("Expected silence, got %v", d.State())
		}
	})

	t.Run("from speaking", func(t *testing.T) {
		d := New(testConfig())
		feedFrames(d, 0.05, 2)
		out := feedFrames(d, 0.005, 5)
		if len(out) != 5*480 {
			t.Errorf("Between-threshold frames while speaking emitted %d samples, want %d", len(out), 5*480)
		}
		if d.State() != StateSpeaking {
			t.Errorf("Expected speaking, got %v", d.State())
		}
	})
}

func TestOffsetConfirmationCapsPostPadding(t *testing.T) {
	d := New(testConfig())
	feedFrames(d, 0.05, 2)

	// 20 quiet frames reach the 600ms confirmation; only the 4800-sample
	// post padding of the accumulated run is emitted.
	out := feedFrames(d, 0.001, 20)
	if len(out) != 4800 {
		t.Errorf("Expected 4800 samples of post padding, got %d", len(out))
	}
	if d.State() != StateSilence {
		t.Errorf("Expected silence after offset confirmation, got %v", d.State())
	}
	if d.IsSpeaking() {
		t.Error("IsSpeaking should be false after offset confirmation")
	}

	// The pre-speech window was cleared as stale: a fresh onset emits only
	// its own run.
	out = feedFrames(d, 0.05, 2)
	if len(out) != 960 {
		t.Errorf("Expected 960 samples after stale-window clear, got %d", len(out))
	}
}

func TestOffsetResumeReEmitsEntireRun(t *testing.T) {
	d := New(testConfig())
	feedFrames(d, 0.05, 2)

	// 12 quiet frames (5760 samples) exceed the 4800-sample post padding but
	// stay below the 9600-sample confirmation.
	out := feedFrames(d, 0.001, 12)
	if len(out) != 0 {
		t.Fatalf("Unconfirmed offset should emit nothing, got %d", len(out))
	}

	// Resuming speech re-emits the whole pending run plus the new frame,
	// deliberately uncapped.
	out = feedFrames(d, 0.05, 1)
	if len(out) != 5760+480 {
		t.Errorf("Expected 6240 samples on resume, got %d", len(out))
	}
	if d.State() != StateSpeaking {
		t.Errorf("Expected speaking after resume, got %v", d.State())
	}
}

func TestPartialTailFrameNotDropped(t *testing.T) {
	d := New(testConfig())

	// 1000 loud samples: two full frames confirm the onset, the 40-sample
	// tail is processed as its own frame while speaking.
	out := d.Process(constSamples(0.05, 1000))
	if len(out) != 1000 {
		t.Errorf("Expected all 1000 samples emitted, got %d", len(out))
	}
}

func TestReset(t *testing.T) {
	d := New(testConfig())
	feedFrames(d, 0.05, 2)
	if !d.IsSpeaking() {
		t.Fatal("Setup failed: expected speaking state")
	}

	d.Reset()
	if d.State() != StateSilence {
		t.Errorf("Expected silence after reset, got %v", d.State())
	}
	if d.IsSpeaking() {
		t.Error("IsSpeaking should be false after reset")
	}
	if out := feedFrames(d, 0.001, 1); len(out) != 0 {
		t.Errorf("Expected no output after reset, got %d samples", len(out))
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(constSamples(0.5, 100)); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("RMS of constant 0.5 = %v, want 0.5", got)
	}
	got := RMS([]float32{3, 4})
	want := math.Sqrt((9.0 + 16.0) / 2.0)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("RMS([3 4]) = %v, want %v", got, want)
	}
}

func TestToneWithGapKeepsPaddingOnly(t *testing.T) {
	cfg := testConfig()
	d := New(cfg)

	const rate = 16000
	toneLen := 48000 // 3s, 100 frames exactly
	gapLen := 32160  // ~2s rounded up to a whole frame count (67 frames)

	input := make([]float32, 0, 2*toneLen+gapLen)
	input = append(input, sineTone(440, 0.05, toneLen, rate)...)
	input = append(input, make([]float32, gapLen)...)
	input = append(input, sineTone(440, 0.05, toneLen, rate)...)

	out := d.Process(input)

	if len(out) >= len(input) {
		t.Fatalf("Output (%d) not shorter than input (%d)", len(out), len(input))
	}

	// The gap may contribute at most pre+post padding to the output.
	prePad := rate * cfg.PrePaddingMs / 1000
	postPad := rate * cfg.PostPaddingMs / 1000
	dropped := len(input) - len(out)
	if dropped < gapLen-(prePad+postPad) {
		t.Errorf("Only %d samples dropped; the gap should lose at least %d",
			dropped, gapLen-(prePad+postPad))
	}

	// Both tone runs survive in full, so the output is exactly the tones
	// plus the padding retained from the gap.
	want := 2*toneLen + prePad + postPad
	if len(out) != want {
		t.Errorf("Expected %d samples out, got %d", want, len(out))
	}
}

func BenchmarkProcessTone(b *testing.B) {
	d := New(testConfig())
	signal := sineTone(440, 0.05, 10*16000, 16000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Reset()
		d.Process(signal)
	}
}
