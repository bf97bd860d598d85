package audio

import (
	"math"
	"testing"
)

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)

	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Sample %d = %v, want %v", i, out[i], in[i])
		}
	}

	// The result is a copy, not a view of the input
	out[0] = 9
	if in[0] != 0.1 {
		t.Error("Resample aliased its input")
	}
}

func TestResampleEmpty(t *testing.T) {
	if out := Resample(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
}

func TestResampleDownsample(t *testing.T) {
	// 48k -> 16k keeps every third sample exactly when the ratio is whole.
	in := make([]float32, 48)
	for i := range in {
		in[i] = float32(i)
	}

	out := Resample(in, 48000, 16000)
	if len(out) != 16 {
		t.Fatalf("Expected 16 samples, got %d", len(out))
	}
	for i := range out {
		if out[i] != in[3*i] {
			t.Errorf("Sample %d = %v, want %v", i, out[i], in[3*i])
		}
	}
}

func TestResampleUpsample(t *testing.T) {
	in := []float32{0, 1, 2, 3}

	out := Resample(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("Expected 8 samples, got %d", len(out))
	}

	// Odd positions interpolate midpoints; the final sample clamps to the
	// last input value.
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestResampleLengthFloor(t *testing.T) {
	in := make([]float32, 100)

	out := Resample(in, 48000, 16000)
	if len(out) != 33 {
		t.Errorf("Expected floor(100/3) = 33 samples, got %d", len(out))
	}
}
