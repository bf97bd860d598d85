package audio

import "sync"

// Ring accumulates captured samples between drains. The capture goroutine
// appends while the recording session or the continuous monitor drains.
type Ring struct {
	mu      sync.Mutex
	samples []float32
	rate    int
}

// NewRing creates a ring for samples at the given rate, pre-allocating
// capacity samples to avoid growth during a session.
func NewRing(rate, capacity int) *Ring {
	return &Ring{
		samples: make([]float32, 0, capacity),
		rate:    rate,
	}
}

// Append adds samples to the ring
func (r *Ring) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	r.samples = append(r.samples, samples...)
	r.mu.Unlock()
}

// Drain returns everything buffered and leaves the ring empty. The backing
// storage is swapped, not copied, so every sample is returned exactly once
// and the replacement keeps the same capacity.
func (r *Ring) Drain() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.samples
	r.samples = make([]float32, 0, cap(out))
	return out
}

// Count returns the number of buffered samples
func (r *Ring) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Duration returns the buffered audio length in seconds
func (r *Ring) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rate <= 0 {
		return 0
	}
	return float64(len(r.samples)) / float64(r.rate)
}

// SampleRate returns the rate the ring was created with
func (r *Ring) SampleRate() int {
	return r.rate
}
