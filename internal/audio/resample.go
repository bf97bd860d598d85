package audio

// Resample converts samples from one rate to another using linear
// interpolation. The output holds floor(len(in)*to/from) samples; the last
// source sample is clamped when interpolation would read past the end.
// Equal rates return a copy.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(from) / float64(to)
	out := make([]float32, int(float64(len(in))/ratio))
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx+1 < len(in) {
			out[i] = in[idx]*(1-frac) + in[idx+1]*frac
		} else {
			out[i] = in[idx]
		}
	}
	return out
}
