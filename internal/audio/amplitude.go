package audio

// Amplitude returns the mean absolute sample magnitude of frame normalized to [0,1].
// Silence yields exactly 0; any non-zero sample yields a strictly positive value.
func Amplitude(frame Frame) float64 {
	width := frame.Format.BytesPerSample()
	maxMagnitude := frame.Format.MaxMagnitude()
	if width <= 0 || maxMagnitude <= 0 {
		return 0
	}

	n := len(frame.Data) / width
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		v := int64(decodeSample(frame.Data[i*width:], width))
		if v < 0 {
			v = -v
		}
		sum += float64(v)
	}
	if sum == 0 {
		return 0
	}

	level := sum / float64(n) / maxMagnitude
	if level > 1 {
		return 1
	}
	return level
}
