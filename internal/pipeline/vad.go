package pipeline

import "math"

// highPassFilter applies a first-order high-pass filter with cutoff
// cutoffHz in place. A zero cutoff is a no-op, matching the boundary case
// spec'd for the VAD window.
func highPassFilter(samples []float32, sampleRate int, cutoffHz float64) {
	if cutoffHz <= 0 || len(samples) == 0 {
		return
	}

	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := rc / (rc + dt)

	prevIn := samples[0]
	prevOut := samples[0]
	for i := 1; i < len(samples); i++ {
		in := samples[i]
		out := float32(alpha) * (prevOut + in - prevIn)
		samples[i] = out
		prevIn = in
		prevOut = out
	}
}

// rms computes the root-mean-square energy of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// vadDetect implements the energy-ratio VAD: a first-order high-pass
// filter followed by a comparison of the tail energy (the most recent
// analysisMs of the window) against the full-window energy. Reporting is
// self-normalizing to the current microphone gain rather than relying on
// an absolute amplitude threshold.
//
// window is analyzed in place (the caller must pass a copy if it still
// needs the unfiltered samples). Tie-break: an all-zero window (E_all==0)
// never reports voice, regardless of threshold.
func vadDetect(window AudioSamples, sampleRate int, analysisMs int, threshold float64, cutoffHz float64) bool {
	if len(window) == 0 {
		return false
	}

	filtered := make([]float32, len(window))
	copy(filtered, window)
	highPassFilter(filtered, sampleRate, cutoffHz)

	eAll := rms(filtered)
	if eAll == 0 {
		return false
	}

	tailSamples := sampleRate * analysisMs / 1000
	if tailSamples > len(filtered) {
		tailSamples = len(filtered)
	}
	tail := filtered[len(filtered)-tailSamples:]
	eTail := rms(tail)

	return eTail > threshold*eAll
}
