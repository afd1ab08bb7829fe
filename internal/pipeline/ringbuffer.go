package pipeline

import "sync"

// RingBuffer holds the most recent capacity_ms milliseconds of captured
// PCM, irrespective of when the hardware callback fired. It is written by
// the capture callback (an arbitrary thread that must never block) and
// read by the capture+VAD stage.
//
// A single mutex guards writeCursor, validLen, and the backing array; the
// critical section is always just a memcpy-equivalent slice copy, so
// contention stays bounded.
type RingBuffer struct {
	mu sync.Mutex

	sampleRate  int
	data        []float32
	writeCursor int
	validLen    int
}

// NewRingBuffer allocates a zeroed buffer of sampleRate*capacityMs/1000
// floats.
func NewRingBuffer(capacityMs, sampleRate int) *RingBuffer {
	n := sampleRate * capacityMs / 1000
	if n <= 0 {
		n = 1
	}
	return &RingBuffer{
		sampleRate: sampleRate,
		data:       make([]float32, n),
	}
}

// Push is called from the capture callback. Writes wrap modulo N. If
// samples is longer than the buffer, the oldest len(samples)-N samples of
// the input are dropped before writing.
func (r *RingBuffer) Push(samples AudioSamples) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.data)
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}

	written := len(samples)
	if r.writeCursor+written > n {
		n0 := n - r.writeCursor
		copy(r.data[r.writeCursor:], samples[:n0])
		copy(r.data[0:], samples[n0:])
	} else {
		copy(r.data[r.writeCursor:], samples)
	}

	r.writeCursor = (r.writeCursor + written) % n
	r.validLen = min(r.validLen+written, n)
}

// Get returns the most recent min(ms*sampleRate/1000, validLen) samples,
// in chronological order, ending at the most recent write. When the
// logical region wraps, the two backing segments are copied in order.
func (r *RingBuffer) Get(ms int) AudioSamples {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.data)
	if ms <= 0 {
		ms = 0
	}
	want := r.sampleRate * ms / 1000
	if want > r.validLen {
		want = r.validLen
	}
	if want <= 0 {
		return nil
	}

	out := make([]float32, want)

	start := r.writeCursor - want
	for start < 0 {
		start += n
	}

	if start+want > n {
		n0 := n - start
		copy(out, r.data[start:])
		copy(out[n0:], r.data[:want-n0])
	} else {
		copy(out, r.data[start:start+want])
	}

	return out
}

// Clear resets the valid length and read cursor to zero. The backing
// buffer is not reallocated.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeCursor = 0
	r.validLen = 0
}

// ValidLen reports how many samples are currently readable.
func (r *RingBuffer) ValidLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validLen
}

// SampleRate reports the buffer's configured sample rate.
func (r *RingBuffer) SampleRate() int {
	return r.sampleRate
}
