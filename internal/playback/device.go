// Package playback implements the pipeline's PlaybackDevice contract on
// top of faiface/beep's speaker, the same audio-output library the
// notification chime uses.
package playback

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const bufferSize = 1024 // frames; matches the ~1024-frame period spec'd for the device

// Device implements pipeline.PlaybackDevice. It is its own beep.Streamer:
// speaker pulls from an internal sample queue that Write feeds, which
// gives push-style writes on top of beep's pull-based playback model.
type Device struct {
	mu     sync.Mutex
	rate   int
	opened bool
	queue  chan int16
	closed bool
}

func New() *Device {
	return &Device{}
}

// Open (re)initializes the speaker at sampleRate. Calling it again with a
// different rate tears down and reopens, matching the device-rate-switch
// behavior spec'd for Playback.
func (d *Device) Open(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened && d.rate == sampleRate {
		return nil
	}
	if d.opened {
		speaker.Clear()
		speaker.Close()
	}

	if err := speaker.Init(beep.SampleRate(sampleRate), bufferSize); err != nil {
		return err
	}

	d.rate = sampleRate
	d.queue = make(chan int16, bufferSize*8)
	d.closed = false
	d.opened = true
	speaker.Play(d)
	return nil
}

// Write blocks until every sample has been handed to the speaker's pull
// loop — this is the pacing point that throttles Playback to hardware
// speed.
func (d *Device) Write(samples []int16) error {
	d.mu.Lock()
	queue := d.queue
	d.mu.Unlock()

	if queue == nil {
		return nil
	}
	for _, s := range samples {
		queue <- s
	}
	return nil
}

// Stream implements beep.Streamer, feeding mono int16 samples from the
// queue as duplicated float64 L/R pairs. An empty queue yields silence
// rather than blocking the speaker's own mixing loop.
func (d *Device) Stream(samples [][2]float64) (n int, ok bool) {
	d.mu.Lock()
	queue := d.queue
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return 0, false
	}

	for i := range samples {
		select {
		case s, open := <-queue:
			if !open {
				samples[i][0], samples[i][1] = 0, 0
				continue
			}
			v := float64(s) / 32768.0
			samples[i][0], samples[i][1] = v, v
		default:
			samples[i][0], samples[i][1] = 0, 0
		}
	}
	return len(samples), true
}

func (d *Device) Err() error { return nil }

// Drop discards anything currently queued in the driver, for the
// barge-in path. It must complete quickly: draining a channel is O(queued
// items) with no I/O.
func (d *Device) Drop() error {
	d.mu.Lock()
	queue := d.queue
	d.mu.Unlock()

	if queue == nil {
		return nil
	}
	for {
		select {
		case <-queue:
		default:
			return nil
		}
	}
}

// drainQueue blocks until every sample already written has been pulled
// off the queue by Stream, then gives the speaker's own internal
// bufferSize-frame buffer time to play out what it already pulled —
// letting the last sentence finish instead of cutting it off.
func (d *Device) drainQueue() {
	d.mu.Lock()
	queue := d.queue
	rate := d.rate
	d.mu.Unlock()

	if queue == nil {
		return
	}
	for len(queue) > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if rate > 0 {
		time.Sleep(bufferSize * time.Second / time.Duration(rate))
	}
}

// Close drains any audio still queued before shutting the device down,
// matching the original's snd_pcm_drain on normal cleanup (see Drop for
// the immediate, no-drain path used by barge-in).
func (d *Device) Close() {
	d.mu.Lock()
	opened := d.opened
	d.mu.Unlock()
	if !opened {
		return
	}

	d.drainQueue()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return
	}
	d.closed = true
	speaker.Clear()
	speaker.Close()
	d.opened = false
}
