// Package audio adapts portaudio-backed capture and pactl-based stream
// ducking to the pipeline's AudioSource and Ducker capability contracts.
package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/halcyon-labs/vassist/internal/pipeline"
)

// driverCandidate is one entry of the fallback list Source.Init tries in
// order until one succeeds, mirroring the pipewire/pulse/alsa/dsp/dummy
// fallback chain audio backends commonly use.
type driverCandidate struct {
	name string
	open func(sampleRate int, cb func([]float32)) (*portaudio.Stream, error)
}

// Source implements pipeline.AudioSource on top of portaudio. Init may be
// called more than once with different sample rates; each call tears down
// any previously opened stream first.
type Source struct {
	stream     *portaudio.Stream
	sampleRate int
	cb         func(samples pipeline.AudioSamples)
}

func NewSource() *Source { return &Source{} }

func defaultCandidates() []driverCandidate {
	return []driverCandidate{
		{name: "default", open: openDefaultStream},
	}
}

func openDefaultStream(sampleRate int, cb func([]float32)) (*portaudio.Stream, error) {
	const framesPerBuffer = 320 // 20ms at 16kHz
	return portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer,
		func(in []float32) { cb(in) })
}

// Init initializes the portaudio runtime and opens an input stream,
// trying each fallback candidate in order. deviceID is currently unused —
// portaudio's Go binding is driven through OpenDefaultStream — but kept
// in the signature to match the capability contract other backends (and
// future device selection) need.
func (s *Source) Init(deviceID int, sampleRate int) bool {
	_ = deviceID

	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}

	if err := portaudio.Initialize(); err != nil {
		return false
	}

	for _, cand := range defaultCandidates() {
		stream, err := cand.open(sampleRate, s.dispatch)
		if err != nil {
			continue
		}
		s.stream = stream
		s.sampleRate = sampleRate
		return true
	}
	return false
}

func (s *Source) dispatch(samples []float32) {
	if s.cb == nil {
		return
	}
	// Copy out of the driver's reused buffer before handing it off — the
	// callback must do only a cheap copy, matching the ring buffer's own
	// push() contract.
	cp := make(pipeline.AudioSamples, len(samples))
	copy(cp, samples)
	s.cb(cp)
}

// OnSamples registers the callback invoked with each captured frame.
func (s *Source) OnSamples(cb func(samples pipeline.AudioSamples)) {
	s.cb = cb
}

func (s *Source) Resume() error {
	if s.stream == nil {
		return fmt.Errorf("audio: source not initialized")
	}
	return s.stream.Start()
}

func (s *Source) Pause() error {
	if s.stream == nil {
		return nil
	}
	return s.stream.Stop()
}

func (s *Source) Close() {
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	portaudio.Terminate()
}
