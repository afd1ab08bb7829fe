package pipeline

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Ducker is the optional ambient-audio-ducking capability: lower other
// system audio streams while the assistant is speaking, and restore them
// once it's done. A nil Ducker disables ducking entirely.
type Ducker interface {
	DuckOthers() error
	UnduckOthers() error
}

// PhonemePublisher is the optional lip-sync side channel a TimedTTS
// backend's timings are forwarded to. It's informational only — a publish
// failure must never affect audio output.
type PhonemePublisher interface {
	Publish(timing PhonemeTiming)
}

// SynthesisConfig bundles the Synthesis stage's tunables.
type SynthesisConfig struct {
	PopTimeout     time.Duration
	PushTimeout    time.Duration
	AudioQueueSize int
	FadeMs         int
	FadeStrength   float64
}

// DefaultSynthesisConfig returns spec.md §4.7's defaults.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		PopTimeout:     500 * time.Millisecond,
		PushTimeout:    1 * time.Second,
		AudioQueueSize: 20,
		FadeMs:         325,
		FadeStrength:   120,
	}
}

// fadeOutExponent converts the strength dial into the power-curve exponent
// used by fadeOut.
func fadeOutExponent(strength float64) float64 {
	return 1 + strength/25
}

// fadeOut applies a trailing fade-out in place so adjacent chunks can be
// concatenated back-to-back without an audible click: the last fadeSamples
// samples are scaled by g(t) = (1-t)^exp, t running from 0 (start of the
// fade window) to just under 1 (the last sample), and the scaled result is
// clipped to the int16 range.
func fadeOut(samples []int16, fadeSamples int, exp float64) {
	n := len(samples)
	if n == 0 || fadeSamples <= 0 {
		return
	}
	if fadeSamples > n {
		fadeSamples = n
	}
	start := n - fadeSamples

	for i := start; i < n; i++ {
		t := float64(i-start) / float64(fadeSamples)
		g := math.Pow(1-t, exp)
		v := float64(samples[i]) * g
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		samples[i] = int16(v)
	}
}

// SynthesisStage consumes resp_q, synthesizes each chunk to PCM, and owns
// a Playback sub-component it drives through an internal queue — nothing
// outside this stage ever sees that queue, mirroring the original
// TTSProcessor owning its own AudioOutputProcessor. Other audio streams
// are ducked for the duration of an utterance's playback and restored
// once the internal audio queue drains.
type SynthesisStage struct {
	cfg    SynthesisConfig
	tts    TTS
	respQ  *Queue[TextMessage]
	logger *slog.Logger

	ducker    Ducker
	phonemes  PhonemePublisher
	audioQ    *Queue[PcmChunk]
	playback  *PlaybackStage
	playbackW *Worker

	ducked  atomic.Bool
	abandon atomic.Bool
}

// NewSynthesisStage wires the stage to its TTS backend, its upstream
// queue, its playback device, and the optional ducker/phoneme publisher.
// interrupt is the same shared flag observed by every other queue in the
// pipeline.
func NewSynthesisStage(cfg SynthesisConfig, tts TTS, respQ *Queue[TextMessage], device PlaybackDevice, ducker Ducker, phonemes PhonemePublisher, interrupt *InterruptFlag, logger *slog.Logger) *SynthesisStage {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "synthesis")

	s := &SynthesisStage{
		cfg:      cfg,
		tts:      tts,
		respQ:    respQ,
		logger:   logger,
		ducker:   ducker,
		phonemes: phonemes,
	}

	s.audioQ = NewQueue[PcmChunk](cfg.AudioQueueSize, interrupt)
	s.playback = NewPlaybackStage(DefaultPlaybackConfig(), device, s.audioQ, s.onPlaybackDrain, logger)
	s.playbackW = NewWorker(s.playback, logger)
	return s
}

func (s *SynthesisStage) Name() string { return "Synthesis" }

// Initialize starts the owned Playback sub-worker. It is never exposed to
// the Manager as its own pipeline stage.
func (s *SynthesisStage) Initialize() error {
	s.playbackW.Start()
	return nil
}

func (s *SynthesisStage) Process() {
	msg, res := s.respQ.Pop(s.cfg.PopTimeout)
	if res != PopSuccess {
		return
	}
	if msg.Text == "" {
		return
	}

	s.abandon.Store(false)
	s.duck()

	if timed, ok := s.tts.(TimedTTS); ok && s.phonemes != nil {
		chunk, timings, speakOK := timed.SpeakWithTimings(msg.Text)
		if !speakOK {
			s.logger.Error("synthesis failed", "text", msg.Text)
			return
		}
		if s.abandon.Load() {
			// INTERRUPT landed while the backend was synthesizing; discard
			// the now-stale chunk instead of playing it.
			return
		}
		for _, t := range timings {
			s.publishPhoneme(t)
		}
		s.enqueue(chunk)
		return
	}

	chunk, ok := s.tts.Speak(msg.Text)
	if !ok {
		s.logger.Error("synthesis failed", "text", msg.Text)
		return
	}
	if s.abandon.Load() {
		return
	}
	s.enqueue(chunk)
}

func (s *SynthesisStage) enqueue(chunk PcmChunk) {
	if len(chunk.Samples) == 0 {
		return
	}
	fadeSamples := chunk.SampleRate * s.cfg.FadeMs / 1000
	fadeOut(chunk.Samples, fadeSamples, fadeOutExponent(s.cfg.FadeStrength))

	if res := s.audioQ.Push(chunk, s.cfg.PushTimeout); res != PushOK {
		s.logger.Warn("failed to push synthesized audio", "result", res)
	}
}

func (s *SynthesisStage) duck() {
	if s.ducker == nil || s.ducked.Load() {
		return
	}
	if err := s.ducker.DuckOthers(); err != nil {
		s.logger.Warn("duck failed", "err", err)
		return
	}
	s.ducked.Store(true)
}

// onPlaybackDrain runs on the Playback stage's own goroutine whenever its
// queue is observed empty; it's the signal that it's safe to restore other
// streams' volume.
func (s *SynthesisStage) onPlaybackDrain() {
	if s.ducker == nil || !s.ducked.Load() {
		return
	}
	if err := s.ducker.UnduckOthers(); err != nil {
		s.logger.Warn("unduck failed", "err", err)
		return
	}
	s.ducked.Store(false)
}

func (s *SynthesisStage) publishPhoneme(t PhonemeTiming) {
	defer func() { recover() }()
	s.phonemes.Publish(t)
}

// Cleanup stops the owned Playback sub-worker, which in turn closes the
// device.
func (s *SynthesisStage) Cleanup() {
	s.playbackW.Stop()
}

// HandleControl forwards INTERRUPT/FLUSH to the owned Playback stage (so
// in-driver audio drops immediately, not just queued audio) and flushes
// resp_q on this side.
func (s *SynthesisStage) HandleControl(msg ControlMessage) bool {
	switch msg.Tag {
	case ControlInterrupt, ControlFlush:
		s.abandon.Store(true)
		s.playback.HandleControl(msg)
		if n := s.respQ.Flush(); n > 0 {
			s.logger.Info("flushed pending responses", "count", n)
		}
		if s.ducked.Load() {
			s.onPlaybackDrain()
		}
		return true
	default:
		return false
	}
}
