package pipeline

import (
	"log/slog"
	"time"
)

// PlaybackDevice is the audio-output capability contract. Open may be
// called more than once over the device's lifetime whenever the sample
// rate changes between chunks.
type PlaybackDevice interface {
	Open(sampleRate int) error
	Write(samples []int16) error
	// Drop discards any audio queued in the device driver itself (distinct
	// from PlaybackStage's own queue) — used for immediate interrupt.
	Drop() error
	Close()
}

// PlaybackConfig bundles the Playback stage's tunables.
type PlaybackConfig struct {
	PopTimeout time.Duration
}

// DefaultPlaybackConfig returns spec.md §4.8's defaults.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{PopTimeout: 200 * time.Millisecond}
}

// PlaybackStage owns the output device and drains a PcmChunk queue that is
// never exposed outside the Synthesis stage that owns it (see
// SynthesisStage) — the original's AudioOutputProcessor is always a
// sub-component of its TTSProcessor, never a standalone pipeline stage.
type PlaybackStage struct {
	cfg    PlaybackConfig
	device PlaybackDevice
	audioQ *Queue[PcmChunk]
	logger *slog.Logger

	openRate int
	onDrain  func()
}

// NewPlaybackStage wires the stage to its device and its queue. onDrain,
// if non-nil, is invoked (from the stage's own goroutine, so it must not
// block) every time a pop finds the queue empty — SynthesisStage uses this
// to know when it's safe to unduck other audio streams.
func NewPlaybackStage(cfg PlaybackConfig, device PlaybackDevice, audioQ *Queue[PcmChunk], onDrain func(), logger *slog.Logger) *PlaybackStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackStage{
		cfg:     cfg,
		device:  device,
		audioQ:  audioQ,
		onDrain: onDrain,
		logger:  logger.With("component", "playback"),
	}
}

func (s *PlaybackStage) Name() string { return "Playback" }

func (s *PlaybackStage) Initialize() error { return nil }

func (s *PlaybackStage) Process() {
	chunk, res := s.audioQ.Pop(s.cfg.PopTimeout)
	if res != PopSuccess {
		if res == PopTimeout || res == PopEmpty {
			if s.onDrain != nil {
				s.onDrain()
			}
		}
		return
	}

	if chunk.SampleRate != s.openRate || s.openRate == 0 {
		if err := s.device.Open(chunk.SampleRate); err != nil {
			s.logger.Error("device open failed", "rate", chunk.SampleRate, "err", err)
			return
		}
		s.openRate = chunk.SampleRate
	}

	if err := s.device.Write(chunk.Samples); err != nil {
		// A write failure (underrun, device reset) drops this chunk and
		// forces the next chunk to reopen the device.
		s.logger.Warn("device write failed, will reopen", "err", err)
		s.openRate = 0
	}
}

func (s *PlaybackStage) Cleanup() {
	s.device.Close()
	s.openRate = 0
}

// HandleControl drops in-driver audio and flushes the pending-chunk queue
// immediately on INTERRUPT, matching the original's
// interrupt_audio_immediately (a hard stop, not a fade).
func (s *PlaybackStage) HandleControl(msg ControlMessage) bool {
	switch msg.Tag {
	case ControlInterrupt, ControlFlush:
		if err := s.device.Drop(); err != nil {
			s.logger.Warn("device drop failed", "err", err)
		}
		if n := s.audioQ.Flush(); n > 0 {
			s.logger.Info("flushed pending audio", "count", n)
		}
		return true
	default:
		return false
	}
}
