package pipeline

import (
	"log/slog"
	"time"
)

// CaptureConfig bundles the tunables for the Capture+VAD stage, matching
// the configuration surface's audio.* keys.
type CaptureConfig struct {
	SampleRate     int
	VadPreWindowMs int
	VadStartMs     int // start-of-analysis threshold AND the VAD tail-analysis window
	VadThreshold   float64
	VadFreqCutoff  float64
	VadCaptureMs   int
	PushTimeout    time.Duration
}

// DefaultCaptureConfig returns spec.md §4.4's defaults.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:     16000,
		VadPreWindowMs: 2000,
		VadStartMs:     1250,
		VadThreshold:   0.6,
		VadFreqCutoff:  100,
		VadCaptureMs:   10000,
		PushTimeout:    500 * time.Millisecond,
	}
}

// OnUtterance is fired (best-effort, must not block) whenever the VAD
// transitions from silence to a positive detection, purely for optional
// UX cues (a chime, a desktop notification). Its absence or failure must
// never affect audio output or transcription.
type OnUtterance func()

// CaptureStage polls the shared ring buffer, runs the energy-ratio VAD,
// and on detection invokes the STT backend synchronously — the
// intermediate "utterance ready" queue described for a decoupled
// transcription stage is intentionally skipped because it would add
// latency without a decoupling benefit (see spec.md §4.5).
type CaptureStage struct {
	cfg      CaptureConfig
	ring     *RingBuffer
	stt      STT
	textQ    *Queue[TextMessage]
	logger   *slog.Logger
	onUtter  OnUtterance

	sleepFn func(time.Duration)
}

// NewCaptureStage wires the stage to its shared ring buffer, its STT
// backend, and its downstream text queue.
func NewCaptureStage(cfg CaptureConfig, ring *RingBuffer, stt STT, textQ *Queue[TextMessage], onUtter OnUtterance, logger *slog.Logger) *CaptureStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureStage{
		cfg:     cfg,
		ring:    ring,
		stt:     stt,
		textQ:   textQ,
		onUtter: onUtter,
		logger:  logger.With("component", "capture"),
		sleepFn: time.Sleep,
	}
}

func (s *CaptureStage) Name() string { return "CaptureVAD" }

func (s *CaptureStage) Initialize() error {
	return nil
}

func (s *CaptureStage) Process() {
	// Interruptible sleep: bounded so Stop()/INTERRUPT stay observable.
	s.sleepFn(50 * time.Millisecond)

	startThreshold := s.cfg.SampleRate * s.cfg.VadStartMs / 1000
	if s.ring.ValidLen() < startThreshold {
		return
	}

	window := s.ring.Get(s.cfg.VadPreWindowMs)
	if len(window) == 0 {
		return
	}

	if !vadDetect(window, s.cfg.SampleRate, s.cfg.VadStartMs, s.cfg.VadThreshold, s.cfg.VadFreqCutoff) {
		return
	}

	if s.onUtter != nil {
		go func() {
			defer func() { recover() }()
			s.onUtter()
		}()
	}

	utterance := s.ring.Get(s.cfg.VadCaptureMs)
	// Clear before the (possibly slow) transcription call so the same
	// utterance can't be re-detected while we're transcribing it.
	s.ring.Clear()

	if len(utterance) == 0 {
		return
	}

	text, err := s.stt.Transcribe(utterance)
	if err != nil {
		s.logger.Error("transcribe failed", "err", err)
		return
	}

	text = normalizeTranscript(text)
	if text == "" {
		return
	}

	if res := s.textQ.Push(NewTextMessage(text), s.cfg.PushTimeout); res != PushOK {
		s.logger.Warn("failed to push transcript", "result", res)
		return
	}
	s.logger.Info("transcribed", "text", text)
}

func (s *CaptureStage) Cleanup() {}

// HandleControl flushes the downstream text queue on INTERRUPT/FLUSH and
// aborts the in-flight VAD cycle (there is nothing further to abort here
// since Process already returned by the time control is dispatched).
func (s *CaptureStage) HandleControl(msg ControlMessage) bool {
	switch msg.Tag {
	case ControlInterrupt, ControlFlush:
		if n := s.textQ.Flush(); n > 0 {
			s.logger.Info("flushed pending transcripts", "count", n)
		}
		return true
	default:
		return false
	}
}
