package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// GenerationConfig bundles the Generation stage's tunables.
type GenerationConfig struct {
	ChunkWords   int // K: complete words before a forced flush
	ChunkCeiling int // safety-ceiling byte count for a forced flush
	PopTimeout   time.Duration
	PushTimeout  time.Duration
}

// DefaultGenerationConfig returns spec.md §4.6's defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		ChunkWords:   4,
		ChunkCeiling: 96,
		PopTimeout:   500 * time.Millisecond,
		PushTimeout:  500 * time.Millisecond,
	}
}

// GenerationStage consumes transcripts (or directly injected text, for the
// text-in/text-out shortcut) from text_q, drives the LLM backend, and
// forwards chunked partial replies to resp_q as they're generated. The
// same text_q/resp_q pair serves both the voice path and the
// text-in/text-out shortcut — there is no per-session isolation.
type GenerationStage struct {
	cfg    GenerationConfig
	llm    LLM
	textQ  *Queue[TextMessage]
	respQ  *Queue[TextMessage]
	logger *slog.Logger

	abandon atomic.Bool
}

// NewGenerationStage wires the stage to its LLM backend and its
// upstream/downstream queues.
func NewGenerationStage(cfg GenerationConfig, llm LLM, textQ, respQ *Queue[TextMessage], logger *slog.Logger) *GenerationStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationStage{
		cfg:    cfg,
		llm:    llm,
		textQ:  textQ,
		respQ:  respQ,
		logger: logger.With("component", "generation"),
	}
}

func (s *GenerationStage) Name() string { return "Generation" }

func (s *GenerationStage) Initialize() error { return nil }

func (s *GenerationStage) Process() {
	msg, res := s.textQ.Pop(s.cfg.PopTimeout)
	if res != PopSuccess {
		return
	}
	if msg.Text == "" {
		return
	}

	s.abandon.Store(false)
	c := newChunker(s.cfg.ChunkWords, s.cfg.ChunkCeiling)

	ok := s.llm.GenerateStream(msg.Text, func(fragment string) {
		if s.abandon.Load() {
			return
		}
		c.Feed(fragment, func(text string) {
			if s.abandon.Load() {
				return
			}
			if res := s.respQ.Push(NewTextMessage(text), s.cfg.PushTimeout); res != PushOK {
				s.logger.Warn("failed to push response chunk", "result", res)
			}
		})
	})
	if !ok {
		s.logger.Error("generation failed", "prompt", msg.Text)
	}
}

func (s *GenerationStage) Cleanup() {}

// HandleControl abandons any in-flight generation (best-effort — the LLM
// backend is not guaranteed a cancel hook, so further callbacks for the
// current prompt are simply discarded) and flushes both queues.
func (s *GenerationStage) HandleControl(msg ControlMessage) bool {
	switch msg.Tag {
	case ControlInterrupt, ControlFlush:
		s.abandon.Store(true)
		nText := s.textQ.Flush()
		nResp := s.respQ.Flush()
		if nText > 0 || nResp > 0 {
			s.logger.Info("flushed on control", "text", nText, "resp", nResp, "tag", msg.Tag.String())
		}
		return true
	default:
		return false
	}
}
