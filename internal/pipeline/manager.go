package pipeline

import (
	"errors"
	"log/slog"
	"time"
)

// ManagerState is one of the lifecycle states the Manager moves through.
type ManagerState int

const (
	ManagerConstructed ManagerState = iota
	ManagerInitialized
	ManagerRunning
	ManagerStopped
)

// QueueConfig bundles the queue capacities and per-operation timeouts the
// Manager uses to build text_q, resp_q, and the PCM queue, plus the
// timeouts process_text_input imposes on its own push/pop.
type QueueConfig struct {
	TextQueueCap    int
	RespQueueCap    int
	PcmQueueCap     int
	TextTimeout     time.Duration
	ResponseTimeout time.Duration
}

// DefaultQueueConfig returns spec.md §4.9's defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		TextQueueCap:    20,
		RespQueueCap:    20,
		PcmQueueCap:     50,
		TextTimeout:     500 * time.Millisecond,
		ResponseTimeout: 1 * time.Second,
	}
}

// Backends bundles the capability implementations the Manager wires into
// whichever stages the chosen Mode enables. A nil field is only valid if
// the corresponding stage is disabled for the mode; Initialize rejects a
// nil backend for an enabled stage.
type Backends struct {
	AudioSource AudioSource
	STT         STT
	LLM         LLM
	TTS         TTS
	Playback    PlaybackDevice
	Ducker      Ducker
	Phonemes    PhonemePublisher
	OnUtterance OnUtterance
}

// Manager owns every queue, constructs only the stages a Mode enables,
// and starts/stops them in the data-flow order required for a clean
// hand-off. It exposes the synchronous text-in/text-out entry point that
// bypasses audio entirely.
type Manager struct {
	mode   PipelineMode
	bits   enableBits
	qcfg   QueueConfig
	ccfg   CaptureConfig
	logger *slog.Logger

	state ManagerState

	interrupt *InterruptFlag
	textQ     *Queue[TextMessage]
	respQ     *Queue[TextMessage]

	ring *RingBuffer

	audioSource AudioSource
	stt         STT
	llm         LLM

	captureW    *Worker
	generationW *Worker
	synthesisW  *Worker
}

// NewManager constructs a Manager for the given mode; call Initialize to
// wire backends and allocate queues. ccfg is the capture/VAD configuration
// surface (sample rate, VAD threshold, capture window, ...) applied to
// the ring buffer, the audio source, and the Capture stage when the mode
// enables capture; it is ignored otherwise.
func NewManager(mode PipelineMode, qcfg QueueConfig, ccfg CaptureConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		mode:   mode,
		bits:   enableBitsFor(mode),
		qcfg:   qcfg,
		ccfg:   ccfg,
		logger: logger,
	}
}

// Initialize allocates the shared interrupt flag and the queues the mode
// needs, then constructs (but does not start) every enabled stage. It may
// be called exactly once; a nil backend for an enabled stage is a
// construction error and no partial pipeline is kept.
func (m *Manager) Initialize(b Backends) error {
	if m.state != ManagerConstructed {
		return errors.New("pipeline: manager already initialized")
	}

	if m.bits.capture && (b.AudioSource == nil || b.STT == nil) {
		return errors.New("pipeline: voice mode requires an AudioSource and an STT backend")
	}
	if m.bits.generation && b.LLM == nil {
		return errors.New("pipeline: generation requires an LLM backend")
	}
	if m.bits.synthesis && (b.TTS == nil || b.Playback == nil) {
		return errors.New("pipeline: synthesis requires a TTS backend and a playback device")
	}

	m.interrupt = NewInterruptFlag()
	m.textQ = NewQueue[TextMessage](m.qcfg.TextQueueCap, m.interrupt)
	m.respQ = NewQueue[TextMessage](m.qcfg.RespQueueCap, m.interrupt)

	if m.bits.capture {
		m.ring = NewRingBuffer(m.ccfg.VadPreWindowMs+m.ccfg.VadCaptureMs, m.ccfg.SampleRate)
		if !b.AudioSource.Init(0, m.ccfg.SampleRate) {
			return errors.New("pipeline: audio source init failed")
		}
		b.AudioSource.OnSamples(func(s AudioSamples) { m.ring.Push(s) })
		if !b.STT.Init("") {
			return errors.New("pipeline: STT init failed")
		}
		capture := NewCaptureStage(m.ccfg, m.ring, b.STT, m.textQ, b.OnUtterance, m.logger)
		m.captureW = NewWorker(capture, m.logger)
	}

	if m.bits.generation {
		if !b.LLM.Init("") {
			return errors.New("pipeline: LLM init failed")
		}
		gen := NewGenerationStage(DefaultGenerationConfig(), b.LLM, m.textQ, m.respQ, m.logger)
		m.generationW = NewWorker(gen, m.logger)
	}

	if m.bits.synthesis {
		if !b.TTS.Init() {
			return errors.New("pipeline: TTS init failed")
		}
		scfg := DefaultSynthesisConfig()
		scfg.AudioQueueSize = m.qcfg.PcmQueueCap
		synth := NewSynthesisStage(scfg, b.TTS, m.respQ, b.Playback, b.Ducker, b.Phonemes, m.interrupt, m.logger)
		m.synthesisW = NewWorker(synth, m.logger)
	}

	if m.bits.capture {
		m.audioSource = b.AudioSource
		m.stt = b.STT
	}
	if m.bits.generation {
		m.llm = b.LLM
	}

	m.state = ManagerInitialized
	return nil
}

// Start starts stages in reverse data-flow order (H+G, F, D) so downstream
// consumers are already draining before upstream producers begin, then
// resumes audio capture if the mode enables it.
func (m *Manager) Start() error {
	if m.state != ManagerInitialized {
		return errors.New("pipeline: manager not initialized")
	}

	if m.synthesisW != nil {
		m.synthesisW.Start()
	}
	if m.generationW != nil {
		m.generationW.Start()
	}
	if m.captureW != nil {
		m.captureW.Start()
		if m.audioSource != nil {
			if err := m.audioSource.Resume(); err != nil {
				return err
			}
		}
	}

	m.state = ManagerRunning
	return nil
}

// Stop shuts down every queue first (unblocking any stage parked on a
// pop), then stops stages in forward data-flow order (D, F, G+H). Each
// stage's Cleanup runs exactly once as its Worker joins.
func (m *Manager) Stop() {
	if m.state != ManagerRunning && m.state != ManagerInitialized {
		return
	}

	if m.audioSource != nil {
		_ = m.audioSource.Pause()
	}

	m.textQ.Shutdown()
	m.respQ.Shutdown()

	if m.captureW != nil {
		m.captureW.Stop()
	}
	if m.generationW != nil {
		m.generationW.Stop()
	}
	if m.synthesisW != nil {
		m.synthesisW.Stop()
	}

	if m.audioSource != nil {
		m.audioSource.Close()
	}
	if m.stt != nil {
		m.stt.Shutdown()
	}
	if m.llm != nil {
		m.llm.Shutdown()
	}

	m.state = ManagerStopped
}

// Interrupt raises the shared external-interrupt flag and signals every
// running stage — the barge-in path.
func (m *Manager) Interrupt() {
	m.interrupt.Raise()
	for _, w := range m.activeWorkers() {
		w.Signal(NewControlMessage(ControlInterrupt))
	}
}

// ClearInterrupt lowers the shared flag once the pipeline is ready to
// accept the next utterance.
func (m *Manager) ClearInterrupt() {
	m.interrupt.Clear()
}

func (m *Manager) activeWorkers() []*Worker {
	var ws []*Worker
	if m.captureW != nil {
		ws = append(ws, m.captureW)
	}
	if m.generationW != nil {
		ws = append(ws, m.generationW)
	}
	if m.synthesisW != nil {
		ws = append(ws, m.synthesisW)
	}
	return ws
}

// ProcessTextInput is the synchronous alt-text entry point. When
// Generation is enabled it pushes text to text_q under TextTimeout and
// pops the reply from resp_q under ResponseTimeout, reusing the same
// queues as the voice path — so concurrent voice utterances and text
// requests interleave in FIFO order, with no per-client session
// isolation. In SYNTHESIS mode there is no Generation stage to turn
// text_q into resp_q, so the input text is pushed directly onto resp_q
// for Synthesis to speak, and the same text is echoed back as the
// "reply" once it's accepted.
func (m *Manager) ProcessTextInput(text string) (string, error) {
	if !m.bits.altText {
		return "", errors.New("pipeline: text path not enabled for this mode")
	}
	if text == "" {
		return "", errors.New("pipeline: empty input")
	}

	if !m.bits.generation {
		if res := m.respQ.Push(NewTextMessage(text), m.qcfg.ResponseTimeout); res != PushOK {
			return "", errors.New("pipeline: resp_q push failed: " + pushResultString(res))
		}
		return text, nil
	}

	if res := m.textQ.Push(NewTextMessage(text), m.qcfg.TextTimeout); res != PushOK {
		return "", errors.New("pipeline: text_q push failed: " + pushResultString(res))
	}

	reply, res := m.respQ.Pop(m.qcfg.ResponseTimeout)
	if res != PopSuccess {
		return "", errors.New("pipeline: resp_q pop failed: " + popResultString(res))
	}
	return reply.Text, nil
}

func pushResultString(r PushResult) string {
	switch r {
	case PushOK:
		return "OK"
	case PushTimeout:
		return "TIMEOUT"
	case PushShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

func popResultString(r PopResult) string {
	switch r {
	case PopSuccess:
		return "SUCCESS"
	case PopEmpty:
		return "EMPTY"
	case PopTimeout:
		return "TIMEOUT"
	case PopShutdown:
		return "SHUTDOWN"
	case PopInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}
