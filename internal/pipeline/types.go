// Package pipeline implements the async streaming pipeline: the bounded
// queues, long-lived stage workers, and the manager/factory that wire them
// together for the voice assistant's capture -> transcribe -> generate ->
// synthesize -> play data flow, plus the text-in/text-out shortcut that
// bypasses audio.
package pipeline

import "time"

// AudioSamples is a finite, ordered sequence of 32-bit float mono PCM
// samples at a fixed capture sample rate, always in [-1.0, 1.0].
type AudioSamples []float32

// PcmChunk is a finite, ordered sequence of 16-bit signed PCM samples with
// an attached sample rate. Adjacent chunks may carry different rates;
// Playback reconfigures the device on change.
type PcmChunk struct {
	Samples    []int16
	SampleRate int
}

// PhonemeTiming is one entry of a TTS backend's optional per-phoneme
// duration side channel (see SynthesisStage). It never affects audio
// output; it's informational only.
type PhonemeTiming struct {
	PhonemeID string
	Seconds   float64
}

// TextMessage is a UTF-8 string moving between stages. Empty text must
// never be enqueued — producers drop empties before pushing.
type TextMessage struct {
	Text string

	stats messageStats
}

// NewTextMessage stamps the message with a creation time when the stats
// build tag is enabled; otherwise it is a plain wrapper.
func NewTextMessage(text string) TextMessage {
	return TextMessage{Text: text, stats: newMessageStats()}
}

// Age reports how long ago the message was created. It is always zero
// when built without the stats build tag.
func (m TextMessage) Age() time.Duration {
	return m.stats.age()
}

// ControlTag identifies the kind of ControlMessage.
type ControlTag int

const (
	ControlInterrupt ControlTag = iota
	ControlFlush
	ControlPause
	ControlResume
	ControlShutdown
)

func (t ControlTag) String() string {
	switch t {
	case ControlInterrupt:
		return "INTERRUPT"
	case ControlFlush:
		return "FLUSH"
	case ControlPause:
		return "PAUSE"
	case ControlResume:
		return "RESUME"
	case ControlShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// ControlMessage is a tagged control-plane instruction delivered to a
// worker's in-band inbox. Delivery is best-effort FIFO per target worker.
type ControlMessage struct {
	Tag ControlTag

	stats messageStats
}

// NewControlMessage builds a ControlMessage, stamping creation time under
// the stats build tag.
func NewControlMessage(tag ControlTag) ControlMessage {
	return ControlMessage{Tag: tag, stats: newMessageStats()}
}

func (m ControlMessage) Age() time.Duration {
	return m.stats.age()
}

// AudioSource is the capture-hardware capability contract. Implementations
// must tolerate being initialized multiple times with different driver
// backends, trying a fallback list in order until one succeeds.
type AudioSource interface {
	Init(deviceID int, sampleRate int) bool
	Resume() error
	Pause() error
	// OnSamples registers the callback invoked with float frames at the
	// negotiated rate. The callback runs on a driver-owned thread and must
	// not block.
	OnSamples(cb func(AudioSamples))
	Close()
}

// STT is the speech-to-text capability contract.
type STT interface {
	Init(modelPath string) bool
	Transcribe(samples AudioSamples) (string, error)
	Shutdown()
}

// LLM is the language-model capability contract.
type LLM interface {
	Init(modelPath string) bool
	// GenerateStream produces a reply as a stream of partial strings; each
	// call to onChunk delivers the most recently generated fragment. It
	// returns false (without error detail) on backend failure.
	GenerateStream(prompt string, onChunk func(chunk string)) bool
	Shutdown()
}

// TTS is the text-to-speech capability contract.
type TTS interface {
	Init() bool
	Speak(text string) (PcmChunk, bool)
	Shutdown()
}

// TimedTTS is the optional extension a TTS backend may implement to
// publish per-phoneme durations alongside synthesized audio.
type TimedTTS interface {
	TTS
	SpeakWithTimings(text string) (PcmChunk, []PhonemeTiming, bool)
}
