package pipeline

import (
	"testing"
	"time"
)

type fakeAudioSource struct {
	cb       func(AudioSamples)
	resumed  bool
	paused   bool
	closed   bool
	initFail bool
}

func (f *fakeAudioSource) Init(deviceID int, sampleRate int) bool { return !f.initFail }
func (f *fakeAudioSource) Resume() error                          { f.resumed = true; return nil }
func (f *fakeAudioSource) Pause() error                           { f.paused = true; return nil }
func (f *fakeAudioSource) OnSamples(cb func(AudioSamples))        { f.cb = cb }
func (f *fakeAudioSource) Close()                                 { f.closed = true }

func fullBackends() Backends {
	return Backends{
		AudioSource: &fakeAudioSource{},
		STT:         &fakeSTT{text: "hello"},
		LLM:         &fakeLLM{fragments: []string{"hi there friend now "}}, // 4 words: reaches the default ChunkWords flush
		TTS:         &fakeTTS{chunk: PcmChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000}, ok: true},
		Playback:    &fakePlaybackDevice{},
	}
}

func TestManagerInitializeRejectsMissingCaptureBackends(t *testing.T) {
	m := NewManager(VoiceAssistant, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	b := fullBackends()
	b.AudioSource = nil

	if err := m.Initialize(b); err == nil {
		t.Fatal("expected Initialize to reject a nil AudioSource for a capture-enabled mode")
	}
}

func TestManagerInitializeRejectsMissingGenerationBackend(t *testing.T) {
	m := NewManager(TextOnly, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	b := fullBackends()
	b.LLM = nil

	if err := m.Initialize(b); err == nil {
		t.Fatal("expected Initialize to reject a nil LLM for a generation-enabled mode")
	}
}

func TestManagerInitializeRejectsMissingSynthesisBackends(t *testing.T) {
	m := NewManager(Synthesis, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	b := fullBackends()
	b.Playback = nil

	if err := m.Initialize(b); err == nil {
		t.Fatal("expected Initialize to reject a nil Playback device for a synthesis-enabled mode")
	}
}

func TestManagerInitializeTwiceFails(t *testing.T) {
	m := NewManager(TextOnly, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	if err := m.Initialize(fullBackends()); err != nil {
		t.Fatalf("unexpected error on first Initialize: %v", err)
	}
	if err := m.Initialize(fullBackends()); err == nil {
		t.Fatal("expected a second Initialize call to fail")
	}
}

func TestManagerStartResumesAudioSourceForCaptureModes(t *testing.T) {
	m := NewManager(VoiceAssistant, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	b := fullBackends()
	as := b.AudioSource.(*fakeAudioSource)

	if err := m.Initialize(b); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if !as.resumed {
		t.Fatal("expected AudioSource.Resume to be called on Start")
	}
}

func TestManagerStopPausesAndClosesAudioSourceAndShutsDownBackends(t *testing.T) {
	m := NewManager(VoiceAssistant, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	b := fullBackends()
	as := b.AudioSource.(*fakeAudioSource)

	m.Initialize(b)
	m.Start()
	m.Stop()

	if !as.paused || !as.closed {
		t.Fatalf("expected AudioSource paused and closed on Stop: paused=%v closed=%v", as.paused, as.closed)
	}
}

func TestManagerStopIsIdempotentAfterInitializeOnly(t *testing.T) {
	m := NewManager(TextOnly, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Stop()
	m.Stop() // must not panic
}

func TestManagerProcessTextInputRejectedWhenAltTextDisabled(t *testing.T) {
	m := NewManager(VoiceAssistant, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Start()
	defer m.Stop()

	if _, err := m.ProcessTextInput("hi"); err == nil {
		t.Fatal("expected ProcessTextInput to be rejected when the mode doesn't enable alt-text")
	}
}

func TestManagerProcessTextInputRejectsEmptyInput(t *testing.T) {
	m := NewManager(TextOnly, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Start()
	defer m.Stop()

	if _, err := m.ProcessTextInput(""); err == nil {
		t.Fatal("expected ProcessTextInput to reject empty input")
	}
}

func TestManagerProcessTextInputRoundTripsThroughGeneration(t *testing.T) {
	qcfg := DefaultQueueConfig()
	qcfg.ResponseTimeout = 2 * time.Second
	m := NewManager(TextOnly, qcfg, DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Start()
	defer m.Stop()

	reply, err := m.ProcessTextInput("prompt")
	if err != nil {
		t.Fatalf("ProcessTextInput: %v", err)
	}
	if reply == "" {
		t.Fatal("expected a non-empty reply from the generation stage")
	}
}

func TestManagerProcessTextInputSynthesisModeEchoesInputDirectly(t *testing.T) {
	m := NewManager(Synthesis, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Start()
	defer m.Stop()

	reply, err := m.ProcessTextInput("speak this")
	if err != nil {
		t.Fatalf("ProcessTextInput: %v", err)
	}
	if reply != "speak this" {
		t.Fatalf("expected the input echoed back verbatim, got %q", reply)
	}
}

func TestManagerInterruptRaisesFlagAndSignalsWorkers(t *testing.T) {
	m := NewManager(VoiceAssistant, DefaultQueueConfig(), DefaultCaptureConfig(), nil)
	m.Initialize(fullBackends())
	m.Start()
	defer m.Stop()

	m.Interrupt()
	if !m.interrupt.IsSet() {
		t.Fatal("expected the shared interrupt flag raised")
	}

	m.ClearInterrupt()
	if m.interrupt.IsSet() {
		t.Fatal("expected the shared interrupt flag cleared")
	}
}
