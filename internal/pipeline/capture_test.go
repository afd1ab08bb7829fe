package pipeline

import (
	"testing"
	"time"
)

type fakeSTT struct {
	text string
	err  error
	got  AudioSamples
}

func (f *fakeSTT) Init(string) bool { return true }
func (f *fakeSTT) Transcribe(samples AudioSamples) (string, error) {
	f.got = samples
	return f.text, f.err
}
func (f *fakeSTT) Shutdown() {}

func newTestCaptureStage(stt STT, textQ *Queue[TextMessage], onUtter OnUtterance) (*CaptureStage, *RingBuffer) {
	cfg := DefaultCaptureConfig()
	cfg.VadStartMs = 100
	cfg.VadPreWindowMs = 200
	cfg.VadCaptureMs = 200
	cfg.SampleRate = 1000 // small rate keeps test buffers tiny
	cfg.VadFreqCutoff = 0 // high-pass math is covered by vad_test.go; skip it here

	ring := NewRingBuffer(cfg.VadPreWindowMs, cfg.SampleRate)
	stage := NewCaptureStage(cfg, ring, stt, textQ, onUtter, nil)
	stage.sleepFn = func(time.Duration) {} // no-op: don't slow down the test loop
	return stage, ring
}

func TestCaptureStageBelowStartThresholdDoesNothing(t *testing.T) {
	stt := &fakeSTT{text: "hello"}
	textQ := NewQueue[TextMessage](1, nil)
	stage, ring := newTestCaptureStage(stt, textQ, nil)

	ring.Push(make(AudioSamples, 10)) // far fewer samples than VadStartMs needs
	stage.Process()

	if _, res := textQ.TryPop(); res != PopEmpty {
		t.Fatalf("expected no transcript pushed below VAD start threshold, got %v", res)
	}
}

func TestCaptureStageDetectsAndPushesNormalizedTranscript(t *testing.T) {
	stt := &fakeSTT{text: "[noise] Hello world  "}
	textQ := NewQueue[TextMessage](1, nil)
	stage, ring := newTestCaptureStage(stt, textQ, nil)

	// Loud tail against a quiet head, enough samples to clear VadStartMs.
	quiet := make(AudioSamples, 150)
	loud := make(AudioSamples, 150)
	for i := range loud {
		loud[i] = 1.0
	}
	ring.Push(quiet)
	ring.Push(loud)

	stage.Process()

	msg, res := textQ.TryPop()
	if res != PopSuccess {
		t.Fatalf("expected a transcript to be pushed, got %v", res)
	}
	if msg.Text != "Hello world" {
		t.Fatalf("got %q", msg.Text)
	}
}

func TestCaptureStageClearsRingBufferAfterDetection(t *testing.T) {
	stt := &fakeSTT{text: "hi"}
	textQ := NewQueue[TextMessage](1, nil)
	stage, ring := newTestCaptureStage(stt, textQ, nil)

	quiet := make(AudioSamples, 150)
	loud := make(AudioSamples, 150)
	for i := range loud {
		loud[i] = 1.0
	}
	ring.Push(quiet)
	ring.Push(loud)

	stage.Process()

	if ring.ValidLen() != 0 {
		t.Fatalf("expected ring buffer cleared after detection, got ValidLen=%d", ring.ValidLen())
	}
}

func TestCaptureStageEmptyTranscriptNotPushed(t *testing.T) {
	stt := &fakeSTT{text: "[noise]"} // normalizes to empty
	textQ := NewQueue[TextMessage](1, nil)
	stage, ring := newTestCaptureStage(stt, textQ, nil)

	quiet := make(AudioSamples, 150)
	loud := make(AudioSamples, 150)
	for i := range loud {
		loud[i] = 1.0
	}
	ring.Push(quiet)
	ring.Push(loud)

	stage.Process()

	if _, res := textQ.TryPop(); res != PopEmpty {
		t.Fatalf("expected nothing pushed for an empty-after-normalization transcript, got %v", res)
	}
}

func TestCaptureStageOnUtteranceFiredBestEffort(t *testing.T) {
	stt := &fakeSTT{text: "hi"}
	textQ := NewQueue[TextMessage](1, nil)

	stage, ring := newTestCaptureStage(stt, textQ, func() {
		panic("onUtterance panics must not affect the caller")
	})

	quiet := make(AudioSamples, 150)
	loud := make(AudioSamples, 150)
	for i := range loud {
		loud[i] = 1.0
	}
	ring.Push(quiet)
	ring.Push(loud)

	// Process must return normally even though onUtter panics — it runs
	// in its own goroutine with a recover.
	stage.Process()
	time.Sleep(20 * time.Millisecond)
}

func TestCaptureStageHandleControlFlushesTextQueue(t *testing.T) {
	textQ := NewQueue[TextMessage](2, nil)
	textQ.Push(NewTextMessage("pending"), 0)
	stage, _ := newTestCaptureStage(&fakeSTT{}, textQ, nil)

	handled := stage.HandleControl(NewControlMessage(ControlInterrupt))
	if !handled {
		t.Fatal("expected INTERRUPT to be handled")
	}
	if textQ.Size() != 0 {
		t.Fatalf("expected text queue flushed, size=%d", textQ.Size())
	}
}
