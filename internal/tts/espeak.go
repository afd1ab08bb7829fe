// Package tts adapts the espeak-ng cgo bindings to the pipeline's TTS
// capability contract, synthesizing to an in-memory PCM buffer instead of
// the original direct-to-device playback — Playback owns the device, not
// this backend.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

extern int goSynthCallback(short *wav, int numsamples, espeak_EVENT *events);

static int synthCallbackBridge(short *wav, int numsamples, espeak_EVENT *events) {
	return goSynthCallback(wav, numsamples, events);
}

static void registerSynthCallback() {
	espeak_SetSynthCallback(synthCallbackBridge);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/halcyon-labs/vassist/internal/pipeline"
)

const sampleRate = 22050

// synthState accumulates one in-flight synthesis call's output. espeak-ng
// exposes a single process-wide callback, so only one Speak call may be
// in flight at a time — guarded by mu, which is held for the duration of
// each call anyway (matching the original's synchronous playback model).
var (
	mu       sync.Mutex
	buf      []int16
	timings  []pipeline.PhonemeTiming
	lastWord string
)

//export goSynthCallback
func goSynthCallback(wav *C.short, numsamples C.int, events *C.espeak_EVENT) C.int {
	if numsamples > 0 && wav != nil {
		samples := unsafe.Slice((*C.short)(wav), int(numsamples))
		for _, s := range samples {
			buf = append(buf, int16(s))
		}
	}

	for ev := events; ev != nil && ev.etype != C.espeakEVENT_LIST_TERMINATED; {
		if ev.etype == C.espeakEVENT_WORD {
			seconds := float64(ev.audio_position) / 1000.0
			timings = append(timings, pipeline.PhonemeTiming{PhonemeID: lastWord, Seconds: seconds})
		}
		ev = (*C.espeak_EVENT)(unsafe.Add(unsafe.Pointer(ev), unsafe.Sizeof(*ev)))
	}

	return 0
}

// Espeak implements pipeline.TTS and pipeline.TimedTTS on top of
// espeak-ng's synthesis-to-callback API.
type Espeak struct {
	voiceLanguage string
}

// New constructs an un-initialized backend; call Init before Speak.
func New(voiceLanguage string) *Espeak {
	if voiceLanguage == "" {
		voiceLanguage = "en"
	}
	return &Espeak{voiceLanguage: voiceLanguage}
}

func (e *Espeak) Init() bool {
	mu.Lock()
	defer mu.Unlock()

	rc := C.espeak_Initialize(C.AUDIO_OUTPUT_RETRIEVAL, 500, nil, 0)
	if rc == -1 {
		return false
	}
	C.registerSynthCallback()

	lang := C.CString(e.voiceLanguage)
	defer C.free(unsafe.Pointer(lang))

	var specs C.espeak_VOICE
	specs.languages = lang
	C.espeak_SetVoiceByProperties(&specs)
	return true
}

// Speak synthesizes text to a single PcmChunk at espeak-ng's fixed 22050Hz
// output rate.
func (e *Espeak) Speak(text string) (pipeline.PcmChunk, bool) {
	samples, _, ok := e.synthesize(text)
	if !ok {
		return pipeline.PcmChunk{}, false
	}
	return pipeline.PcmChunk{Samples: samples, SampleRate: sampleRate}, true
}

// SpeakWithTimings additionally reports each word's approximate onset —
// espeak-ng's synth callback only hands back word-boundary events through
// this API, so "phoneme" timing here is word-granularity, not true
// per-phoneme; callers treating the side channel as informational only
// (per its contract) are unaffected.
func (e *Espeak) SpeakWithTimings(text string) (pipeline.PcmChunk, []pipeline.PhonemeTiming, bool) {
	samples, events, ok := e.synthesize(text)
	if !ok {
		return pipeline.PcmChunk{}, nil, false
	}
	return pipeline.PcmChunk{Samples: samples, SampleRate: sampleRate}, events, true
}

func (e *Espeak) synthesize(text string) ([]int16, []pipeline.PhonemeTiming, bool) {
	if text == "" {
		return nil, nil, true
	}

	mu.Lock()
	defer mu.Unlock()

	buf = buf[:0]
	timings = timings[:0]
	lastWord = text

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	rc := C.espeak_Synth(unsafe.Pointer(ctext), C.size_t(len(text)+1), 0, C.POS_CHARACTER, 0,
		C.espeakCHARS_AUTO, nil, nil)
	if rc != C.EE_OK {
		return nil, nil, false
	}
	if C.espeak_Synchronize() != C.EE_OK {
		return nil, nil, false
	}

	if len(buf) == 0 {
		return nil, nil, false
	}

	out := make([]int16, len(buf))
	copy(out, buf)
	ts := make([]pipeline.PhonemeTiming, len(timings))
	copy(ts, timings)
	return out, ts, true
}

func (e *Espeak) Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	C.espeak_Terminate()
}
