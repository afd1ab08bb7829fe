// Package stt adapts the whisper.cpp cgo bindings to the pipeline's STT
// capability contract.
package stt

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/halcyon-labs/vassist/internal/pipeline"
)

// Options tunes a Whisper transcription call beyond the capability
// contract's init(model_path)/transcribe(samples) surface.
type Options struct {
	Language    string
	Threads     int
	SplitOnWord bool
	BeamSize    int
}

// DefaultOptions mirrors what the capture stage needs for short,
// single-utterance transcription: auto language detection, word-boundary
// splitting, greedy decoding.
func DefaultOptions() Options {
	return Options{Language: "auto", SplitOnWord: true}
}

// Whisper implements pipeline.STT on top of whisper.cpp.
type Whisper struct {
	opts  Options
	model whisper.Model
}

// New constructs an un-initialized backend; call Init to load the model.
func New(opts Options) *Whisper {
	return &Whisper{opts: opts}
}

func (w *Whisper) Init(modelPath string) bool {
	if modelPath == "" {
		return false
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return false
	}
	w.model = m
	return true
}

// Transcribe runs whisper.cpp over a mono 16kHz float32 utterance and
// returns its concatenated segment text. The stage-level normalization
// (bracket stripping, non-phonetic filtering, first-line-only) happens in
// the pipeline, not here — this backend returns whisper's raw text.
func (w *Whisper) Transcribe(samples pipeline.AudioSamples) (string, error) {
	if w.model == nil {
		return "", errors.New("stt: model not initialized")
	}
	if len(samples) == 0 {
		return "", errors.New("stt: no audio samples provided")
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("stt: new context: %w", err)
	}

	lang := w.opts.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("stt: set language: %w", err)
	}

	threads := w.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if w.opts.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if w.opts.BeamSize > 0 {
		wctx.SetBeamSize(w.opts.BeamSize)
	}

	if err := wctx.Process([]float32(samples), nil, nil, nil); err != nil {
		return "", fmt.Errorf("stt: process: %w", err)
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stt: next segment: %w", err)
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}

	return sb.String(), nil
}

func (w *Whisper) Shutdown() {
	if w.model != nil {
		_ = w.model.Close()
		w.model = nil
	}
}
