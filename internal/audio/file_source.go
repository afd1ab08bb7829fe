package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-labs/vassist/internal/pipeline"
	"github.com/halcyon-labs/vassist/pkg/audioconv"
)

// FileSource implements pipeline.AudioSource by decoding a fixture audio
// file once (via pkg/audioconv, the same decode path the teacher built for
// offline transcription testing) and replaying it to the capture
// callback in fixed-size frames, as if it were a live microphone stream.
// It's wired in by --input-file for running the voice path against a
// recording instead of real hardware.
type FileSource struct {
	path       string
	frameMs    int
	sampleRate int

	samples []float32
	cb      func(pipeline.AudioSamples)

	stop chan struct{}
	done chan struct{}
}

// NewFileSource builds a FileSource that replays path's decoded audio in
// frameMs-sized frames once Resume is called.
func NewFileSource(path string, frameMs int) *FileSource {
	if frameMs <= 0 {
		frameMs = 20
	}
	return &FileSource{path: path, frameMs: frameMs}
}

func (s *FileSource) Init(deviceID int, sampleRate int) bool {
	_ = deviceID
	samples, err := audioconv.ConvertFileToPCM16k(context.Background(), s.path, audioconv.Options{})
	if err != nil || len(samples) == 0 {
		return false
	}
	s.samples = samples
	s.sampleRate = sampleRate
	return true
}

func (s *FileSource) OnSamples(cb func(pipeline.AudioSamples)) { s.cb = cb }

// Resume starts a goroutine that feeds frameMs-sized frames to the
// registered callback at real-time pace, then stops on its own once the
// file is exhausted.
func (s *FileSource) Resume() error {
	if s.cb == nil {
		return fmt.Errorf("audio: file source has no registered callback")
	}
	if len(s.samples) == 0 {
		return fmt.Errorf("audio: file source not initialized")
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	frameLen := s.sampleRate * s.frameMs / 1000
	if frameLen <= 0 {
		frameLen = 320
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(time.Duration(s.frameMs) * time.Millisecond)
		defer ticker.Stop()

		for off := 0; off < len(s.samples); off += frameLen {
			end := off + frameLen
			if end > len(s.samples) {
				end = len(s.samples)
			}
			frame := make(pipeline.AudioSamples, end-off)
			copy(frame, s.samples[off:end])

			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.cb(frame)
			}
		}
	}()
	return nil
}

func (s *FileSource) Pause() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	return nil
}

func (s *FileSource) Close() {
	_ = s.Pause()
}
