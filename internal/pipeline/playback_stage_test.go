package pipeline

import (
	"errors"
	"testing"
	"time"
)

func newTestPlaybackStage(onDrain func()) (*PlaybackStage, *Queue[PcmChunk], *fakePlaybackDevice) {
	audioQ := NewQueue[PcmChunk](4, nil)
	device := &fakePlaybackDevice{}
	cfg := DefaultPlaybackConfig()
	cfg.PopTimeout = 20 * time.Millisecond
	return NewPlaybackStage(cfg, device, audioQ, onDrain, nil), audioQ, device
}

func TestPlaybackStageOpensDeviceOnFirstChunk(t *testing.T) {
	stage, audioQ, device := newTestPlaybackStage(nil)

	audioQ.Push(PcmChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000}, 0)
	stage.Process()

	if device.openCount != 1 {
		t.Fatalf("expected one Open call, got %d", device.openCount)
	}
	if len(device.writes) != 1 {
		t.Fatalf("expected one Write call, got %d", len(device.writes))
	}
}

func TestPlaybackStageReopensDeviceOnRateChange(t *testing.T) {
	stage, audioQ, device := newTestPlaybackStage(nil)

	audioQ.Push(PcmChunk{Samples: []int16{1}, SampleRate: 16000}, 0)
	stage.Process()
	audioQ.Push(PcmChunk{Samples: []int16{1}, SampleRate: 22050}, 0)
	stage.Process()

	if device.openCount != 2 {
		t.Fatalf("expected Open called again on rate change, got %d opens", device.openCount)
	}
}

func TestPlaybackStageDoesNotReopenOnSameRate(t *testing.T) {
	stage, audioQ, device := newTestPlaybackStage(nil)

	audioQ.Push(PcmChunk{Samples: []int16{1}, SampleRate: 16000}, 0)
	stage.Process()
	audioQ.Push(PcmChunk{Samples: []int16{2}, SampleRate: 16000}, 0)
	stage.Process()

	if device.openCount != 1 {
		t.Fatalf("expected no re-open for an unchanged rate, got %d opens", device.openCount)
	}
}

func TestPlaybackStageWriteFailureForcesReopenNextChunk(t *testing.T) {
	stage, audioQ, device := newTestPlaybackStage(nil)

	audioQ.Push(PcmChunk{Samples: []int16{1}, SampleRate: 16000}, 0)
	stage.Process()

	device.writeErr = errors.New("underrun")
	audioQ.Push(PcmChunk{Samples: []int16{2}, SampleRate: 16000}, 0)
	stage.Process()

	device.writeErr = nil
	audioQ.Push(PcmChunk{Samples: []int16{3}, SampleRate: 16000}, 0)
	stage.Process()

	if device.openCount != 2 {
		t.Fatalf("expected a forced re-open after the failed write, got %d opens", device.openCount)
	}
}

func TestPlaybackStageOnDrainFiresWhenQueueEmpty(t *testing.T) {
	var drained bool
	stage, _, _ := newTestPlaybackStage(func() { drained = true })

	stage.Process() // queue empty, PopTimeout elapses

	if !drained {
		t.Fatal("expected onDrain to fire when the queue is observed empty")
	}
}

func TestPlaybackStageHandleControlDropsAndFlushes(t *testing.T) {
	stage, audioQ, device := newTestPlaybackStage(nil)
	audioQ.Push(PcmChunk{Samples: []int16{1}, SampleRate: 16000}, 0)

	if !stage.HandleControl(NewControlMessage(ControlFlush)) {
		t.Fatal("expected FLUSH to be handled")
	}
	if !device.dropCalled {
		t.Fatal("expected the device's in-driver audio to be dropped")
	}
	if audioQ.Size() != 0 {
		t.Fatalf("expected the pending-chunk queue flushed, size=%d", audioQ.Size())
	}
}

func TestPlaybackStageCleanupClosesDevice(t *testing.T) {
	stage, _, device := newTestPlaybackStage(nil)
	stage.Cleanup()

	if !device.closed {
		t.Fatal("expected Cleanup to close the device")
	}
}
