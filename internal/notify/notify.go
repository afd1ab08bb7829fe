// Package notify implements the optional UX cue fired on VAD detection
// (pipeline.OnUtterance): a desktop notification, best-effort and
// non-blocking. It deliberately avoids faiface/beep's shared global
// speaker device — that singleton is already owned by internal/playback
// for synthesized speech, and a concurrent Init() from a chime during
// barge-in would race with an in-progress utterance's device.
package notify

import (
	"context"
	"os/exec"
	"time"
)

// Notifier sends a short-lived desktop notification via notify-send. Its
// absence (no notification daemon running) is tolerated silently — the
// side channel is informational only.
type Notifier struct {
	timeout time.Duration
}

func New() *Notifier {
	return &Notifier{timeout: 2 * time.Second}
}

// Listening fires the "assistant is listening" cue. It must never block
// the caller for longer than its own timeout.
func (n *Notifier) Listening() {
	n.send("vassist", "Listening...")
}

// Speaking fires when synthesis begins producing audio for text.
func (n *Notifier) Speaking(text string) {
	n.send("vassist", text)
}

func (n *Notifier) send(title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	_ = exec.CommandContext(ctx, "notify-send", title, body).Run()
}
