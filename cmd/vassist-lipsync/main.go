package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/halcyon-labs/vassist/internal/sidechannel"
)

func main() {
	url := os.Getenv("VASSIST_SIDECHANNEL_URL")
	if url == "" {
		url = "ws://localhost:8093/ws"
	}

	slog.Info("connecting to lip-sync side channel", "url", url)

	sub, err := sidechannel.NewSubscriber(url, 0, 500*time.Millisecond)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}

	for {
		inc := sub.Read()
		switch inc.Kind {
		case sidechannel.ReadOK:
			slog.Info("phoneme timing", "text", inc.Event.Text, "seconds", inc.Event.Seconds)
		case sidechannel.ConnClosed:
			slog.Warn("side channel closed, reconnecting", "err", inc.Err)
			if err := sub.TryReconn(); err != nil {
				slog.Error("reconnect failed, giving up", "err", err)
				os.Exit(1)
			}
		case sidechannel.ReadFailure:
			slog.Warn("read failure, reconnecting", "err", inc.Err)
			if err := sub.TryReconn(); err != nil {
				slog.Error("reconnect failed, giving up", "err", err)
				os.Exit(1)
			}
		}
	}
}
