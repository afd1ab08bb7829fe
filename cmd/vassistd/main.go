package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "log/slog"

	"github.com/halcyon-labs/vassist/internal/audio"
	"github.com/halcyon-labs/vassist/internal/config"
	"github.com/halcyon-labs/vassist/internal/ipc"
	"github.com/halcyon-labs/vassist/internal/llm"
	"github.com/halcyon-labs/vassist/internal/notify"
	"github.com/halcyon-labs/vassist/internal/pipeline"
	"github.com/halcyon-labs/vassist/internal/playback"
	"github.com/halcyon-labs/vassist/internal/sidechannel"
	"github.com/halcyon-labs/vassist/internal/stt"
	"github.com/halcyon-labs/vassist/internal/tts"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := config.InitLogger(cfg.LogLevel)
	logger.Info("booting up")

	mode, err := config.ParseMode(cfg.Mode)
	if err != nil {
		logger.Error("invalid mode", "err", err)
		os.Exit(1)
	}

	bits := backendsFor(mode)

	var backends pipeline.Backends

	notifier := notify.New()
	backends.OnUtterance = notifier.Listening

	if bits.capture {
		if cfg.InputFile != "" {
			backends.AudioSource = audio.NewFileSource(cfg.InputFile, 20)
		} else {
			backends.AudioSource = audio.NewSource()
		}
		wh := stt.New(stt.DefaultOptions())
		backends.STT = wh
	}

	if bits.generation {
		httpClient, err := llm.NewHTTPClient(cfg.ProxyAddr)
		if err != nil {
			logger.Error("failed to build LLM HTTP client", "err", err)
			os.Exit(1)
		}
		backends.LLM = llm.New(httpClient, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SystemPrompt)
	}

	if bits.synthesis {
		backends.TTS = tts.New(cfg.EspeakVoice)
		backends.Playback = playback.New()
		backends.Ducker = audio.NewDucker([]string{"vassist"}, 20, 0.25, 0)
	}

	var hub *sidechannel.Hub
	if bits.synthesis && cfg.SidechannelAddr != "" {
		hub = sidechannel.NewHub(logger)
		backends.Phonemes = hub

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleWS)
		go func() {
			if err := http.ListenAndServe(cfg.SidechannelAddr, mux); err != nil {
				logger.Error("sidechannel http server exited", "err", err)
			}
		}()
		logger.Info("sidechannel listening", "addr", cfg.SidechannelAddr)
	}

	mgr := pipeline.NewManager(mode, cfg.Queue, cfg.Capture, logger)
	if err := mgr.Initialize(backends); err != nil {
		logger.Error("pipeline initialize failed", "err", err)
		os.Exit(1)
	}
	if err := mgr.Start(); err != nil {
		logger.Error("pipeline start failed", "err", err)
		os.Exit(1)
	}
	logger.Info("pipeline running", "mode", mode.String())

	// The socket always accepts control frames (interrupt/shutdown); the
	// prompt path additionally works when the mode enables alt-text.
	srv := ipc.NewServer(cfg.SocketPath, mgr, mgr.Interrupt, func() {
		mgr.Stop()
		os.Exit(0)
	}, logger)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("ipc listen failed", "err", err)
		os.Exit(1)
	}
	logger.Info("ipc listening", "path", srv.Path)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	// SIGUSR1 is the manual barge-in trigger: an operator (or a bound key)
	// can interrupt the current utterance without going through the IPC
	// socket.
	interruptCh := make(chan os.Signal, 1)
	signal.Notify(interruptCh, syscall.SIGUSR1)

	for {
		select {
		case <-interruptCh:
			logger.Info("SIGUSR1 received, interrupting current utterance")
			mgr.Interrupt()
		case <-shutdownCh:
			logger.Info("shutting down")
			_ = srv.Close()
			if hub != nil {
				hub.Close()
			}
			mgr.Stop()
			return
		}
	}
}

type modeBits struct {
	capture    bool
	generation bool
	synthesis  bool
}

// backendsFor mirrors the Manager's own enablement table so main only
// constructs the backends a mode actually needs.
func backendsFor(mode pipeline.PipelineMode) modeBits {
	switch mode {
	case pipeline.VoiceAssistant:
		return modeBits{capture: true, generation: true, synthesis: true}
	case pipeline.TextOnly:
		return modeBits{generation: true}
	case pipeline.Transcription:
		return modeBits{capture: true}
	case pipeline.Synthesis:
		return modeBits{synthesis: true}
	case pipeline.VoiceAssistantWithAltText:
		return modeBits{capture: true, generation: true, synthesis: true}
	default:
		return modeBits{}
	}
}
