// Package config loads vassistd's runtime configuration from CLI flags
// and a .env file, the way the daemon's predecessor did: spf13/pflag for
// flags, joho/godotenv for environment, lmittmann/tint for the resulting
// structured logger.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"github.com/halcyon-labs/vassist/internal/pipeline"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Config is vassistd's full runtime configuration: the ambient stack
// (logging, env file) plus every backend endpoint/model path and queue
// tunable the pipeline needs.
type Config struct {
	EnvFile    string
	LogLevel   string
	SocketPath string
	ProxyAddr  string

	Mode string // one of PipelineMode.String()'s values

	WhisperModelPath string
	EspeakVoice      string
	InputFile        string // replay a fixture audio file instead of live capture

	OpenAIAPIKey  string
	OpenAIBaseURL string
	SystemPrompt  string

	SidechannelAddr string

	Queue   pipeline.QueueConfig
	Capture pipeline.CaptureConfig
}

// Load parses flags, loads the env file, and assembles a Config. It does
// not validate backend reachability — that happens when the backends are
// actually initialized.
func Load(args []string) (*Config, error) {
	fs := cli.NewFlagSet("vassistd", cli.ContinueOnError)

	envFile := fs.StringP("env", "e", ".env", "Env file path")
	logLevel := fs.StringP("log", "l", "info", "Log level")
	socketPath := fs.StringP("socket", "s", "", "Unix socket path for the control/text interface")
	proxyAddr := fs.StringP("proxy", "p", "", "SOCKS5 proxy address for the LLM backend (empty disables)")
	mode := fs.StringP("mode", "m", "voice", "Pipeline mode: voice|text|transcribe|synthesize|voice-alt-text")
	inputFile := fs.String("input-file", "", "Replay this audio file (wav/mp3/ogg) instead of live capture")
	whisperModel := fs.String("whisper-model", "third_party/whisper.cpp/models/ggml-medium.bin", "Whisper model path")
	espeakVoice := fs.String("espeak-voice", "en", "espeak-ng voice language")
	openaiBaseURL := fs.String("llm-base-url", "", "OpenAI-compatible chat completions base URL")
	systemPrompt := fs.String("system-prompt", "", "System prompt prepended to every generation call")
	sidechannelAddr := fs.String("sidechannel-addr", "", "HTTP listen address for the lip-sync websocket side channel (empty disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := &Config{
		EnvFile:          *envFile,
		LogLevel:         *logLevel,
		SocketPath:       *socketPath,
		ProxyAddr:        *proxyAddr,
		Mode:             *mode,
		WhisperModelPath: *whisperModel,
		EspeakVoice:      *espeakVoice,
		InputFile:        *inputFile,
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    *openaiBaseURL,
		SystemPrompt:     *systemPrompt,
		SidechannelAddr:  *sidechannelAddr,
		Queue:            pipeline.DefaultQueueConfig(),
		Capture:          pipeline.DefaultCaptureConfig(),
	}

	if v := os.Getenv("VASSIST_SOCKET"); v != "" && cfg.SocketPath == "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("VASSIST_LLM_BASE_URL"); v != "" && cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = v
	}

	return cfg, nil
}

// InitLogger installs a tint-formatted slog.Logger as the process default
// and returns it for explicit wiring into components that want their own
// named handle.
func InitLogger(level string) *log.Logger {
	logger := log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[level],
		TimeFormat: time.Kitchen,
	}))
	log.SetDefault(logger)
	return logger
}

// ParseMode maps the --mode flag's string onto a pipeline.PipelineMode,
// using the lowercase-hyphenated values the CLI documents.
func ParseMode(s string) (pipeline.PipelineMode, error) {
	switch s {
	case "voice":
		return pipeline.VoiceAssistant, nil
	case "text":
		return pipeline.TextOnly, nil
	case "transcribe":
		return pipeline.Transcription, nil
	case "synthesize":
		return pipeline.Synthesis, nil
	case "voice-alt-text":
		return pipeline.VoiceAssistantWithAltText, nil
	default:
		return 0, fmt.Errorf("config: unknown mode %q", s)
	}
}
