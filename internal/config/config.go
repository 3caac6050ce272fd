package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// STTProviderName selects the transcription backend.
type STTProviderName string

const (
	STTWhisper STTProviderName = "whisper"
	STTGoogle  STTProviderName = "google"
)

// ReasoningProviderName selects the language-model backend.
type ReasoningProviderName string

const (
	ReasoningOpenAI ReasoningProviderName = "openai"
	ReasoningGemini ReasoningProviderName = "gemini"
)

type Config struct {
	Addr string

	DatabaseURL string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	MaxBodyBytes int64

	// Voice used when neither the request nor the caller's profile names one.
	DefaultVoice string

	// Speech-to-text
	STTProvider       STTProviderName
	WhisperModel      string
	GoogleSTTLanguage string

	// Reasoning
	ReasoningProvider   ReasoningProviderName
	ReasoningModel      string
	ReasoningTimeout    time.Duration
	ReasoningMaxRetries int
	GeminiAPIKey        string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Speech synthesis
	YarnGPTAPIKey string
	YarnGPTAPIURL string

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("SAFEHAVEN_ADDR", ":8080"),
		DatabaseURL:                   envOr("SAFEHAVEN_DATABASE_URL", ""),
		CORSAllowedOrigins:            make(map[string]struct{}),
		MaxBodyBytes:                  envInt64Or("SAFEHAVEN_MAX_BODY_BYTES", 12<<20), // 12 MiB
		DefaultVoice:                  envOr("SAFEHAVEN_DEFAULT_VOICE", "tayo"),
		STTProvider:                   STTProviderName(envOr("SAFEHAVEN_STT_PROVIDER", string(STTWhisper))),
		WhisperModel:                  envOr("SAFEHAVEN_WHISPER_MODEL", "whisper-1"),
		GoogleSTTLanguage:             envOr("SAFEHAVEN_GOOGLE_STT_LANGUAGE", "en-US"),
		ReasoningProvider:             ReasoningProviderName(envOr("SAFEHAVEN_REASONING_PROVIDER", string(ReasoningOpenAI))),
		ReasoningModel:                envOr("SAFEHAVEN_REASONING_MODEL", ""),
		ReasoningTimeout:              envDurationOr("SAFEHAVEN_REASONING_TIMEOUT", 30*time.Minute),
		ReasoningMaxRetries:           envIntOr("SAFEHAVEN_REASONING_MAX_RETRIES", 2),
		GeminiAPIKey:                  envOr("GEMINI_API_KEY", ""),
		OpenAIAPIKey:                  envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:                 envOr("SAFEHAVEN_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		YarnGPTAPIKey:                 envOr("YARNGPT_API_KEY", ""),
		YarnGPTAPIURL:                 envOr("YARNGPT_API_URL", "https://yarngpt.ai/api/v1/tts"),
		ReadHeaderTimeout:             envDurationOr("SAFEHAVEN_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("SAFEHAVEN_READ_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:           envDurationOr("SAFEHAVEN_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("SAFEHAVEN_CONNECT_TIMEOUT", 10*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("SAFEHAVEN_RESPONSE_HEADER_TIMEOUT", 5*time.Minute),
	}

	for _, origin := range splitCSV(os.Getenv("SAFEHAVEN_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("SAFEHAVEN_DATABASE_URL must be set")
	}

	switch cfg.STTProvider {
	case STTWhisper, STTGoogle:
	default:
		return Config{}, fmt.Errorf("SAFEHAVEN_STT_PROVIDER must be one of whisper|google")
	}

	switch cfg.ReasoningProvider {
	case ReasoningOpenAI, ReasoningGemini:
	default:
		return Config{}, fmt.Errorf("SAFEHAVEN_REASONING_PROVIDER must be one of openai|gemini")
	}

	if cfg.ReasoningModel == "" {
		switch cfg.ReasoningProvider {
		case ReasoningOpenAI:
			cfg.ReasoningModel = "gpt-4o"
		case ReasoningGemini:
			cfg.ReasoningModel = "gemini-2.0-flash"
		}
	}

	if cfg.ReasoningProvider == ReasoningOpenAI && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set when SAFEHAVEN_REASONING_PROVIDER=openai")
	}
	if cfg.ReasoningProvider == ReasoningGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when SAFEHAVEN_REASONING_PROVIDER=gemini")
	}
	if cfg.STTProvider == STTWhisper && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set when SAFEHAVEN_STT_PROVIDER=whisper")
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		return Config{}, fmt.Errorf("SAFEHAVEN_DEFAULT_VOICE must not be empty")
	}
	if strings.TrimSpace(cfg.YarnGPTAPIURL) == "" {
		return Config{}, fmt.Errorf("YARNGPT_API_URL must not be empty")
	}
	if cfg.ReasoningTimeout <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_REASONING_TIMEOUT must be > 0")
	}
	if cfg.ReasoningMaxRetries < 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_REASONING_MAX_RETRIES must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("SAFEHAVEN_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
