package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	MaxResults    int
	SkipSponsored bool
	RequestDelay  time.Duration

	InferenceBaseURL     string
	InferenceModel       string
	InferenceTemperature float64
	InferenceMaxTokens   int
	InferenceJSONMode    bool
	InferenceTimeout     time.Duration
	InferenceAPIKey      string
	InferenceKeyPrefix   string
	InferenceKeyMinLen   int
	IntentContextTurns   int
	AppendMustInclude    bool

	PostgresDSN string

	NATSURL              string
	NATSCompletedSubject string
	NATSRequestSubject   string
	NATSMaxInFlight      int
	EventsEnabled        bool

	BrowserMode      string
	BrowserExecPath  string
	BrowserUserAgent string
	ProviderBaseURL  string
	SelectorsFile    string
	VocabularyFile   string

	SearchTimeout     time.Duration
	FetchMaxAttempts  int
	FetchInitialDelay time.Duration
	FetchPollDelay    time.Duration
	FetchErrorDelay   time.Duration
	ProviderRateLimit int
	ProviderWindow    time.Duration

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIBackpressureWait   time.Duration
	APIRequestBodyMaxSize int64

	WorkerMetricsPort string
}

const (
	BrowserModeHTTP     = "http"
	BrowserModeChromedp = "chromedp"
)

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		MaxResults:    clampInt(mustEnvInt("MAX_RESULTS", 3), 1, 10),
		SkipSponsored: mustEnvBool("SKIP_SPONSORED", true),
		RequestDelay:  time.Duration(clampInt(mustEnvInt("REQUEST_DELAY_SECONDS", 3), 3, 30)) * time.Second,

		InferenceBaseURL:     mustEnv("INFERENCE_BASE_URL", "https://api.openai.com/v1"),
		InferenceModel:       mustEnv("INFERENCE_MODEL", "gpt-3.5-turbo"),
		InferenceTemperature: mustEnvFloat("INFERENCE_TEMPERATURE", 0.2),
		InferenceMaxTokens:   mustEnvInt("INFERENCE_MAX_TOKENS", 1000),
		InferenceJSONMode:    mustEnvBool("INFERENCE_JSON_MODE", true),
		InferenceTimeout:     mustEnvDuration("INFERENCE_TIMEOUT", 15*time.Second),
		InferenceAPIKey:      mustEnv("INFERENCE_API_KEY", ""),
		InferenceKeyPrefix:   mustEnv("INFERENCE_KEY_PREFIX", "sk-"),
		InferenceKeyMinLen:   mustEnvInt("INFERENCE_KEY_MIN_LENGTH", 40),
		IntentContextTurns:   clampInt(mustEnvInt("INTENT_CONTEXT_TURNS", 5), 1, 5),
		AppendMustInclude:    mustEnvBool("INTENT_APPEND_MUST_INCLUDE", true),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:              mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSCompletedSubject: mustEnv("NATS_COMPLETED_SUBJECT", "shopping.search.completed"),
		NATSRequestSubject:   mustEnv("NATS_REQUEST_SUBJECT", "shopping.search.requests"),
		NATSMaxInFlight:      mustEnvInt("NATS_MAX_IN_FLIGHT", 4),
		EventsEnabled:        mustEnvBool("SEARCH_EVENTS_ENABLED", false),

		BrowserMode:      browserMode(mustEnv("BROWSER_MODE", BrowserModeHTTP)),
		BrowserExecPath:  mustEnv("BROWSER_EXEC_PATH", ""),
		BrowserUserAgent: mustEnv("BROWSER_USER_AGENT", ""),
		ProviderBaseURL:  mustEnv("PROVIDER_BASE_URL", ""),
		SelectorsFile:    mustEnv("SELECTORS_FILE", ""),
		VocabularyFile:   mustEnv("VOCABULARY_FILE", ""),

		SearchTimeout:     mustEnvDuration("SEARCH_TIMEOUT", 25*time.Second),
		FetchMaxAttempts:  mustEnvInt("FETCH_MAX_ATTEMPTS", 5),
		FetchInitialDelay: mustEnvDuration("FETCH_INITIAL_DELAY", 2500*time.Millisecond),
		FetchPollDelay:    mustEnvDuration("FETCH_POLL_DELAY", 1500*time.Millisecond),
		FetchErrorDelay:   mustEnvDuration("FETCH_ERROR_DELAY", 1000*time.Millisecond),
		ProviderRateLimit: mustEnvInt("PROVIDER_RATE_LIMIT", 100),
		ProviderWindow:    mustEnvDuration("PROVIDER_RATE_WINDOW", time.Hour),

		APIRateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:        mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWait:   mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIRequestBodyMaxSize: int64(mustEnvInt("API_REQUEST_BODY_MAX_BYTES", 64<<10)),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go duration strings ("1500ms") or whole seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func browserMode(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case BrowserModeChromedp:
		return BrowserModeChromedp
	default:
		return BrowserModeHTTP
	}
}
