package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Language       LanguageConfig       `mapstructure:"language"`
	Interruption   InterruptionConfig   `mapstructure:"interruption"`
	NLU            NLUConfig            `mapstructure:"nlu"`
	Grounding      GroundingConfig      `mapstructure:"grounding"`
	Backends       BackendsConfig       `mapstructure:"backends"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Inference      InferenceConfig      `mapstructure:"inference"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Events         EventsConfig         `mapstructure:"events"`
	Security       SecurityConfig       `mapstructure:"security"`
	Vault          VaultConfig          `mapstructure:"vault"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	CORS           CORSConfig           `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LanguageConfig struct {
	DefaultLanguage      string  `mapstructure:"default_language"`
	DetectionThreshold   float64 `mapstructure:"detection_threshold"`
	CodeSwitchingEnabled bool    `mapstructure:"code_switching_enabled"`
}

type InterruptionConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	TargetLatency     time.Duration `mapstructure:"target_latency"`
	QuietThreshold    float64       `mapstructure:"quiet_threshold"`
	FallbackThreshold float64       `mapstructure:"fallback_threshold"`
	VADMode           int           `mapstructure:"vad_mode"`
	SampleRate        int           `mapstructure:"sample_rate"`
}

type NLUConfig struct {
	ClarificationThreshold float64       `mapstructure:"clarification_threshold"`
	LatencyTarget          time.Duration `mapstructure:"latency_target"`
	IntentMaxTokens        int           `mapstructure:"intent_max_tokens"`
	SlotMaxTokens          int           `mapstructure:"slot_max_tokens"`
	Temperature            float64       `mapstructure:"temperature"`
}

type GroundingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	Limit          int     `mapstructure:"limit"`
}

type BackendsConfig struct {
	LLM BackendConfig `mapstructure:"llm"`
	STT BackendConfig `mapstructure:"stt"`
	TTS BackendConfig `mapstructure:"tts"`
}

// BackendConfig points at an HTTP inference server. An empty endpoint
// disables the backend.
type BackendConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Voice    string        `mapstructure:"voice"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type InferenceConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	QueueSize     int `mapstructure:"queue_size"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	KeywordTTL time.Duration `mapstructure:"keyword_ttl"`
}

type EventsConfig struct {
	Driver        string        `mapstructure:"driver"` // nats, rabbitmq or empty
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Exchange      string        `mapstructure:"exchange"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	Issuer              string        `mapstructure:"issuer"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
}

type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	SecretPath string `mapstructure:"secret_path"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	ServiceName string       `mapstructure:"service_name"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}
