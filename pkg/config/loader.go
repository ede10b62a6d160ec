package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/app/configs")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Bare env vars used by the container deploys
	v.BindEnv("http.port", "PORT", "APP_HTTP_PORT")
	v.BindEnv("logging.level", "LOG_LEVEL", "APP_LOGGING_LEVEL")
	v.BindEnv("language.default_language", "DEFAULT_LANGUAGE")
	v.BindEnv("language.detection_threshold", "LANGUAGE_DETECTION_THRESHOLD")
	v.BindEnv("language.code_switching_enabled", "CODE_SWITCHING_ENABLED")
	v.BindEnv("interruption.enabled", "ENABLE_VOICE_INTERRUPTION")
	v.BindEnv("interruption_detection_ms", "INTERRUPTION_DETECTION_MS")
	v.BindEnv("grounding.enabled", "ENABLE_KEYWORD_MATCHING")
	v.BindEnv("backends.llm.endpoint", "LLM_ENDPOINT")
	v.BindEnv("backends.stt.endpoint", "STT_ENDPOINT")
	v.BindEnv("backends.tts.endpoint", "TTS_ENDPOINT")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("events.url", "NATS_URL", "APP_EVENTS_URL")
	v.BindEnv("security.jwt_secret", "JWT_SECRET", "APP_SECURITY_JWT_SECRET")
	v.BindEnv("vault.address", "VAULT_ADDR")
	v.BindEnv("vault.token", "VAULT_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// INTERRUPTION_DETECTION_MS is an integer millisecond budget
	if ms := v.GetInt("interruption_detection_ms"); ms > 0 {
		cfg.Interruption.TargetLatency = time.Duration(ms) * time.Millisecond
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "drivethru-voice")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 46000)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("language.default_language", "ar")
	v.SetDefault("language.detection_threshold", 0.8)
	v.SetDefault("language.code_switching_enabled", true)

	v.SetDefault("interruption.enabled", true)
	v.SetDefault("interruption.target_latency", 200*time.Millisecond)
	v.SetDefault("interruption.quiet_threshold", 0.01)
	v.SetDefault("interruption.fallback_threshold", 0.1)
	v.SetDefault("interruption.vad_mode", 2)
	v.SetDefault("interruption.sample_rate", 16000)

	v.SetDefault("nlu.clarification_threshold", 0.7)
	v.SetDefault("nlu.latency_target", 200*time.Millisecond)
	v.SetDefault("nlu.intent_max_tokens", 50)
	v.SetDefault("nlu.slot_max_tokens", 100)
	v.SetDefault("nlu.temperature", 0.1)

	v.SetDefault("grounding.enabled", true)
	v.SetDefault("grounding.fuzzy_threshold", 0.85)
	v.SetDefault("grounding.limit", 5)

	v.SetDefault("backends.llm.model", "llama3")
	v.SetDefault("backends.llm.timeout", 10*time.Second)
	v.SetDefault("backends.stt.model", "whisper-large-v3")
	v.SetDefault("backends.stt.timeout", 15*time.Second)
	v.SetDefault("backends.tts.voice", "default")
	v.SetDefault("backends.tts.timeout", 15*time.Second)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", 10*time.Second)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("inference.max_concurrent", 4)
	v.SetDefault("inference.queue_size", 32)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "redis://localhost:46379/0")
	v.SetDefault("cache.keyword_ttl", time.Hour)

	v.SetDefault("events.subject_prefix", "drivethru")
	v.SetDefault("events.exchange", "drivethru.events")
	v.SetDefault("events.max_reconnects", 10)
	v.SetDefault("events.reconnect_wait", 2*time.Second)

	v.SetDefault("security.issuer", "drivethru-voice")
	v.SetDefault("security.access_token_duration", 15*time.Minute)

	v.SetDefault("vault.secret_path", "secret/data/drivethru")

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("opentelemetry.enabled", false)
	v.SetDefault("opentelemetry.service_name", "drivethru-voice")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})
	v.SetDefault("cors.max_age", 3600)
}
