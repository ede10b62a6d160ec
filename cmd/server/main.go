package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/seu-repo/drivethru-voice/internal/adapter/ai/llm"
	"github.com/seu-repo/drivethru-voice/internal/adapter/ai/stt"
	"github.com/seu-repo/drivethru-voice/internal/adapter/ai/tts"
	"github.com/seu-repo/drivethru-voice/internal/adapter/cache"
	"github.com/seu-repo/drivethru-voice/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/drivethru-voice/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/drivethru-voice/internal/adapter/queue"
	"github.com/seu-repo/drivethru-voice/internal/adapter/storage/postgres"
	"github.com/seu-repo/drivethru-voice/internal/adapter/vault"
	wsAdapter "github.com/seu-repo/drivethru-voice/internal/adapter/websocket"
	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/internal/service/auth"
	"github.com/seu-repo/drivethru-voice/internal/service/grounding"
	"github.com/seu-repo/drivethru-voice/internal/service/health"
	"github.com/seu-repo/drivethru-voice/internal/service/interruption"
	"github.com/seu-repo/drivethru-voice/internal/service/language"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
	"github.com/seu-repo/drivethru-voice/internal/service/voice"
	"github.com/seu-repo/drivethru-voice/pkg/config"
)

const serviceName = "drivethru-voice"

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting drive-thru voice service",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Overlay secrets from Vault
	if cfg.Vault.Address != "" {
		secrets, err := vault.NewSecretManager(cfg.Vault, logger)
		if err != nil {
			logger.Fatal("Failed to create vault client", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := secrets.Apply(ctx, cfg); err != nil {
			logger.Warn("Vault secrets unavailable, using local configuration", zap.Error(err))
		}
		cancel()
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. Initialize PostgreSQL (keyword catalog)
	var (
		db          *gorm.DB
		keywordRepo ports.KeywordRepository
	)
	if cfg.Database.URL != "" {
		db, err = postgres.NewConnection(cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer postgres.Close(db)

		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(db); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		keywordRepo = postgres.NewKeywordRepository(db, logger)
	} else {
		logger.Warn("No database configured, keyword grounding has no catalog")
	}

	// 6. Initialize Cache (Redis, falling back to memory)
	var keywordCache ports.Cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		keywordCache = cache.NewLocalCache(time.Minute, logger)
	} else {
		keywordCache = redisCache
	}
	defer keywordCache.Close()

	// 7. Language, grounding and NLU services
	defaultLang := domain.ParseLanguage(cfg.Language.DefaultLanguage, domain.LanguageArabic)

	languageDetector := language.NewDetector(language.Config{
		DefaultLanguage:      defaultLang,
		Threshold:            cfg.Language.DetectionThreshold,
		CodeSwitchingEnabled: cfg.Language.CodeSwitchingEnabled,
	}, language.NewLinguaEstimator(), logger)

	catalog := grounding.NewCatalog(keywordRepo, keywordCache, cfg.Cache.KeywordTTL, logger)
	grounder := grounding.NewGrounder(grounding.Config{
		FuzzyThreshold: cfg.Grounding.FuzzyThreshold,
		Limit:          cfg.Grounding.Limit,
	}, logger)
	groundingService := grounding.NewService(catalog, grounder)

	// 8. Inference backends behind circuit breakers
	breakers := circuitbreaker.NewManager(circuitbreaker.FromConfig(cfg.CircuitBreaker), logger)

	var model ports.LanguageModel
	if b := cfg.Backends.LLM; b.Endpoint != "" {
		model = llm.NewOllama(b.Endpoint, b.Model, b.APIKey, circuitbreaker.NewHTTPClient("llm", b.Timeout, breakers, logger), logger)
	}
	var speechToText ports.SpeechToText
	if b := cfg.Backends.STT; b.Endpoint != "" {
		speechToText = stt.NewWhisper(b.Endpoint, b.Model, circuitbreaker.NewHTTPClient("stt", b.Timeout, breakers, logger), logger)
	}
	var textToSpeech ports.TextToSpeech
	if b := cfg.Backends.TTS; b.Endpoint != "" {
		textToSpeech = tts.NewPiper(b.Endpoint, b.Voice, circuitbreaker.NewHTTPClient("tts", b.Timeout, breakers, logger), logger)
	}

	var nluOpts []nlu.Option
	if cfg.Grounding.Enabled {
		nluOpts = append(nluOpts, nlu.WithKeywordSource(groundingService))
	}
	nluEngine := nlu.NewEngine(nlu.Config{
		DefaultLanguage:        defaultLang,
		ClarificationThreshold: cfg.NLU.ClarificationThreshold,
		LatencyTarget:          cfg.NLU.LatencyTarget,
		IntentMaxTokens:        cfg.NLU.IntentMaxTokens,
		SlotMaxTokens:          cfg.NLU.SlotMaxTokens,
		Temperature:            cfg.NLU.Temperature,
		GroundingLimit:         cfg.Grounding.Limit,
	}, model, logger, nluOpts...)

	// 9. Initialize Message Queue (NATS or RabbitMQ)
	events, err := queue.NewPublisher(cfg.Events, logger)
	if err != nil {
		logger.Fatal("Failed to connect to event bus", zap.Error(err))
	}
	var publisher ports.EventPublisher
	if events != nil {
		defer events.Close()
		publisher = events
	}

	// 10. Voice session orchestrator
	vad, err := interruption.NewEnergyVAD(cfg.Interruption.VADMode)
	if err != nil {
		logger.Fatal("Invalid VAD configuration", zap.Error(err))
	}
	pool := voice.NewInferencePool(cfg.Inference.MaxConcurrent)

	orchestrator := voice.NewOrchestrator(voice.Config{
		SampleRate:      cfg.Interruption.SampleRate,
		DefaultLanguage: defaultLang,
		QueueSize:       cfg.Inference.QueueSize,
		Interruption: interruption.Config{
			Enabled:           cfg.Interruption.Enabled,
			TargetLatency:     cfg.Interruption.TargetLatency,
			QuietThreshold:    cfg.Interruption.QuietThreshold,
			FallbackThreshold: cfg.Interruption.FallbackThreshold,
			SampleRate:        cfg.Interruption.SampleRate,
		},
	}, voice.Dependencies{
		STT:       speechToText,
		TTS:       textToSpeech,
		VAD:       vad,
		Languages: languageDetector,
		NLU:       nluEngine,
		Events:    publisher,
		Pool:      pool,
	}, logger)

	// 11. Health checks
	healthCfg := &health.Config{
		Version:  cfg.App.Version,
		Cache:    func(context.Context) error { return keywordCache.Ping() },
		Breakers: breakers,
		Backends: []string{"llm", "stt", "tts"},
	}
	if db != nil {
		healthCfg.Database = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	}
	healthService := health.NewService(healthCfg, logger)

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             16 * 1024 * 1024,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	// Health Check Endpoints
	healthHandler := health.NewFiberHandler(healthService,
		health.WithSessions(orchestrator.Registry()),
		health.WithNLU(nluEngine),
	)
	healthHandler.RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	// API v1 Routes
	v1 := app.Group("/api/v1", middleware.CircuitBreaker("drivethru-api", logger))

	var keywordWriter handlers.KeywordWriter
	if keywordRepo != nil {
		keywordWriter = catalog
	}
	nluHandler := handlers.NewNLUHandler(nluEngine, groundingService, keywordWriter, defaultLang, logger)
	languageHandler := handlers.NewLanguageHandler(languageDetector, logger)
	voiceHandler := handlers.NewVoiceHandler(speechToText, textToSpeech, languageDetector, pool, logger)

	// Health stays public so probes work without a token
	v1.Get("/nlu/health", nluHandler.Health)

	protected := v1
	if cfg.Security.JWTSecret != "" {
		jwtService := auth.NewJWTService(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.AccessTokenDuration, keywordCache, logger)
		protected = v1.Group("", middleware.AuthRequired(jwtService))

		authHandler := handlers.NewAuthHandler(jwtService, logger)
		protected.Post("/auth/tokens", authHandler.IssueToken)
		protected.Post("/auth/revoke", authHandler.Revoke)
		protected.Get("/auth/me", authHandler.Me)
	} else {
		logger.Warn("JWT secret not set, /api/v1 is unauthenticated")
	}

	protected.Post("/nlu/process", nluHandler.Process)
	protected.Post("/nlu/keywords/match", nluHandler.MatchKeywords)
	protected.Post("/nlu/keywords", nluHandler.AddKeyword)
	protected.Post("/language/detect", languageHandler.Detect)
	protected.Post("/voice/stt/transcribe", voiceHandler.Transcribe)
	protected.Post("/voice/tts/generate", voiceHandler.Synthesize)

	// WebSocket routes
	wsAdapter.SetupVoiceRoutes(app, wsAdapter.NewVoiceStreamHandler(orchestrator, logger))

	// 13. Start Background Workers
	if events != nil {
		startEventWorkers(events, logger)
	}

	// 14. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 15. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	healthHandler.Drain()
	logger.Info("Shutting down server...",
		zap.Int("active_sessions", orchestrator.Registry().Len()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
