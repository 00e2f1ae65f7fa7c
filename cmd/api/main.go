package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rapportlabs/rapport/cmd/mainconfig"
	"github.com/rapportlabs/rapport/internal/api/router"
	"github.com/rapportlabs/rapport/internal/archive"
	"github.com/rapportlabs/rapport/internal/classifier"
	appconfig "github.com/rapportlabs/rapport/internal/config"
	"github.com/rapportlabs/rapport/internal/engine"
	"github.com/rapportlabs/rapport/internal/http/handlers"
	"github.com/rapportlabs/rapport/internal/intimacy"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/observability/metrics"
	"github.com/rapportlabs/rapport/internal/persona"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

func main() {
	// No .env in production; environment variables carry everything.
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rapport API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	// Relationship store: postgres when configured, in-memory otherwise.
	var relStore relationship.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		relStore = relationship.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, relationship state is in-memory")
		relStore = relationship.NewMemoryStore()
	}

	thresholds := relationship.TierThresholds{
		AdversarialMax:     cfg.TierAdversarialMax,
		NeutralNegativeMax: cfg.TierNeutralNegativeMax,
		FriendMin:          cfg.TierFriendMin,
		CloseFriendMin:     cfg.TierCloseFriendMin,
		DeeplyLovingMin:    cfg.TierDeeplyLovingMin,
	}
	ledger := relationship.NewLedger(relStore, thresholds, classifier.DefaultDeltaWeights(), logger)

	// Intimacy window store.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	intimacyStore := intimacy.NewRedisStore(redisClient, cfg.IntimacyStateTTL)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Open loop store.
	var loopStore loops.Store
	if cfg.LoopsTable != "" {
		loopStore = loops.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.LoopsTable)
	} else {
		logger.Warn("LOOPS_TABLE not set, open loops are in-memory")
		loopStore = loops.NewMemoryStore()
	}
	tracker := loops.NewTracker(loopStore, loops.FuzzyMatcher{}, cfg.MinSurfaceGap, logger)

	// LLM stack: Bedrock primary, Gemini fallback when a key is present.
	var llm classifier.LLMClient = classifier.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := classifier.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client unavailable, running bedrock only", "error", err)
		} else {
			llm = classifier.NewFallbackLLMClient(llm, gemini, logger)
		}
	}
	turnClassifier := classifier.NewAdapter(llm, cfg.BedrockModelID, cfg.ClassifierTimeout, logger)
	detector := loops.NewDetector(llm, cfg.BedrockModelID, cfg.ClassifierTimeout, logger)

	var archiveStore *archive.Store
	if cfg.ArchiveBucket != "" {
		archiveStore = archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
	}

	var opinions *persona.Library
	if cfg.OpinionsPath != "" {
		opinions = persona.NewLibrary(cfg.OpinionsPath, nil, 5*time.Minute)
	}

	engineMetrics := metrics.NewEngineMetrics(nil)

	engineCfg := engine.Config{
		Classifier:    turnClassifier,
		Ledger:        ledger,
		Tracker:       tracker,
		Detector:      detector,
		IntimacyStore: intimacyStore,
		Opinions:      opinions,
		Metrics:       engineMetrics,
		Logger:        logger,
	}
	// Side-write queue: SQS when configured, otherwise in-memory.
	var apiQueue *engine.MemoryQueue
	if cfg.UseMemoryQueue || cfg.SideWriteQueueURL == "" {
		apiQueue = engine.NewMemoryQueue(0)
		engineCfg.Queue = apiQueue
	} else {
		engineCfg.Queue = engine.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SideWriteQueueURL)
	}
	eng := engine.New(engineCfg)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if apiQueue != nil {
		// In-memory queue: drain it in-process, the worker binary cannot see it.
		worker := engine.NewWorker(apiQueue, ledger, tracker, archiveStore, logger)
		for i := 0; i < cfg.WorkerCount; i++ {
			go func() { _ = worker.Run(workerCtx) }()
		}
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Turns:              handlers.NewTurnsHandler(eng, logger),
		Snapshot:           handlers.NewSnapshotHandler(eng, logger),
		Loops:              handlers.NewLoopsHandler(tracker, logger),
		Admin:              handlers.NewAdminHandler(ledger, intimacyStore, logger),
		MetricsHandler:     promhttp.Handler(),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
