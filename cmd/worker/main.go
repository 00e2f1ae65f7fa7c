// The worker binary drains the SQS side-write queue: pattern scans over
// recent relationship history and best-effort event archival. It shares
// stores with the API server but never serves requests itself.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/rapportlabs/rapport/cmd/mainconfig"
	"github.com/rapportlabs/rapport/internal/archive"
	"github.com/rapportlabs/rapport/internal/classifier"
	appconfig "github.com/rapportlabs/rapport/internal/config"
	"github.com/rapportlabs/rapport/internal/engine"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rapport side-write worker", "env", cfg.Env)

	if cfg.SideWriteQueueURL == "" {
		logger.Error("SIDE_WRITE_QUEUE_URL is required for the worker binary")
		os.Exit(1)
	}

	ctx := context.Background()

	var relStore relationship.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		relStore = relationship.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, relationship history is in-memory")
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

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var loopStore loops.Store
	if cfg.LoopsTable != "" {
		loopStore = loops.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.LoopsTable)
	} else {
		loopStore = loops.NewMemoryStore()
	}
	tracker := loops.NewTracker(loopStore, loops.FuzzyMatcher{}, cfg.MinSurfaceGap, logger)

	var archiveStore *archive.Store
	if cfg.ArchiveBucket != "" {
		archiveStore = archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
	}

	queue := engine.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SideWriteQueueURL)
	worker := engine.NewWorker(queue, ledger, tracker, archiveStore, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = worker.Run(runCtx)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down side-write worker...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("side-write worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("side-write worker shutdown timed out")
	}
}
