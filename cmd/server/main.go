package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/acquire"
	"github.com/triage-edge-server/internal/api"
	"github.com/triage-edge-server/internal/config"
	"github.com/triage-edge-server/internal/embed"
	"github.com/triage-edge-server/internal/llm"
	"github.com/triage-edge-server/internal/metrics"
	"github.com/triage-edge-server/internal/protocol"
	"github.com/triage-edge-server/internal/triage"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg)
	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directories")
	}

	store, err := acquire.NewStateStore(cfg.TransferDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open transfer-state store")
	}
	defer store.Close()

	collector := metrics.NewCollector()
	downloads := acquire.NewManager(logger, store, cfg.Inference.ProgressInterval)

	catalog, err := protocol.LoadCatalog(logger, cfg.CatalogDir())
	if err != nil {
		logger.WithError(err).Fatal("Failed to load protocol catalog")
	}
	protocols := protocol.NewEngine(logger, catalog)

	rt := embed.DetectRuntime(cfg.Inference.ONNXLibraryPath, logger)
	classifier := embed.NewClassifier(logger, rt, cfg.Inference.SequenceLength)
	engine := llm.NewEngine(logger, llm.BackendConfig{
		ContextSize: cfg.Inference.ContextSize,
		Threads:     cfg.Inference.Threads,
		GPULayers:   cfg.Inference.GPULayers,
	}, nil)

	orchestrator, err := triage.NewOrchestrator(logger, classifier, engine, collector, cfg.Inference.CacheSize, llm.Sampling{
		ExtractTemperature: cfg.Inference.ExtractTemp,
		ExtractTopP:        cfg.Inference.ExtractTopP,
		MaxTokens:          cfg.Inference.MaxTokens,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build orchestrator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Models download and load in the background; the server answers with
	// the keyword tier until the heavier tiers come up.
	go bootstrapModels(ctx, logger, cfg, downloads, collector, classifier, engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	server := api.NewServer(logger, cfg, orchestrator, protocols, engine, classifier, collector)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	for _, state := range downloads.Pause() {
		logger.WithFields(logrus.Fields{
			"artifact": state.ArtifactID,
			"received": state.BytesReceived,
		}).Info("Paused transfer persisted")
	}
	classifier.Release()
	engine.Release()
	logger.Info("Server stopped")
}

// bootstrapModels acquires any missing artifacts and brings up the
// embedding and generative tiers as their inputs arrive.
func bootstrapModels(ctx context.Context, logger *logrus.Logger, cfg *config.Config, downloads *acquire.Manager, collector *metrics.Collector, classifier *embed.Classifier, engine *llm.Engine) {
	var lastBytes int64
	for _, artifact := range cfg.AllArtifacts() {
		artifact := artifact
		status := downloads.Status(artifact)
		if artifact.IsComplete(status.BytesOnDisk) {
			continue
		}
		// Progress reports cumulative bytes including any resumed prefix;
		// seed the delta baseline so resumed bytes are not re-counted.
		lastBytes = status.BytesOnDisk
		err := downloads.Acquire(ctx, artifact, func(received, expected int64, percent float64) {
			collector.ObserveDownload(artifact.ID, received-lastBytes, percent)
			lastBytes = received
			logger.WithFields(logrus.Fields{
				"artifact": artifact.ID,
				"percent":  percent,
			}).Debug("Download progress")
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).WithField("artifact", artifact.ID).Error("Artifact acquisition failed")
		}
	}

	if classifier.Initialize(
		cfg.Artifact("vocabulary", cfg.Artifacts.Vocabulary),
		cfg.Artifact("encoder", cfg.Artifacts.EncoderModel),
		cfg.Artifact("specialty-head", cfg.Artifacts.SpecialtyHead),
		cfg.Artifact("condition-head", cfg.Artifacts.ConditionHead),
	) {
		logger.Info("Embedding tier ready")
	}

	state := engine.Initialize(cfg.Artifact("generative", cfg.Artifacts.GenerativeGGUF))
	logger.WithField("state", state.String()).Info("Generative tier initialization finished")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
