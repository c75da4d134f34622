package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/acquire"
	"github.com/triage-edge-server/internal/config"
	"github.com/triage-edge-server/internal/domain"
)

func main() {
	only := flag.String("only", "", "comma-separated artifact IDs to fetch (default all)")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store, err := acquire.NewStateStore(cfg.TransferDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open transfer-state store")
	}
	defer store.Close()

	downloads := acquire.NewManager(logger, store, cfg.Inference.ProgressInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Interrupted, persisting transfer state")
		cancel()
	}()

	selected := selectArtifacts(cfg.AllArtifacts(), *only)
	if len(selected) == 0 {
		logger.Fatal("No artifacts matched the -only filter")
	}

	failed := 0
	for _, artifact := range selected {
		artifact := artifact
		status := downloads.Status(artifact)
		if artifact.IsComplete(status.BytesOnDisk) {
			logger.WithField("artifact", artifact.ID).Info("Already complete")
			continue
		}
		if downloads.HasResumable(ctx, artifact) {
			logger.WithField("artifact", artifact.ID).Info("Resuming earlier transfer")
		}

		err := downloads.Acquire(ctx, artifact, func(received, expected int64, percent float64) {
			fmt.Printf("\r%-16s %6.2f%% (%d / %d bytes)", artifact.ID, percent, received, expected)
		})
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted; the cursor is already persisted by Pause
				// semantics inside the manager.
				break
			}
			logger.WithError(err).WithField("artifact", artifact.ID).Error("Acquisition failed")
			failed++
			continue
		}
		logger.WithField("artifact", artifact.ID).Info("Complete")
	}

	for _, state := range downloads.Pause() {
		logger.WithFields(logrus.Fields{
			"artifact": state.ArtifactID,
			"received": state.BytesReceived,
			"expected": state.BytesExpected,
		}).Info("Transfer state saved")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func selectArtifacts(all []domain.ModelArtifact, only string) []domain.ModelArtifact {
	if strings.TrimSpace(only) == "" {
		return all
	}
	wanted := make(map[string]bool)
	for _, id := range strings.Split(only, ",") {
		wanted[strings.TrimSpace(id)] = true
	}
	var out []domain.ModelArtifact
	for _, a := range all {
		if wanted[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
