// Package api exposes the triage pipeline over HTTP: JSON endpoints for
// classification, triage, protocol lookup and drug safety, a websocket
// stream for generative chat, and health and metrics surfaces.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/config"
	"github.com/triage-edge-server/internal/llm"
	"github.com/triage-edge-server/internal/metrics"
	"github.com/triage-edge-server/internal/protocol"
	"github.com/triage-edge-server/internal/triage"
)

// Server is the HTTP front of the pipeline.
type Server struct {
	logger       *logrus.Logger
	cfg          *config.Config
	orchestrator *triage.Orchestrator
	protocols    *protocol.Engine
	engine       *llm.Engine
	classifier   triage.FastClassifier
	collector    *metrics.Collector
	sampling     llm.Sampling

	router *gin.Engine
	server *http.Server
}

// NewServer wires the routes. All pipeline components must be constructed
// already; readiness is reported per component, not enforced here.
func NewServer(logger *logrus.Logger, cfg *config.Config, orchestrator *triage.Orchestrator, protocols *protocol.Engine, engine *llm.Engine, classifier triage.FastClassifier, collector *metrics.Collector) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLogMiddleware(logger))

	s := &Server{
		logger:       logger,
		cfg:          cfg,
		orchestrator: orchestrator,
		protocols:    protocols,
		engine:       engine,
		classifier:   classifier,
		collector:    collector,
		sampling: llm.Sampling{
			ChatTemperature: cfg.Inference.ChatTemp,
			ChatTopP:        cfg.Inference.ChatTopP,
			MaxTokens:       cfg.Inference.MaxTokens,
		},
		router: router,
	}
	s.setupRoutes()
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.collector != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/v1")
	{
		v1.POST("/classify", s.handleClassify)
		v1.POST("/triage", s.handleTriage)
		v1.POST("/protocol", s.handleProtocol)
		v1.POST("/dose", s.handleDose)
		v1.POST("/interactions", s.handleInteractions)
		v1.GET("/chat/stream", s.handleChatStream)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"embedding_ready":  s.classifier.IsReady(),
		"generative_ready": s.engine.IsReady(),
		"generative_state": s.engine.CurrentState().String(),
		"timestamp":        time.Now().UTC(),
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		}).Info("Handled request")
	}
}
