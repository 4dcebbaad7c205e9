package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/mortality-audit/internal/config"
	"github.com/KaramelBytes/mortality-audit/internal/metrics"
	"github.com/KaramelBytes/mortality-audit/internal/session"
)

// Server is the mortality audit dashboard API.
type Server struct {
	cfg      *config.Global
	log      *zap.Logger
	metrics  *metrics.Collector
	sessions *session.Store
	router   *gin.Engine
	server   *http.Server
	now      func() time.Time
}

// NewServer wires the router, middleware and in-memory session store.
func NewServer(cfg *config.Global, log *zap.Logger, m *metrics.Collector) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	s.sessions = session.New(cfg.SessionMax, cfg.SessionTTL(), session.WithOnEvict(func(id string) {
		m.SessionsEvicted.Inc()
		log.Debug("session evicted", zap.String("session_id", id))
	}))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(log))
	router.Use(instrument(m))
	router.Use(securityHeaders())
	router.MaxMultipartMemory = cfg.UploadMaxBytes
	s.router = router

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	s.log.Info("shutting down dashboard")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, 0, s.metrics))
	v1.Use(withSession(s.sessions, s.cfg.SessionTTL(), s.metrics))
	{
		v1.GET("/sample.csv", s.handleSample)

		v1.GET("/session", s.handleGetSession)
		v1.DELETE("/session", s.handleResetSession)
		v1.POST("/datasets/:slot", s.handleUpload)
		v1.DELETE("/datasets/:slot", s.handleDeleteDataset)

		v1.GET("/months", s.handleMonths)
		v1.PUT("/month", s.handleSetMonth)

		v1.GET("/summary", s.handleSummary)
		v1.GET("/compare", s.handleCompare)
		v1.GET("/diagnoses", s.handleDiagnoses)
		v1.GET("/age-groups", s.handleAgeGroups)
		v1.GET("/trend", s.handleTrend)
		v1.GET("/deaths", s.handleDeaths)
		v1.GET("/report", s.handleReport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
		"sessions":  s.sessions.Len(),
	})
}
