// Package api serves a read-only REST view of the merit ledger.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"

	"github.com/paw-chain/merit/app"
)

// Server is the gin engine serving ledger queries.
type Server struct {
	router *gin.Engine
	ledger *app.MeritApp
	logger log.Logger
	config *Config
	srv    *http.Server
}

// Config is the listen address, CORS allow-list, per-client rate and
// timeouts of the API.
type Config struct {
	Host            string
	Port            string
	CORSOrigins     []string
	RateLimitRPS    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on 0.0.0.0:1317 and allows the local dashboard origin.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "1317",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    100,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer builds the router over ledger. A nil config means DefaultConfig.
func NewServer(logger log.Logger, ledger *app.MeritApp, config *Config) (*Server, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", config.RateLimitRPS)
	}

	s := &Server{
		ledger: ledger,
		logger: logger.With("module", "api"),
		config: config,
	}
	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()

	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware())
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware(s.config.CORSOrigins))
	s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS))

	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")

	v1.GET("/status", s.handleStatus)
	v1.GET("/params", s.handleParams)
	v1.GET("/stats", s.handleStats)

	v1.GET("/positions/:address", s.handlePosition)
	v1.GET("/positions/:address/history", s.handlePositionHistory)
	v1.GET("/validators/:address", s.handleValidator)

	v1.GET("/contributions/:id", s.handleContribution)
	v1.GET("/contributors/:address", s.handleContributor)

	v1.GET("/proposals", s.handleProposals)
	v1.GET("/proposals/:id", s.handleProposal)
	v1.GET("/proposals/:id/votes", s.handleProposalVotes)
	v1.GET("/proposals/:id/allowance/:address", s.handleAllowance)
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API until ctx is cancelled, then drains in-flight requests
// for at most ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		stopped <- s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving merit API", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-stopped; err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("merit API stopped")
	return nil
}
