package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paw-chain/merit/api"
	"github.com/paw-chain/merit/app"
	"github.com/paw-chain/merit/app/health"
	"github.com/paw-chain/merit/app/telemetry"
	"github.com/paw-chain/merit/indexer"
)

// ServeCmd runs the node: the query API, health and metrics endpoints and the
// periodic end-of-block hooks.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API and run end-of-block hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd)
		},
	}
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(homeDir(cmd))
	if err != nil {
		return err
	}

	provider, err := telemetry.NewProvider(telemetry.Config{
		Enabled:           cfg.TracingEnabled,
		Endpoint:          cfg.TracingEndpoint,
		SampleRate:        cfg.TraceSampleRate,
		Environment:       cfg.Environment,
		PrometheusEnabled: cfg.PrometheusOTel,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	opts := app.Options{Telemetry: provider}
	var pinger health.Pinger
	if cfg.IndexerDSN != "" {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		db, err := indexer.Open(ctx, logger, indexer.DefaultConfig(cfg.IndexerDSN))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
		opts.Sink = db
		pinger = db
	}

	ledger, _, logger, err := openLedger(cmd, opts)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if ledger.LastHeight() == 0 {
		return errors.New("ledger is not initialized, run `meritd genesis commit` first")
	}

	checker, err := health.NewChecker(logger, health.Config{
		MaxBlockAge:     4 * cfg.EndBlockPeriod,
		MaxResponseTime: 5 * time.Second,
		CacheDuration:   5 * time.Second,
		Version:         app.AppName,
	}, ledger, pinger, provider)
	if err != nil {
		return err
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Host, apiCfg.Port = splitAddress(cfg.APIAddress, apiCfg.Port)
	apiCfg.CORSOrigins = cfg.APICORSOrigins
	apiCfg.RateLimitRPS = cfg.APIRateLimit
	apiServer, err := api.NewServer(logger, ledger, apiCfg)
	if err != nil {
		return err
	}

	opsServer := &http.Server{
		Addr:              cfg.OpsAddress,
		Handler:           opsHandler(checker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.Start(gctx) })
	g.Go(func() error {
		logger.Info("starting ops server", "addr", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runEndBlocks(gctx, logger, ledger, cfg.EndBlockPeriod)
		return nil
	})

	return g.Wait()
}

// opsHandler serves health checks and Prometheus metrics.
func opsHandler(checker *health.Checker) http.Handler {
	router := mux.NewRouter()
	checker.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	return handlers.RecoveryHandler()(c.Handler(router))
}

// runEndBlocks commits an end-of-block transition every period until ctx ends.
func runEndBlocks(ctx context.Context, logger log.Logger, ledger *app.MeritApp, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			at := now.UTC()
			if last := ledger.LastBlockTime(); at.Before(last) {
				at = last
			}
			res, err := ledger.EndBlock(ctx, at)
			if err != nil {
				logger.Error("end block failed", "error", err)
				continue
			}
			logger.Debug("end block committed", "height", res.Height, "events", len(res.Events))
		}
	}
}

func splitAddress(addr, defaultPort string) (string, string) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, defaultPort
	}
	host, port := addr[:idx], addr[idx+1:]
	if port == "" {
		port = defaultPort
	}
	return host, port
}
