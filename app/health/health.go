// Package health serves liveness and readiness checks for a merit node.
//
//	/health           process is up
//	/health/ready     ledger and indexer checks, 503 when unhealthy
//	/health/detailed  every check including telemetry, never cached
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one component check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth is the result of one component check.
type ComponentHealth struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// HealthCheck aggregates the component results of one check.
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Ledger is the committed state the checker observes.
type Ledger interface {
	LastHeight() int64
	LastBlockTime() time.Time
}

// Pinger reports whether an external dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TelemetryChecker reports whether telemetry providers are initialized.
type TelemetryChecker interface {
	HealthCheck() error
}

// Checker checks the ledger and its optional dependencies.
type Checker struct {
	logger    log.Logger
	ledger    Ledger
	indexer   Pinger
	telemetry TelemetryChecker
	version   string

	maxBlockAge     time.Duration
	maxResponseTime time.Duration
	now             func() time.Time

	mu            sync.RWMutex
	lastCheck     time.Time
	cachedHealth  *HealthCheck
	cacheDuration time.Duration
}

// Config tunes the checker.
type Config struct {
	// MaxBlockAge marks the ledger degraded when no block was committed for longer.
	// Zero disables the check.
	MaxBlockAge time.Duration

	// MaxResponseTime bounds each dependency check.
	MaxResponseTime time.Duration

	// CacheDuration keeps readiness results for this long.
	CacheDuration time.Duration

	Version string
}

// DefaultConfig checks with a 3s budget and caches readiness for 10s.
func DefaultConfig() Config {
	return Config{
		MaxResponseTime: 3 * time.Second,
		CacheDuration:   10 * time.Second,
	}
}

// NewChecker creates a new health checker. indexer and telemetry are optional.
func NewChecker(logger log.Logger, cfg Config, ledger Ledger, indexer Pinger, telemetry TelemetryChecker) (*Checker, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.MaxResponseTime <= 0 {
		return nil, fmt.Errorf("max response time must be positive")
	}

	return &Checker{
		logger:          logger,
		ledger:          ledger,
		indexer:         indexer,
		telemetry:       telemetry,
		version:         cfg.Version,
		maxBlockAge:     cfg.MaxBlockAge,
		maxResponseTime: cfg.MaxResponseTime,
		cacheDuration:   cfg.CacheDuration,
		now:             time.Now,
	}, nil
}

type componentCheck struct {
	name string
	run  func(context.Context) ComponentHealth
}

func (c *Checker) checks(detailed bool) []componentCheck {
	checks := []componentCheck{{"ledger", c.checkLedger}}
	if c.indexer != nil {
		checks = append(checks, componentCheck{"indexer", c.checkIndexer})
	}
	if detailed && c.telemetry != nil {
		checks = append(checks, componentCheck{"telemetry", c.checkTelemetry})
	}
	return checks
}

// Check runs every component check concurrently. Non-detailed results are
// cached for CacheDuration.
func (c *Checker) Check(ctx context.Context, detailed bool) (*HealthCheck, error) {
	if !detailed {
		if cached := c.cached(); cached != nil {
			return cached, nil
		}
	}

	checks := c.checks(detailed)
	results := make([]ComponentHealth, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check.run(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	health := &HealthCheck{
		Timestamp:  c.now(),
		Version:    c.version,
		Components: make(map[string]ComponentHealth, len(checks)),
	}
	for i, check := range checks {
		health.Components[check.name] = results[i]
	}
	health.Status = calculateOverallStatus(health.Components)

	c.mu.Lock()
	c.lastCheck = health.Timestamp
	c.cachedHealth = health
	c.mu.Unlock()
	return health, nil
}

func (c *Checker) component(status Status, message string, metrics map[string]any) ComponentHealth {
	return ComponentHealth{Status: status, Message: message, Timestamp: c.now(), Metrics: metrics}
}

// checkLedger is unhealthy before genesis and degraded once the last block
// is older than MaxBlockAge.
func (c *Checker) checkLedger(context.Context) ComponentHealth {
	height := c.ledger.LastHeight()
	blockTime := c.ledger.LastBlockTime()

	metrics := map[string]any{"latest_block_height": height}
	if !blockTime.IsZero() {
		metrics["latest_block_time"] = blockTime.UTC().Format(time.RFC3339)
	}
	if height == 0 {
		return c.component(StatusUnhealthy, "genesis not committed", metrics)
	}

	if c.maxBlockAge > 0 {
		age := c.now().Sub(blockTime)
		metrics["block_age_seconds"] = age.Seconds()
		if age > c.maxBlockAge {
			return c.component(StatusDegraded, fmt.Sprintf("last block committed %s ago", age.Truncate(time.Second)), metrics)
		}
	}
	return c.component(StatusHealthy, "committing", metrics)
}

// checkIndexer pings the event database. A reply slower than half of
// MaxResponseTime is degraded.
func (c *Checker) checkIndexer(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.maxResponseTime)
	defer cancel()

	start := time.Now()
	err := c.indexer.Ping(ctx)
	elapsed := time.Since(start)
	metrics := map[string]any{"ping_ms": elapsed.Milliseconds()}

	switch {
	case err != nil:
		return c.component(StatusUnhealthy, fmt.Sprintf("ping failed: %v", err), metrics)
	case elapsed > c.maxResponseTime/2:
		return c.component(StatusDegraded, "slow ping", metrics)
	default:
		return c.component(StatusHealthy, "reachable", metrics)
	}
}

func (c *Checker) checkTelemetry(context.Context) ComponentHealth {
	if err := c.telemetry.HealthCheck(); err != nil {
		return c.component(StatusDegraded, err.Error(), nil)
	}
	return c.component(StatusHealthy, "exporters running", nil)
}

var statusRank = map[Status]int{
	StatusHealthy:   0,
	StatusUnknown:   1,
	StatusDegraded:  2,
	StatusUnhealthy: 3,
}

// calculateOverallStatus returns the worst component status. Unknown
// components do not lower a healthy result.
func calculateOverallStatus(components map[string]ComponentHealth) Status {
	worst := StatusHealthy
	for _, component := range components {
		if statusRank[component.Status] > statusRank[worst] {
			worst = component.Status
		}
	}
	if worst == StatusUnknown {
		return StatusHealthy
	}
	return worst
}

func (c *Checker) cached() *HealthCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedHealth == nil || c.now().Sub(c.lastCheck) >= c.cacheDuration {
		return nil
	}
	return c.cachedHealth
}

// RegisterRoutes mounts the health endpoints on router.
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleLive).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", c.handler(false)).Methods(http.MethodGet)
	router.HandleFunc("/health/detailed", c.handler(true)).Methods(http.MethodGet)
}

func (c *Checker) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": c.now().UTC().Format(time.RFC3339),
	})
}

func (c *Checker) handler(detailed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health, err := c.Check(r.Context(), detailed)
		if err != nil {
			c.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "message": err.Error()})
			return
		}
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
