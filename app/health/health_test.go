package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	height int64
	at     time.Time
}

func (f fakeLedger) LastHeight() int64        { return f.height }
func (f fakeLedger) LastBlockTime() time.Time { return f.at }

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

type telemetryFunc func() error

func (f telemetryFunc) HealthCheck() error { return f() }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newChecker(t *testing.T, cfg Config, ledger Ledger, indexer Pinger, tel TelemetryChecker) *Checker {
	t.Helper()
	c, err := NewChecker(log.NewNopLogger(), cfg, ledger, indexer, tel)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestNewChecker(t *testing.T) {
	_, err := NewChecker(log.NewNopLogger(), DefaultConfig(), nil, nil, nil)
	require.ErrorContains(t, err, "ledger is required")

	cfg := DefaultConfig()
	cfg.MaxResponseTime = 0
	_, err = NewChecker(log.NewNopLogger(), cfg, fakeLedger{}, nil, nil)
	require.ErrorContains(t, err, "max response time")
}

func TestCheck(t *testing.T) {
	t.Parallel()

	fresh := fakeLedger{height: 12, at: now.Add(-time.Minute)}

	tests := []struct {
		name     string
		cfg      func(*Config)
		ledger   Ledger
		indexer  Pinger
		tel      TelemetryChecker
		detailed bool
		expected Status
		compName string
	}{
		{
			name:     "committed ledger",
			ledger:   fresh,
			expected: StatusHealthy,
			compName: "ledger",
		},
		{
			name:     "no genesis",
			ledger:   fakeLedger{},
			expected: StatusUnhealthy,
			compName: "ledger",
		},
		{
			name:     "stale ledger",
			cfg:      func(c *Config) { c.MaxBlockAge = 30 * time.Second },
			ledger:   fresh,
			expected: StatusDegraded,
			compName: "ledger",
		},
		{
			name:     "indexer down",
			ledger:   fresh,
			indexer:  pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			expected: StatusUnhealthy,
			compName: "indexer",
		},
		{
			name:     "telemetry only checked when detailed",
			ledger:   fresh,
			tel:      telemetryFunc(func() error { return errors.New("tracer provider not initialized") }),
			detailed: true,
			expected: StatusDegraded,
			compName: "telemetry",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			checker := newChecker(t, cfg, tt.ledger, tt.indexer, tt.tel)

			health, err := checker.Check(context.Background(), tt.detailed)
			require.NoError(t, err)
			require.Equal(t, tt.expected, health.Status)
			require.Contains(t, health.Components, tt.compName)
		})
	}
}

func TestCheckUsesCache(t *testing.T) {
	ledger := &fakeLedger{height: 3, at: now}
	checker := newChecker(t, DefaultConfig(), ledger, nil, nil)

	first, err := checker.Check(context.Background(), false)
	require.NoError(t, err)

	ledger.height = 0
	cached, err := checker.Check(context.Background(), false)
	require.NoError(t, err)
	require.Same(t, first, cached)

	checker.now = func() time.Time { return now.Add(time.Minute) }
	refreshed, err := checker.Check(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, StatusUnhealthy, refreshed.Status)
}

func TestCalculateOverallStatus(t *testing.T) {
	require.Equal(t, StatusHealthy, calculateOverallStatus(map[string]ComponentHealth{
		"ledger": {Status: StatusHealthy},
	}))
	require.Equal(t, StatusDegraded, calculateOverallStatus(map[string]ComponentHealth{
		"ledger":  {Status: StatusHealthy},
		"indexer": {Status: StatusDegraded},
	}))
	require.Equal(t, StatusUnhealthy, calculateOverallStatus(map[string]ComponentHealth{
		"ledger":  {Status: StatusDegraded},
		"indexer": {Status: StatusUnhealthy},
	}))
}

func TestRoutes(t *testing.T) {
	router := mux.NewRouter()
	healthy := newChecker(t, DefaultConfig(), fakeLedger{height: 5, at: now}, nil, nil)
	healthy.RegisterRoutes(router)

	for _, path := range []string{"/health", "/health/ready", "/health/detailed"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}

	unhealthyRouter := mux.NewRouter()
	newChecker(t, DefaultConfig(), fakeLedger{}, nil, nil).RegisterRoutes(unhealthyRouter)

	w := httptest.NewRecorder()
	unhealthyRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthCheck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, StatusUnhealthy, body.Status)
}

func TestDetailedCheckBypassesCache(t *testing.T) {
	ledger := &fakeLedger{height: 3, at: now}
	checker := newChecker(t, DefaultConfig(), ledger, nil, nil)

	_, err := checker.Check(context.Background(), false)
	require.NoError(t, err)

	ledger.height = 0
	detailed, err := checker.Check(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, StatusUnhealthy, detailed.Status)

	require.Equal(t, StatusHealthy, calculateOverallStatus(map[string]ComponentHealth{
		"ledger":  {Status: StatusHealthy},
		"indexer": {Status: StatusUnknown},
	}))
}
