package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	envPrefix = "MERIT"

	verifierAcceptAll = "accept-all"
	verifierRejectAll = "reject-all"
	verifierGroth16   = "groth16"
)

// Config is the node configuration read from config/app.toml and MERIT_* env vars.
type Config struct {
	Home string

	DBBackend string

	Verifier        string
	VerifyingKey    string
	Authority       string
	EndBlockPeriod  time.Duration
	IndexerDSN      string
	APIAddress      string
	APICORSOrigins  []string
	APIRateLimit    int
	OpsAddress      string
	TracingEnabled  bool
	TracingEndpoint string
	TraceSampleRate float64
	PrometheusOTel  bool
	Environment     string
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("db.backend", "goleveldb")
	v.SetDefault("oracle.verifier", verifierRejectAll)
	v.SetDefault("oracle.verifying-key", "config/verifier.key")
	v.SetDefault("ledger.authority", "")
	v.SetDefault("ledger.end-block-period", "5s")
	v.SetDefault("indexer.postgres-dsn", "")
	v.SetDefault("api.address", "0.0.0.0:1317")
	v.SetDefault("api.cors-origins", []string{"http://localhost:3000"})
	v.SetDefault("api.rate-limit", 100)
	v.SetDefault("ops.address", "0.0.0.0:36660")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.sample-rate", 0.1)
	v.SetDefault("telemetry.prometheus", true)
	v.SetDefault("telemetry.environment", "development")
}

// newViper returns a viper instance bound to home/config/app.toml and the
// MERIT_ environment. A missing config file is not an error.
func newViper(home string) (*viper.Viper, error) {
	v := viper.New()
	setConfigDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	v.SetConfigFile(filepath.Join(home, "config", "app.toml"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func loadConfig(home string) (Config, error) {
	v, err := newViper(home)
	if err != nil {
		return Config{}, err
	}

	period, err := cast.ToDurationE(v.Get("ledger.end-block-period"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ledger.end-block-period: %w", err)
	}
	rate, err := cast.ToIntE(v.Get("api.rate-limit"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid api.rate-limit: %w", err)
	}
	sample, err := cast.ToFloat64E(v.Get("telemetry.sample-rate"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid telemetry.sample-rate: %w", err)
	}

	cfg := Config{
		Home:            home,
		DBBackend:       cast.ToString(v.Get("db.backend")),
		Verifier:        cast.ToString(v.Get("oracle.verifier")),
		VerifyingKey:    resolvePath(home, cast.ToString(v.Get("oracle.verifying-key"))),
		Authority:       cast.ToString(v.Get("ledger.authority")),
		EndBlockPeriod:  period,
		IndexerDSN:      cast.ToString(v.Get("indexer.postgres-dsn")),
		APIAddress:      cast.ToString(v.Get("api.address")),
		APICORSOrigins:  cast.ToStringSlice(v.Get("api.cors-origins")),
		APIRateLimit:    rate,
		OpsAddress:      cast.ToString(v.Get("ops.address")),
		TracingEnabled:  cast.ToBool(v.Get("telemetry.enabled")),
		TracingEndpoint: cast.ToString(v.Get("telemetry.endpoint")),
		TraceSampleRate: sample,
		PrometheusOTel:  cast.ToBool(v.Get("telemetry.prometheus")),
		Environment:     cast.ToString(v.Get("telemetry.environment")),
	}

	switch cfg.Verifier {
	case verifierAcceptAll, verifierRejectAll, verifierGroth16:
	default:
		return Config{}, fmt.Errorf("unknown oracle.verifier %q", cfg.Verifier)
	}
	if cfg.EndBlockPeriod <= 0 {
		return Config{}, fmt.Errorf("ledger.end-block-period must be positive")
	}
	return cfg, nil
}

func resolvePath(home, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(home, path)
}

const defaultAppToml = `# meritd node configuration

[db]
backend = "goleveldb"

[oracle]
# accept-all, reject-all or groth16
verifier = "reject-all"
verifying-key = "config/verifier.key"

[ledger]
# bech32 address administering params and role grants; empty selects the gov module account
authority = ""
end-block-period = "5s"

[indexer]
postgres-dsn = ""

[api]
address = "0.0.0.0:1317"
cors-origins = ["http://localhost:3000"]
rate-limit = 100

[ops]
address = "0.0.0.0:36660"

[telemetry]
enabled = false
endpoint = "localhost:4318"
sample-rate = 0.1
prometheus = true
environment = "development"
`
