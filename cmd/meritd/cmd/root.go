package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/paw-chain/merit/app"
	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagFrom      = "from"
	flagTime      = "time"
)

// NewRootCmd creates the meritd root command.
func NewRootCmd() *cobra.Command {
	app.SetConfig()

	rootCmd := &cobra.Command{
		Use:   app.AppName,
		Short: "Merit evaluation and reward ledger",
		Long: `meritd hosts the merit ledger: stake positions, contribution review and rewards,
validator slashing and quadratic-vote governance over one committed state.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().String(flagHome, app.DefaultNodeHome, "directory for config and data")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String(flagLogFormat, "plain", "log format (plain|json)")

	rootCmd.AddCommand(
		InitCmd(),
		GenesisCmd(),
		TxCmd(),
		QueryCmd(),
		ExportCmd(),
		OracleCmd(),
		ServeCmd(),
	)

	return rootCmd
}

func homeDir(cmd *cobra.Command) string {
	home, _ := cmd.Flags().GetString(flagHome)
	if home == "" {
		return app.DefaultNodeHome
	}
	return home
}

func newLogger(cmd *cobra.Command) (log.Logger, error) {
	levelStr, _ := cmd.Flags().GetString(flagLogLevel)
	format, _ := cmd.Flags().GetString(flagLogFormat)

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}

	opts := []log.Option{log.LevelOption(level)}
	switch format {
	case "json":
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return log.NewLogger(cmd.ErrOrStderr(), opts...), nil
}

func buildVerifier(cfg Config) (types.ProofVerifier, error) {
	switch cfg.Verifier {
	case verifierAcceptAll:
		return oracle.StaticVerifier{Accept: true}, nil
	case verifierGroth16:
		f, err := os.Open(cfg.VerifyingKey)
		if err != nil {
			return nil, fmt.Errorf("failed to open verifying key: %w", err)
		}
		defer f.Close()
		return oracle.LoadGroth16Verifier(f)
	default:
		return oracle.StaticVerifier{Accept: false}, nil
	}
}

// openLedger opens the ledger under the command's home directory.
func openLedger(cmd *cobra.Command, opts app.Options) (*app.MeritApp, Config, log.Logger, error) {
	home := homeDir(cmd)
	cfg, err := loadConfig(home)
	if err != nil {
		return nil, Config{}, nil, err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, Config{}, nil, err
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return nil, Config{}, nil, err
	}

	db, err := dbm.NewDB("ledger", dbm.BackendType(cfg.DBBackend), filepath.Join(home, "data"))
	if err != nil {
		return nil, Config{}, nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts.Verifier = verifier
	opts.Authority = cfg.Authority
	ledger, err := app.NewMeritApp(logger, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, Config{}, nil, err
	}
	return ledger, cfg, logger, nil
}

// withLedger runs fn on the ledger and closes it afterwards.
func withLedger(cmd *cobra.Command, fn func(*app.MeritApp) error) error {
	ledger, _, _, err := openLedger(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer ledger.Close()
	return fn(ledger)
}

func fromAddress(cmd *cobra.Command) (sdk.AccAddress, error) {
	from, _ := cmd.Flags().GetString(flagFrom)
	if from == "" {
		return nil, fmt.Errorf("--%s is required", flagFrom)
	}
	addr, err := sdk.AccAddressFromBech32(from)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s address: %w", flagFrom, err)
	}
	return addr, nil
}

// blockTime returns --time when set, otherwise the wall clock clamped to the
// last committed block.
func blockTime(cmd *cobra.Command, ledger *app.MeritApp) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(flagTime)
	if raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --%s: %w", flagTime, err)
		}
		return t.UTC(), nil
	}
	now := time.Now().UTC()
	if last := ledger.LastBlockTime(); now.Before(last) {
		return last, nil
	}
	return now, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return err
}
