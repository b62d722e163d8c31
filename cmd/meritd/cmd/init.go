package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/math"
	cmtos "github.com/cometbft/cometbft/libs/os"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/paw-chain/merit/app"
)

const (
	flagOverwrite   = "overwrite"
	flagGenesisTime = "genesis-time"
)

func genesisPath(home string) string {
	return filepath.Join(home, "config", "genesis.json")
}

// InitCmd returns a command that writes the default node configuration and
// genesis file.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [chain-id]",
		Short: "Initialize node configuration and genesis files",
		Long: `Initialize the node's configuration and genesis files.

Example:
  meritd init merit-devnet-1 --home ~/.meritd
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home := homeDir(cmd)
			configDir := filepath.Join(home, "config")
			if err := cmtos.EnsureDir(configDir, 0o700); err != nil {
				return err
			}
			if err := cmtos.EnsureDir(filepath.Join(home, "data"), 0o700); err != nil {
				return err
			}

			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
			genFile := genesisPath(home)
			if !overwrite && cmtos.FileExists(genFile) {
				return fmt.Errorf("genesis.json file already exists: %v", genFile)
			}

			genesisTime := time.Now().UTC().Truncate(time.Second)
			if raw, _ := cmd.Flags().GetString(flagGenesisTime); raw != "" {
				t, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("invalid --%s: %w", flagGenesisTime, err)
				}
				genesisTime = t.UTC()
			}

			appToml := filepath.Join(configDir, "app.toml")
			if overwrite || !cmtos.FileExists(appToml) {
				if err := os.WriteFile(appToml, []byte(defaultAppToml), 0o600); err != nil {
					return fmt.Errorf("failed to write app.toml: %w", err)
				}
			}

			gs := app.NewDefaultGenesisState(args[0], genesisTime)
			if err := app.WriteGenesisFile(genFile, gs); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"chain_id":     gs.ChainID,
				"genesis_time": gs.GenesisTime,
				"genesis_file": genFile,
			})
		},
	}

	cmd.Flags().Bool(flagOverwrite, false, "overwrite the genesis.json file")
	cmd.Flags().String(flagGenesisTime, "", "genesis time (RFC3339), defaults to now")
	return cmd
}

// GenesisCmd groups genesis file helpers.
func GenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Edit, validate and commit the genesis file",
	}
	cmd.AddCommand(addGenesisAccountCmd(), validateGenesisCmd(), commitGenesisCmd())
	return cmd
}

func addGenesisAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-account [address] [amount]",
		Short: "Add a bond denom balance to genesis.json",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := sdk.AccAddressFromBech32(args[0]); err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			amount, ok := math.NewIntFromString(args[1])
			if !ok || !amount.IsPositive() {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			genFile := genesisPath(homeDir(cmd))
			gs, err := app.ReadGenesisFile(genFile)
			if err != nil {
				return err
			}
			for _, b := range gs.Balances {
				if b.Address == args[0] {
					return fmt.Errorf("cannot add account at existing address %s", args[0])
				}
			}
			gs.Balances = append(gs.Balances, app.Balance{Address: args[0], Amount: amount})
			return app.WriteGenesisFile(genFile, gs)
		},
	}
}

func validateGenesisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate genesis.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gs, err := app.ReadGenesisFile(genesisPath(homeDir(cmd)))
			if err != nil {
				return err
			}
			if err := gs.Validate(); err != nil {
				return fmt.Errorf("genesis is invalid: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "genesis is valid")
			return err
		},
	}
}

func commitGenesisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Initialize the ledger from genesis.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gs, err := app.ReadGenesisFile(genesisPath(homeDir(cmd)))
			if err != nil {
				return err
			}
			return withLedger(cmd, func(ledger *app.MeritApp) error {
				res, err := ledger.InitChain(context.Background(), gs)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}
