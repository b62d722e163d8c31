package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/paw-chain/merit/app"
	"github.com/paw-chain/merit/x/merit/types"
)

const flagAt = "at"

type queryFunc func(ctx sdk.Context, ledger *app.MeritApp) (any, error)

func queryCommand(use, short string, args cobra.PositionalArgs, build func(args []string) (queryFunc, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, err := build(args)
			if err != nil {
				return err
			}
			var at time.Time
			if raw, _ := cmd.Flags().GetString(flagAt); raw != "" {
				if at, err = time.Parse(time.RFC3339, raw); err != nil {
					return fmt.Errorf("invalid --%s: %w", flagAt, err)
				}
			}
			return withLedger(cmd, func(ledger *app.MeritApp) error {
				if !at.IsZero() && at.Before(ledger.LastBlockTime()) {
					return fmt.Errorf("--%s precedes the last committed block", flagAt)
				}
				var out any
				err := ledger.Query(context.Background(), at, func(ctx sdk.Context) error {
					var err error
					out, err = fn(ctx, ledger)
					return err
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().String(flagAt, "", "evaluate time-dependent views at this time (RFC3339)")
	return cmd
}

func addressQuery(use, short string, fn func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error)) *cobra.Command {
	return queryCommand(use, short, cobra.ExactArgs(1), func(args []string) (queryFunc, error) {
		addr, err := parseAddress(args[0])
		if err != nil {
			return nil, err
		}
		return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
			return fn(ctx, ledger, addr)
		}, nil
	})
}

func idQuery(use, short string, fn func(ctx sdk.Context, ledger *app.MeritApp, id uint64) (any, error)) *cobra.Command {
	return queryCommand(use, short, cobra.ExactArgs(1), func(args []string) (queryFunc, error) {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id: %w", err)
		}
		return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
			return fn(ctx, ledger, id)
		}, nil
	})
}

// QueryCmd returns the read-only subcommands.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query committed ledger state",
	}

	cmd.AddCommand(
		queryCommand("params", "Show module parameters", cobra.NoArgs, func([]string) (queryFunc, error) {
			return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
				params, err := ledger.MeritKeeper.GetParams(ctx)
				return params, err
			}, nil
		}),
		queryCommand("stats", "Show staking, pool and insurance totals", cobra.NoArgs, func([]string) (queryFunc, error) {
			return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
				total, err := ledger.MeritKeeper.TotalStaked(ctx)
				if err != nil {
					return nil, err
				}
				insurance, err := ledger.MeritKeeper.InsurancePool(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"height":         ledger.LastHeight(),
					"total_staked":   total,
					"insurance_pool": insurance,
					"reward_pool":    ledger.BankKeeper.GetBalance(ctx, types.RewardPoolAddress(), app.BondDenom).Amount,
				}, nil
			}, nil
		}),
		addressQuery("balance [address]", "Show the bond denom balance of an account",
			func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error) {
				return ledger.BankKeeper.GetBalance(ctx, addr, app.BondDenom), nil
			}),
		addressQuery("position [address]", "Show a stake position and its pending rewards",
			func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error) {
				position, err := ledger.MeritKeeper.GetPosition(ctx, addr)
				if err != nil {
					return nil, err
				}
				pending := math.ZeroInt()
				if position.Active {
					if pending, err = ledger.MeritKeeper.PendingRewards(ctx, addr); err != nil {
						return nil, err
					}
				}
				return map[string]any{"position": position, "pending_rewards": pending}, nil
			}),
		addressQuery("position-history [address]", "Show closed positions of an account",
			func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error) {
				history, err := ledger.MeritKeeper.PositionHistory(ctx, addr)
				return history, err
			}),
		addressQuery("validator [address]", "Show a validator record and its slashes",
			func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error) {
				record, err := ledger.MeritKeeper.GetValidatorRecord(ctx, addr)
				if err != nil {
					return nil, err
				}
				slashes, err := ledger.MeritKeeper.SlashHistory(ctx, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"record": record, "slashes": slashes}, nil
			}),
		addressQuery("contributor [address]", "Show a contributor profile",
			func(ctx sdk.Context, ledger *app.MeritApp, addr sdk.AccAddress) (any, error) {
				profile, err := ledger.MeritKeeper.GetProfile(ctx, addr)
				if err != nil {
					return nil, err
				}
				reputation, err := ledger.MeritKeeper.EffectiveReputation(ctx, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"profile": profile, "effective_reputation": reputation}, nil
			}),
		idQuery("contribution [id]", "Show a contribution and its reviews",
			func(ctx sdk.Context, ledger *app.MeritApp, id uint64) (any, error) {
				contribution, err := ledger.MeritKeeper.GetContribution(ctx, id)
				if err != nil {
					return nil, err
				}
				reviews, err := ledger.MeritKeeper.GetReviews(ctx, id)
				if err != nil {
					return nil, err
				}
				return map[string]any{"contribution": contribution, "reviews": reviews}, nil
			}),
		idQuery("proposal [id]", "Show a proposal",
			func(ctx sdk.Context, ledger *app.MeritApp, id uint64) (any, error) {
				proposal, err := ledger.MeritKeeper.GetProposal(ctx, id)
				return proposal, err
			}),
		queryCommand("proposals", "List proposals", cobra.NoArgs, func([]string) (queryFunc, error) {
			return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
				proposals := []types.Proposal{}
				err := ledger.MeritKeeper.IterateProposals(ctx, func(p types.Proposal) (bool, error) {
					proposals = append(proposals, p)
					return false, nil
				})
				return proposals, err
			}, nil
		}),
		queryCommand("allowance [proposal-id] [address]", "Show unspent voting power", cobra.ExactArgs(2), func(args []string) (queryFunc, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid proposal id: %w", err)
			}
			addr, err := parseAddress(args[1])
			if err != nil {
				return nil, err
			}
			return func(ctx sdk.Context, ledger *app.MeritApp) (any, error) {
				remaining, maxVotes, err := ledger.MeritKeeper.VotingAllowance(ctx, id, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"remaining": remaining, "max_votes": maxVotes}, nil
			}, nil
		}),
	)
	return cmd
}

// ExportCmd writes the committed state as a genesis document.
func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the committed state as genesis JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, func(ledger *app.MeritApp) error {
				gs, err := ledger.Export(context.Background())
				if err != nil {
					return err
				}
				out, _ := cmd.Flags().GetString("output")
				if out != "" {
					return app.WriteGenesisFile(out, gs)
				}
				return printJSON(cmd, gs)
			})
		},
	}
	cmd.Flags().String("output", "", "write to this file instead of stdout")
	return cmd
}
