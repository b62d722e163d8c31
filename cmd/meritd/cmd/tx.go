package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/paw-chain/merit/app"
	"github.com/paw-chain/merit/x/merit/types"
)

const (
	flagLock         = "lock"
	flagNodeID       = "node-id"
	flagProofFile    = "proof-file"
	flagValue        = "value"
	flagReason       = "reason"
	flagDeliberation = "deliberation"
	flagUptime       = "uptime"
	flagTotalBlocks  = "total-blocks"
	flagMissedBlocks = "missed-blocks"
)

type txOutput struct {
	Result app.Result `json:"result"`
	Output any        `json:"output,omitempty"`
}

type txFunc func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error)

// runTx executes fn as one committed transition signed by --from.
func runTx(cmd *cobra.Command, op string, needsFrom bool, fn txFunc) error {
	var from sdk.AccAddress
	if needsFrom {
		var err error
		if from, err = fromAddress(cmd); err != nil {
			return err
		}
	}
	return withLedger(cmd, func(ledger *app.MeritApp) error {
		at, err := blockTime(cmd, ledger)
		if err != nil {
			return err
		}
		var out any
		res, err := ledger.Execute(context.Background(), at, op, func(ctx sdk.Context) error {
			var err error
			out, err = fn(ctx, ledger, from)
			return err
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, txOutput{Result: res, Output: out})
	})
}

func txCommand(use, short, op string, args cobra.PositionalArgs, needsFrom bool, build func(cmd *cobra.Command, args []string) (txFunc, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, err := build(cmd, args)
			if err != nil {
				return err
			}
			return runTx(cmd, op, needsFrom, fn)
		},
	}
	if needsFrom {
		cmd.Flags().String(flagFrom, "", "bech32 address of the acting account")
	}
	cmd.Flags().String(flagTime, "", "block time (RFC3339), defaults to now")
	return cmd
}

// TxCmd returns the state-changing subcommands.
func TxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Commit ledger transitions",
	}
	cmd.AddCommand(
		stakeCmd(),
		contributionCmd(),
		reviewCmd(),
		validatorCmd(),
		proposalCmd(),
		treasuryCmd(),
		rolesCmd(),
		paramsCmd(),
		txCommand("end-block", "Run end-of-block hooks", "end_block", cobra.NoArgs, false,
			func(*cobra.Command, []string) (txFunc, error) {
				return func(ctx sdk.Context, ledger *app.MeritApp, _ sdk.AccAddress) (any, error) {
					return nil, ledger.MeritKeeper.EndBlocker(ctx)
				}, nil
			}),
	)
	return cmd
}

func parseAmount(raw string) (math.Int, error) {
	amount, ok := math.NewIntFromString(raw)
	if !ok || amount.IsNegative() {
		return math.Int{}, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseAddress(raw string) (sdk.AccAddress, error) {
	addr, err := sdk.AccAddressFromBech32(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	return addr, nil
}

func stakeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stake", Short: "Open, close and claim stake positions"}

	open := txCommand("open [role] [amount]", "Open a stake position", "stake_open", cobra.ExactArgs(2), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			role, err := types.ParseRole(args[0])
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return nil, err
			}
			lockRaw, _ := cmd.Flags().GetString(flagLock)
			nodeID, _ := cmd.Flags().GetString(flagNodeID)
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				lock, err := lockDuration(ctx, ledger, role, lockRaw)
				if err != nil {
					return nil, err
				}
				escrow, err := ledger.MeritKeeper.OpenPosition(ctx, from, role, amount, lock, nodeID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"escrow": escrow.String(), "lock": lock.String()}, nil
			}, nil
		})
	open.Flags().String(flagLock, "", "lock duration such as 720h, defaults to the role minimum")
	open.Flags().String(flagNodeID, "", "node id, required for validators")

	closeCmd := txCommand("close", "Close the sender's position", "stake_close", cobra.NoArgs, true,
		func(*cobra.Command, []string) (txFunc, error) {
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				principal, rewards, err := ledger.MeritKeeper.ClosePosition(ctx, from)
				if err != nil {
					return nil, err
				}
				return map[string]any{"principal": principal, "rewards": rewards}, nil
			}, nil
		})

	claim := txCommand("claim", "Claim accrued staking rewards", "stake_claim", cobra.NoArgs, true,
		func(*cobra.Command, []string) (txFunc, error) {
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				paid, err := ledger.MeritKeeper.ClaimRewards(ctx, from)
				if err != nil {
					return nil, err
				}
				return map[string]any{"rewards": paid}, nil
			}, nil
		})

	cmd.AddCommand(open, closeCmd, claim)
	return cmd
}

func lockDuration(ctx sdk.Context, ledger *app.MeritApp, role types.Role, raw string) (time.Duration, error) {
	if raw != "" {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid --%s: %w", flagLock, err)
		}
		return d, nil
	}
	params, err := ledger.MeritKeeper.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	terms, err := params.RoleTerms(role)
	if err != nil {
		return 0, err
	}
	return terms.MinLock, nil
}

func contributionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "contribution", Short: "Submit contributions and retry deferred rewards"}

	submit := txCommand("submit [category]", "Submit a contribution with a proof envelope", "contribution_submit", cobra.ExactArgs(1), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			category, err := types.ParseCategory(args[0])
			if err != nil {
				return nil, err
			}
			path, _ := cmd.Flags().GetString(flagProofFile)
			if path == "" {
				return nil, fmt.Errorf("--%s is required", flagProofFile)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read proof: %w", err)
			}
			proof, err := types.DecodeProof(category, raw)
			if err != nil {
				return nil, err
			}
			valueRaw, _ := cmd.Flags().GetString(flagValue)
			value, err := parseAmount(valueRaw)
			if err != nil {
				return nil, err
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				id, err := ledger.MeritKeeper.SubmitContribution(ctx, from, category, proof, value)
				if err != nil {
					return nil, err
				}
				return map[string]any{"contribution_id": id}, nil
			}, nil
		})
	submit.Flags().String(flagProofFile, "", "path of the JSON proof envelope")
	submit.Flags().String(flagValue, "0", "declared value of the contribution")

	retry := txCommand("retry-reward [id]", "Retry a deferred contribution reward", "contribution_retry", cobra.ExactArgs(1), true,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid contribution id: %w", err)
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				reward, err := ledger.MeritKeeper.RetryReward(ctx, from, id)
				if err != nil {
					return nil, err
				}
				return map[string]any{"reward": reward}, nil
			}, nil
		})

	cmd.AddCommand(submit, retry)
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "review", Short: "Review contributions"}

	submit := txCommand("submit [contribution-id] [technical,innovation,impact,documentation,community]",
		"Submit a review with five scores in [0,100]", "review_submit", cobra.ExactArgs(2), true,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid contribution id: %w", err)
			}
			criteria, err := parseCriteria(args[1])
			if err != nil {
				return nil, err
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				review, err := ledger.MeritKeeper.SubmitReview(ctx, id, from, criteria)
				return review, err
			}, nil
		})

	cmd.AddCommand(submit)
	return cmd
}

func parseCriteria(raw string) (types.ReviewCriteria, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 5 {
		return types.ReviewCriteria{}, fmt.Errorf("expected five comma separated scores, got %d", len(parts))
	}
	scores := make([]uint32, 5)
	for i, part := range parts {
		v, err := cast.ToUint32E(strings.TrimSpace(part))
		if err != nil {
			return types.ReviewCriteria{}, fmt.Errorf("invalid score %q: %w", part, err)
		}
		scores[i] = v
	}
	criteria := types.ReviewCriteria{
		Technical:     scores[0],
		Innovation:    scores[1],
		Impact:        scores[2],
		Documentation: scores[3],
		Community:     scores[4],
	}
	return criteria, criteria.Validate()
}

func validatorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "validator", Short: "Report, slash and revoke validators"}

	report := txCommand("report [validator]", "Report validator performance", "validator_report", cobra.ExactArgs(1), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			validator, err := parseAddress(args[0])
			if err != nil {
				return nil, err
			}
			uptime, _ := cmd.Flags().GetUint32(flagUptime)
			total, _ := cmd.Flags().GetUint64(flagTotalBlocks)
			missed, _ := cmd.Flags().GetUint64(flagMissedBlocks)
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				score, err := ledger.MeritKeeper.UpdatePerformance(ctx, from, validator, uptime, total, missed)
				if err != nil {
					return nil, err
				}
				return map[string]any{"performance_score": score}, nil
			}, nil
		})
	report.Flags().Uint32(flagUptime, 100, "uptime percentage")
	report.Flags().Uint64(flagTotalBlocks, 0, "blocks in the reporting window")
	report.Flags().Uint64(flagMissedBlocks, 0, "blocks missed in the reporting window")

	slash := txCommand("slash [validator] [amount]", "Slash a validator", "validator_slash", cobra.ExactArgs(2), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			validator, err := parseAddress(args[0])
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return nil, err
			}
			reason, _ := cmd.Flags().GetString(flagReason)
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				slashed, err := ledger.MeritKeeper.Slash(ctx, from, validator, amount, reason)
				if err != nil {
					return nil, err
				}
				return map[string]any{"slashed": slashed}, nil
			}, nil
		})
	slash.Flags().String(flagReason, "misbehavior", "slashing reason")

	revoke := txCommand("revoke [validator]", "Revoke a validator", "validator_revoke", cobra.ExactArgs(1), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			validator, err := parseAddress(args[0])
			if err != nil {
				return nil, err
			}
			reason, _ := cmd.Flags().GetString(flagReason)
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				return nil, ledger.MeritKeeper.RevokeValidator(ctx, from, validator, reason)
			}, nil
		})
	revoke.Flags().String(flagReason, "revoked", "revocation reason")

	cmd.AddCommand(report, slash, revoke)
	return cmd
}

func proposalCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "proposal", Short: "Create, vote on and finalize proposals"}

	create := txCommand("create [category] [description]", "Create a proposal", "proposal_create", cobra.ExactArgs(2), true,
		func(cmd *cobra.Command, args []string) (txFunc, error) {
			category, err := types.ParseProposalCategory(args[0])
			if err != nil {
				return nil, err
			}
			raw, _ := cmd.Flags().GetString(flagDeliberation)
			var deliberation time.Duration
			if raw != "" {
				if deliberation, err = cast.ToDurationE(raw); err != nil {
					return nil, fmt.Errorf("invalid --%s: %w", flagDeliberation, err)
				}
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				id, err := ledger.MeritKeeper.CreateProposal(ctx, from, category, args[1], deliberation)
				if err != nil {
					return nil, err
				}
				return map[string]any{"proposal_id": id}, nil
			}, nil
		})
	create.Flags().String(flagDeliberation, "", "deliberation period, raised to the category minimum")

	vote := txCommand("vote [proposal-id] [for|against|abstain] [votes]", "Cast quadratic votes", "proposal_vote", cobra.ExactArgs(3), true,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid proposal id: %w", err)
			}
			option, err := types.ParseVoteOption(args[1])
			if err != nil {
				return nil, err
			}
			votes, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid votes: %w", err)
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				record, err := ledger.MeritKeeper.CastQuadraticVote(ctx, id, from, option, votes)
				return record, err
			}, nil
		})

	finalize := txCommand("finalize [proposal-id]", "Finalize a proposal", "proposal_finalize", cobra.ExactArgs(1), false,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid proposal id: %w", err)
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, _ sdk.AccAddress) (any, error) {
				status, err := ledger.MeritKeeper.FinalizeProposal(ctx, id)
				if err != nil {
					return nil, err
				}
				return map[string]any{"status": status.String()}, nil
			}, nil
		})

	cmd.AddCommand(create, vote, finalize)
	return cmd
}

func treasuryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "treasury", Short: "Fund the reward pool"}
	fund := txCommand("fund [amount]", "Transfer funds into the reward pool", "fund_reward_pool", cobra.ExactArgs(1), true,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			amount, err := parseAmount(args[0])
			if err != nil {
				return nil, err
			}
			if !amount.IsPositive() {
				return nil, fmt.Errorf("funding amount must be positive")
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				coins := sdk.NewCoins(sdk.NewCoin(app.BondDenom, amount))
				return nil, ledger.BankKeeper.SendCoins(ctx, from, types.RewardPoolAddress(), coins)
			}, nil
		})
	cmd.AddCommand(fund)
	return cmd
}

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Grant or revoke reviewer and operator roles"}

	grant := func(use, short, op string, set func(ledger *app.MeritApp) func(sdk.Context, string, sdk.AccAddress, bool) error) *cobra.Command {
		return txCommand(use, short, op, cobra.ExactArgs(2), true,
			func(_ *cobra.Command, args []string) (txFunc, error) {
				addr, err := parseAddress(args[0])
				if err != nil {
					return nil, err
				}
				allowed, err := strconv.ParseBool(args[1])
				if err != nil {
					return nil, fmt.Errorf("invalid flag value %q: %w", args[1], err)
				}
				return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
					return nil, set(ledger)(ctx, from.String(), addr, allowed)
				}, nil
			})
	}

	cmd.AddCommand(
		grant("set-reviewer [address] [true|false]", "Grant or revoke the reviewer role", "set_reviewer",
			func(ledger *app.MeritApp) func(sdk.Context, string, sdk.AccAddress, bool) error {
				return func(ctx sdk.Context, authority string, addr sdk.AccAddress, allowed bool) error {
					return ledger.MeritKeeper.SetReviewer(ctx, authority, addr, allowed)
				}
			}),
		grant("set-operator [address] [true|false]", "Grant or revoke the operator role", "set_operator",
			func(ledger *app.MeritApp) func(sdk.Context, string, sdk.AccAddress, bool) error {
				return func(ctx sdk.Context, authority string, addr sdk.AccAddress, allowed bool) error {
					return ledger.MeritKeeper.SetOperator(ctx, authority, addr, allowed)
				}
			}),
	)
	return cmd
}

func paramsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "params", Short: "Update module parameters"}
	update := txCommand("update [params-file]", "Replace the module parameters", "params_update", cobra.ExactArgs(1), true,
		func(_ *cobra.Command, args []string) (txFunc, error) {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return nil, fmt.Errorf("failed to read params: %w", err)
			}
			var params types.Params
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("failed to decode params: %w", err)
			}
			return func(ctx sdk.Context, ledger *app.MeritApp, from sdk.AccAddress) (any, error) {
				return nil, ledger.MeritKeeper.UpdateParams(ctx, from.String(), params)
			}, nil
		})
	cmd.AddCommand(update)
	return cmd
}
