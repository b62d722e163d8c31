package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// RegisterInvariants registers all merit module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "total-staked",
		TotalStakedInvariant(k))
	ir.RegisterRoute(types.ModuleName, "performance-bounds",
		PerformanceBoundsInvariant(k))
	ir.RegisterRoute(types.ModuleName, "contribution-status",
		ContributionStatusInvariant(k))
	ir.RegisterRoute(types.ModuleName, "insurance-pool",
		InsurancePoolInvariant(k))
}

// AllInvariants runs all invariants of the merit module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		for _, inv := range []sdk.Invariant{
			TotalStakedInvariant(k),
			PerformanceBoundsInvariant(k),
			ContributionStatusInvariant(k),
			InsurancePoolInvariant(k),
		} {
			if res, stop := inv(ctx); stop {
				return res, stop
			}
		}
		return "", false
	}
}

// TotalStakedInvariant checks that the total-staked counter equals the sum of
// active positions and that escrow holds at least that much.
func TotalStakedInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		sum := math.ZeroInt()
		err := k.IteratePositions(ctx, func(position types.StakePosition) (bool, error) {
			if position.Active {
				sum = sum.Add(position.Amount)
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "total-staked",
				fmt.Sprintf("error iterating positions: %v", err)), true
		}

		total, err := k.TotalStaked(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "total-staked",
				fmt.Sprintf("error reading total: %v", err)), true
		}
		if !total.Equal(sum) {
			return sdk.FormatInvariant(types.ModuleName, "total-staked",
				fmt.Sprintf("total staked %s != sum of active positions %s", total, sum)), true
		}

		params, err := k.GetParams(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "total-staked",
				fmt.Sprintf("error reading params: %v", err)), true
		}
		escrow := k.bankKeeper.GetBalance(ctx, types.EscrowAddress(), params.BondDenom)
		if escrow.Amount.LT(total) {
			return sdk.FormatInvariant(types.ModuleName, "total-staked",
				fmt.Sprintf("escrow balance %s below total staked %s", escrow.Amount, total)), true
		}

		return sdk.FormatInvariant(types.ModuleName, "total-staked",
			fmt.Sprintf("total staked %s matches active positions", total)), false
	}
}

// PerformanceBoundsInvariant checks that every performance score lies in [0,100]
// and no amount is negative.
func PerformanceBoundsInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			broken bool
			msg    string
		)
		err := k.IteratePositions(ctx, func(position types.StakePosition) (bool, error) {
			if position.PerformanceScore > 100 {
				broken = true
				msg += fmt.Sprintf("position %s: performance %d exceeds 100\n", position.Owner, position.PerformanceScore)
			}
			if position.Amount.IsNegative() {
				broken = true
				msg += fmt.Sprintf("position %s: negative amount %s\n", position.Owner, position.Amount)
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "performance-bounds",
				fmt.Sprintf("error iterating positions: %v", err)), true
		}
		return sdk.FormatInvariant(types.ModuleName, "performance-bounds", msg), broken
	}
}

// ContributionStatusInvariant checks that rewards exist only on rewarded
// contributions and that resolved contributions carry their quorum.
func ContributionStatusInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		params, err := k.GetParams(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "contribution-status",
				fmt.Sprintf("error reading params: %v", err)), true
		}

		var (
			broken bool
			msg    string
		)
		err = k.IterateContributions(ctx, func(c types.Contribution) (bool, error) {
			if c.Status != types.StatusRewarded && c.RewardAmount.IsPositive() {
				broken = true
				msg += fmt.Sprintf("contribution %d: reward %s while %s\n", c.ID, c.RewardAmount, c.Status)
			}
			quorum := c.Quorum(params.MinReviewers)
			if uint32(len(c.Reviewers)) > quorum {
				broken = true
				msg += fmt.Sprintf("contribution %d: %d reviews above quorum %d\n", c.ID, len(c.Reviewers), quorum)
			}
			switch c.Status {
			case types.StatusApproved, types.StatusRewarded:
				if uint32(len(c.Reviewers)) != quorum {
					broken = true
					msg += fmt.Sprintf("contribution %d: %s with %d reviews\n", c.ID, c.Status, len(c.Reviewers))
				}
			case types.StatusPending:
				if len(c.Reviewers) != 0 {
					broken = true
					msg += fmt.Sprintf("contribution %d: pending with reviews\n", c.ID)
				}
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "contribution-status",
				fmt.Sprintf("error iterating contributions: %v", err)), true
		}
		return sdk.FormatInvariant(types.ModuleName, "contribution-status", msg), broken
	}
}

// InsurancePoolInvariant checks that the insurance pool account holds at
// least the recorded slashed total, which equals the sum of slash records.
func InsurancePoolInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		sum := math.ZeroInt()
		err := k.IterateSlashRecords(ctx, func(record types.SlashRecord) (bool, error) {
			sum = sum.Add(record.Amount)
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "insurance-pool",
				fmt.Sprintf("error iterating slash records: %v", err)), true
		}

		pool, err := k.InsurancePool(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "insurance-pool",
				fmt.Sprintf("error reading pool: %v", err)), true
		}
		if !pool.Equal(sum) {
			return sdk.FormatInvariant(types.ModuleName, "insurance-pool",
				fmt.Sprintf("insurance pool %s != slashed total %s", pool, sum)), true
		}

		params, err := k.GetParams(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "insurance-pool",
				fmt.Sprintf("error reading params: %v", err)), true
		}
		balance := k.bankKeeper.GetBalance(ctx, types.InsurancePoolAddress(), params.BondDenom)
		if balance.Amount.LT(pool) {
			return sdk.FormatInvariant(types.ModuleName, "insurance-pool",
				fmt.Sprintf("insurance balance %s below recorded pool %s", balance.Amount, pool)), true
		}
		return sdk.FormatInvariant(types.ModuleName, "insurance-pool", "insurance pool consistent"), false
	}
}
