package keeper_test

import (
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"pgregory.net/rapid"

	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/types"
)

// Pending staking rewards never shrink as time passes and reading them has no effect.
func TestPendingRewardsMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := keepertest.NewMeritFixture(t)
		owner := keepertest.Addr(1)
		role := rapid.SampledFrom([]types.Role{types.RoleData, types.RoleResearch, types.RoleCompute}).Draw(rt, "role")
		amount := rapid.Int64Range(1_000, 1_000_000_000).Draw(rt, "amount")
		f.Stake(t, owner, role, amount)

		last := math.ZeroInt()
		steps := rapid.IntRange(1, 10).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			f.AdvanceTime(time.Duration(rapid.Int64Range(0, int64(60*types.Day)).Draw(rt, "advance")))

			pending, err := f.Keeper.PendingRewards(f.Ctx, owner)
			if err != nil {
				rt.Fatalf("pending rewards: %v", err)
			}
			again, err := f.Keeper.PendingRewards(f.Ctx, owner)
			if err != nil {
				rt.Fatalf("pending rewards: %v", err)
			}
			if !pending.Equal(again) {
				rt.Fatalf("pending changed between reads: %s then %s", pending, again)
			}
			if pending.LT(last) {
				rt.Fatalf("pending decreased from %s to %s", last, pending)
			}
			last = pending
		}
	})
}

// The total-staked counter and escrow stay consistent with the positions
// under any interleaving of opens, closes, claims and slashes.
func TestStakeLedgerConsistencyProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := keepertest.NewMeritFixture(t)
		f.FundRewardPool(t, 1_000_000_000)
		actors := 4

		ops := rapid.IntRange(1, 25).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			owner := keepertest.Addr(1 + rapid.IntRange(0, actors-1).Draw(rt, "actor"))
			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				amount := rapid.Int64Range(100, 100_000).Draw(rt, "amount")
				f.Fund(t, owner, amount)
				_, err := f.Keeper.OpenPosition(f.Ctx, owner, types.RoleData, math.NewInt(amount), 7*types.Day, "")
				if err != nil && !errors.Is(err, types.ErrAlreadyStaked) {
					rt.Fatalf("open: %v", err)
				}
			case 1:
				_, _, err := f.Keeper.ClosePosition(f.Ctx, owner)
				if err != nil && !errors.Is(err, types.ErrNotActive) && !errors.Is(err, types.ErrLockNotExpired) {
					rt.Fatalf("close: %v", err)
				}
			case 2:
				_, err := f.Keeper.ClaimRewards(f.Ctx, owner)
				if err != nil && !errors.Is(err, types.ErrNotActive) {
					rt.Fatalf("claim: %v", err)
				}
			case 3:
				validator := keepertest.Addr(50)
				if _, err := f.Keeper.GetPosition(f.Ctx, validator); err != nil {
					f.Stake(t, validator, types.RoleValidator, 10_000)
				}
				proposed := rapid.Int64Range(1, 20_000).Draw(rt, "slash")
				_, err := f.Keeper.Slash(f.Ctx, f.Authority, validator, math.NewInt(proposed), "equivocation")
				if err != nil {
					rt.Fatalf("slash: %v", err)
				}
			default:
				f.AdvanceTime(time.Duration(rapid.Int64Range(1, int64(10*types.Day)).Draw(rt, "advance")))
			}

			if msg, broken := keeper.AllInvariants(*f.Keeper)(f.Ctx); broken {
				rt.Fatalf("invariant broken after op %d: %s", i, msg)
			}
		}
	})
}

// Cumulative quadratic spend never exceeds the voter's snapshot.
func TestQuadraticSpendBoundedProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := keepertest.NewMeritFixture(t)
		voter := keepertest.Addr(1)
		stake := rapid.Int64Range(100, 50_000).Draw(rt, "stake")
		f.Stake(t, voter, types.RoleData, stake)

		id, err := f.Keeper.CreateProposal(f.Ctx, voter, types.ProposalStandard, "property", 0)
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		var cast uint64
		attempts := rapid.IntRange(1, 20).Draw(rt, "attempts")
		for i := 0; i < attempts; i++ {
			votes := rapid.Uint64Range(1, 300).Draw(rt, "votes")
			remaining, maxVotes, err := f.Keeper.VotingAllowance(f.Ctx, id, voter)
			if err != nil {
				rt.Fatalf("allowance: %v", err)
			}

			record, err := f.Keeper.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, votes)
			switch {
			case votes <= maxVotes:
				if err != nil {
					rt.Fatalf("%d votes within allowance %d (remaining %s) rejected: %v", votes, maxVotes, remaining, err)
				}
				cast += votes
				if record.Spent.GT(math.NewInt(stake)) {
					rt.Fatalf("spent %s above stake %d", record.Spent, stake)
				}
			case !errors.Is(err, types.ErrVotingPowerExceeded):
				rt.Fatalf("%d votes above allowance %d: got %v", votes, maxVotes, err)
			}
		}

		proposal, err := f.Keeper.GetProposal(f.Ctx, id)
		if err != nil {
			rt.Fatalf("get proposal: %v", err)
		}
		if proposal.TallyFor != cast {
			rt.Fatalf("tally %d != votes cast %d", proposal.TallyFor, cast)
		}
	})
}
