package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/types"
)

func createProposal(t *testing.T, f *keepertest.MeritFixture, category types.ProposalCategory) uint64 {
	t.Helper()
	id, err := f.Keeper.CreateProposal(f.Ctx, keepertest.Addr(999), category, "raise the data reward rate", 0)
	require.NoError(t, err)
	return id
}

func TestCreateProposal(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper

	tests := []struct {
		category     types.ProposalCategory
		requested    time.Duration
		deliberation time.Duration
	}{
		{types.ProposalStandard, 0, 3 * types.Day},
		{types.ProposalConstitutional, 7 * types.Day, 14 * types.Day},
		{types.ProposalEmergency, 2 * types.Day, 2 * types.Day},
	}
	for i, tc := range tests {
		id, err := k.CreateProposal(f.Ctx, keepertest.Addr(1), tc.category, "proposal", tc.requested)
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), id)

		proposal, err := k.GetProposal(f.Ctx, id)
		require.NoError(t, err)
		require.Equal(t, tc.deliberation, proposal.DeliberationPeriod)
		require.Equal(t, types.ProposalStatusVoting, proposal.Status)
	}

	_, err := k.CreateProposal(f.Ctx, keepertest.Addr(1), types.ProposalCategory("urgent"), "proposal", 0)
	require.ErrorIs(t, err, types.ErrInvalidProposal)
	_, err = k.CreateProposal(f.Ctx, keepertest.Addr(1), types.ProposalStandard, " ", 0)
	require.ErrorIs(t, err, types.ErrInvalidProposal)
}

func TestQuadraticVoteBoundary(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voter := keepertest.Addr(1)
	f.Stake(t, voter, types.RoleData, 100)
	id := createProposal(t, f, types.ProposalStandard)

	_, err := k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 11)
	require.ErrorIs(t, err, types.ErrVotingPowerExceeded)

	record, err := k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 7)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(49), record.Spent)

	record, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 7)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(98), record.Spent)
	require.Equal(t, uint64(14), record.Votes)

	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 2)
	require.ErrorIs(t, err, types.ErrVotingPowerExceeded)

	remaining, maxVotes, err := k.VotingAllowance(f.Ctx, id, voter)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(2), remaining)
	require.Equal(t, uint64(1), maxVotes)

	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 1)
	require.NoError(t, err)

	proposal, err := k.GetProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, uint64(15), proposal.TallyFor)
	require.True(t, f.HasEvent(types.EventTypeQuadraticVoteCast))
}

func TestQuadraticVoteSingleShotAtFullPower(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	voter := keepertest.Addr(1)
	f.Stake(t, voter, types.RoleData, 100)
	id := createProposal(t, f, types.ProposalStandard)

	record, err := f.Keeper.CastQuadraticVote(f.Ctx, id, voter, types.VoteAgainst, 10)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(100), record.Spent)

	_, err = f.Keeper.CastQuadraticVote(f.Ctx, id, voter, types.VoteAgainst, 1)
	require.ErrorIs(t, err, types.ErrVotingPowerExceeded)
}

func TestQuadraticVoteUsesSnapshot(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	early := keepertest.Addr(1)
	late := keepertest.Addr(2)
	f.Stake(t, early, types.RoleData, 100)
	id := createProposal(t, f, types.ProposalStandard)

	f.AdvanceTime(time.Second)
	f.Stake(t, late, types.RoleData, 10_000)

	_, err := k.CastQuadraticVote(f.Ctx, id, late, types.VoteFor, 1)
	require.ErrorIs(t, err, types.ErrVotingPowerExceeded)

	remaining, maxVotes, err := k.VotingAllowance(f.Ctx, id, late)
	require.NoError(t, err)
	require.True(t, remaining.IsZero())
	require.Zero(t, maxVotes)

	_, err = k.CastQuadraticVote(f.Ctx, id, early, types.VoteFor, 10)
	require.NoError(t, err)
}

func TestQuadraticVoteValidation(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voter := keepertest.Addr(1)
	f.Stake(t, voter, types.RoleData, 100)
	id := createProposal(t, f, types.ProposalStandard)

	_, err := k.CastQuadraticVote(f.Ctx, id, voter, types.VoteOption("maybe"), 1)
	require.ErrorIs(t, err, types.ErrInvalidVote)
	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 0)
	require.ErrorIs(t, err, types.ErrInvalidVote)
	_, err = k.CastQuadraticVote(f.Ctx, 42, voter, types.VoteFor, 1)
	require.ErrorIs(t, err, types.ErrProposalNotFound)

	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 1)
	require.NoError(t, err)
	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteAgainst, 1)
	require.ErrorIs(t, err, types.ErrConflictingVote)

	f.AdvanceTime(3 * types.Day)
	_, err = k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 1)
	require.ErrorIs(t, err, types.ErrVotingClosed)
}

// stakedVoters opens equal data positions for n voters before a proposal exists.
func stakedVoters(t *testing.T, f *keepertest.MeritFixture, n int) []sdk.AccAddress {
	voters := make([]sdk.AccAddress, n)
	for i := range voters {
		voters[i] = keepertest.Addr(10 + i)
		f.Stake(t, voters[i], types.RoleData, 10_000)
	}
	return voters
}

func TestFinalizeStandardProposal(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voters := stakedVoters(t, f, 2)
	id := createProposal(t, f, types.ProposalStandard)

	_, err := k.CastQuadraticVote(f.Ctx, id, voters[0], types.VoteFor, 60)
	require.NoError(t, err)
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[1], types.VoteAgainst, 40)
	require.NoError(t, err)

	_, err = k.FinalizeProposal(f.Ctx, id)
	require.ErrorIs(t, err, types.ErrDeliberationPending)

	f.AdvanceTime(3 * types.Day)
	status, err := k.FinalizeProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusPassed, status)
	require.True(t, f.HasEvent(types.EventTypeProposalFinalized))

	_, err = k.FinalizeProposal(f.Ctx, id)
	require.ErrorIs(t, err, types.ErrProposalFinalized)
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[0], types.VoteFor, 1)
	require.ErrorIs(t, err, types.ErrProposalFinalized)
}

func TestFinalizeStandardProposalTieIsRejected(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voters := stakedVoters(t, f, 3)
	id := createProposal(t, f, types.ProposalStandard)

	_, err := k.CastQuadraticVote(f.Ctx, id, voters[0], types.VoteFor, 50)
	require.NoError(t, err)
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[1], types.VoteAgainst, 50)
	require.NoError(t, err)
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[2], types.VoteAbstain, 90)
	require.NoError(t, err)

	f.AdvanceTime(3 * types.Day)
	status, err := k.FinalizeProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusRejected, status)
}

func TestFinalizeConstitutionalProposal(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voters := stakedVoters(t, f, 2)
	id := createProposal(t, f, types.ProposalConstitutional)

	// 67 / (67 + 33) reaches the threshold exactly
	_, err := k.CastQuadraticVote(f.Ctx, id, voters[0], types.VoteFor, 67)
	require.NoError(t, err)
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[1], types.VoteAgainst, 33)
	require.NoError(t, err)

	f.AdvanceTime(13 * types.Day)
	_, err = k.FinalizeProposal(f.Ctx, id)
	require.ErrorIs(t, err, types.ErrDeliberationPending)

	f.AdvanceTime(types.Day)
	status, err := k.FinalizeProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusPassed, status)
}

func TestFinalizeEmergencyProposalEarly(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	voters := stakedVoters(t, f, 5)
	id := createProposal(t, f, types.ProposalEmergency)

	proposal, err := k.GetProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(50_000), proposal.PowerAtCreation)

	for _, voter := range voters[:3] {
		_, err := k.CastQuadraticVote(f.Ctx, id, voter, types.VoteFor, 100)
		require.NoError(t, err)
	}
	_, err = k.CastQuadraticVote(f.Ctx, id, voters[4], types.VoteAgainst, 20)
	require.NoError(t, err)

	// 300 / 320 approval but only 60% of the stake behind it
	_, err = k.FinalizeProposal(f.Ctx, id)
	require.ErrorIs(t, err, types.ErrDeliberationPending)

	_, err = k.CastQuadraticVote(f.Ctx, id, voters[3], types.VoteFor, 100)
	require.NoError(t, err)

	f.ResetEvents()
	require.NoError(t, k.EndBlocker(f.Ctx))
	proposal, err = k.GetProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusPassed, proposal.Status)
	require.Equal(t, math.NewInt(40_000), proposal.SpentFor)
	require.True(t, proposal.BackingPercent().Equal(math.LegacyNewDec(80)))
	require.NotNil(t, proposal.FinalizedAt)
	require.True(t, f.HasEvent(types.EventTypeProposalFinalized))
}

func TestEmergencyProposalWaitsForLargeHolders(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	small := keepertest.Addr(1)
	large := keepertest.Addr(2)
	f.Stake(t, small, types.RoleData, 100)
	f.Stake(t, large, types.RoleData, 1_000_000)
	id := createProposal(t, f, types.ProposalEmergency)

	_, err := k.CastQuadraticVote(f.Ctx, id, small, types.VoteFor, 1)
	require.NoError(t, err)

	require.NoError(t, k.EndBlocker(f.Ctx))
	proposal, err := k.GetProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusVoting, proposal.Status)
	require.True(t, proposal.Approval().Equal(math.LegacyNewDec(100)))

	_, err = k.CastQuadraticVote(f.Ctx, id, large, types.VoteAgainst, 1_000)
	require.NoError(t, err)

	f.AdvanceTime(types.Day)
	require.NoError(t, k.EndBlocker(f.Ctx))
	proposal, err = k.GetProposal(f.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusRejected, proposal.Status)
}
