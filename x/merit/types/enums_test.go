package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paw-chain/merit/x/merit/types"
)

func TestContributionStatusTransitions(t *testing.T) {
	allowed := map[types.ContributionStatus][]types.ContributionStatus{
		types.StatusPending:     {types.StatusUnderReview, types.StatusRejected},
		types.StatusUnderReview: {types.StatusApproved, types.StatusRejected},
		types.StatusApproved:    {types.StatusRewarded},
	}
	all := []types.ContributionStatus{
		types.StatusPending, types.StatusUnderReview, types.StatusApproved, types.StatusRejected, types.StatusRewarded,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			require.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	require.True(t, types.StatusRejected.IsTerminal())
	require.True(t, types.StatusRewarded.IsTerminal())
	require.False(t, types.StatusApproved.IsTerminal())
	require.True(t, types.StatusUnderReview.AcceptsReviews())
	require.False(t, types.StatusApproved.AcceptsReviews())
}

func TestParseEnums(t *testing.T) {
	role, err := types.ParseRole(" Validator ")
	require.NoError(t, err)
	require.Equal(t, types.RoleValidator, role)
	require.False(t, role.IsContributor())
	require.True(t, types.RoleData.IsContributor())

	_, err = types.ParseRole("miner")
	require.ErrorIs(t, err, types.ErrInvalidRole)

	category, err := types.ParseCategory("AI_TRAINING")
	require.NoError(t, err)
	require.Equal(t, types.CategoryAITraining, category)
	_, err = types.ParseCategory("art")
	require.ErrorIs(t, err, types.ErrInvalidCategory)

	proposal, err := types.ParseProposalCategory("emergency")
	require.NoError(t, err)
	require.Equal(t, types.ProposalEmergency, proposal)
	_, err = types.ParseProposalCategory("urgent")
	require.ErrorIs(t, err, types.ErrInvalidProposal)

	option, err := types.ParseVoteOption("Against")
	require.NoError(t, err)
	require.Equal(t, types.VoteAgainst, option)
	_, err = types.ParseVoteOption("maybe")
	require.ErrorIs(t, err, types.ErrInvalidVote)

	require.Equal(t, "under_review", types.StatusUnderReview.String())
	require.Equal(t, "passed", types.ProposalStatusPassed.String())
}
