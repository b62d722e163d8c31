package keeper_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

// uniform returns criteria whose quality, impact and composite all equal score.
func uniform(score uint32) types.ReviewCriteria {
	return types.ReviewCriteria{
		Technical:     score,
		Innovation:    score,
		Impact:        score,
		Documentation: score,
		Community:     score,
	}
}

type reviewFixture struct {
	*keepertest.MeritFixture
	contributor sdk.AccAddress
	reviewers   []sdk.AccAddress
}

func newReviewFixture(t *testing.T) *reviewFixture {
	f := keepertest.NewMeritFixture(t)
	rf := &reviewFixture{MeritFixture: f, contributor: keepertest.Addr(1)}

	f.Stake(t, rf.contributor, types.RoleAITraining, 500)
	for i := 0; i < 4; i++ {
		reviewer := keepertest.Addr(100 + i)
		require.NoError(t, f.Keeper.SetReviewer(f.Ctx, f.Authority.String(), reviewer, true))
		rf.reviewers = append(rf.reviewers, reviewer)
	}
	return rf
}

func (rf *reviewFixture) submit(t *testing.T, declared int64) uint64 {
	t.Helper()
	id, err := rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.CategoryAITraining,
		keepertest.SampleProof(types.CategoryAITraining), math.NewInt(declared))
	require.NoError(t, err)
	return id
}

func TestSubmitContribution(t *testing.T) {
	rf := newReviewFixture(t)

	id := rf.submit(t, 1_000)
	require.Equal(t, uint64(1), id)
	require.Equal(t, uint64(2), rf.submit(t, 2_000))

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, contribution.Status)
	require.Equal(t, rf.contributor.String(), contribution.Owner)
	require.Equal(t, math.NewInt(1_000), contribution.DeclaredValue)
	require.True(t, contribution.RewardAmount.IsZero())
	require.Empty(t, contribution.Reviewers)
	require.True(t, rf.HasEvent(types.EventTypeContributionSubmitted))

	owned, err := rf.Keeper.ContributionsByOwner(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, uint64(2), rf.Keeper.SubmissionCount(rf.Ctx, rf.contributor))
}

func TestSubmitContributionValidation(t *testing.T) {
	rf := newReviewFixture(t)
	proof := keepertest.SampleProof(types.CategoryAITraining)

	_, err := rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.CategoryAITraining, proof, math.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.Category("art"), proof, math.NewInt(10))
	require.ErrorIs(t, err, types.ErrInvalidCategory)

	_, err = rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.CategoryData, proof, math.NewInt(10))
	require.ErrorIs(t, err, types.ErrInvalidProof)

	unstaked := keepertest.Addr(50)
	_, err = rf.Keeper.SubmitContribution(rf.Ctx, unstaked, types.CategoryAITraining, proof, math.NewInt(10))
	require.ErrorIs(t, err, types.ErrContributorNotStaked)

	_, err = rf.Keeper.GetContribution(rf.Ctx, 1)
	require.ErrorIs(t, err, types.ErrContributionNotFound)
}

func TestSubmitContributionWithRejectedProof(t *testing.T) {
	rf := newReviewFixture(t)
	rf.Keeper.SetProofVerifier(oracle.StaticVerifier{Accept: false})

	id := rf.submit(t, 1_000)
	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusRejected, contribution.Status)
	require.Equal(t, "proof rejected", contribution.RejectReason)
	require.True(t, rf.HasEvent(types.EventTypeContributionRejected))

	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[0], uniform(90))
	require.ErrorIs(t, err, types.ErrReviewClosed)
}

func TestSubmitContributionOracleFailure(t *testing.T) {
	rf := newReviewFixture(t)
	rf.Keeper.SetProofVerifier(oracle.VerifierFunc(func(context.Context, sdk.AccAddress, types.Proof) (types.Verification, error) {
		return types.Verification{}, errors.New("attestation service unavailable")
	}))

	_, err := rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.CategoryAITraining,
		keepertest.SampleProof(types.CategoryAITraining), math.NewInt(1_000))
	require.ErrorIs(t, err, types.ErrOracleFailure)

	owned, err := rf.Keeper.ContributionsByOwner(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.Empty(t, owned)
	require.Zero(t, rf.Keeper.SubmissionCount(rf.Ctx, rf.contributor))
}

func TestSubmitContributionRecordsQualityHint(t *testing.T) {
	rf := newReviewFixture(t)
	proof := keepertest.SampleProof(types.CategoryAITraining)
	claimed := uint32(88)
	proof.ClaimedQuality = &claimed

	id, err := rf.Keeper.SubmitContribution(rf.Ctx, rf.contributor, types.CategoryAITraining, proof, math.NewInt(10))
	require.NoError(t, err)

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, contribution.QualityHint)
	require.Equal(t, math.LegacyNewDec(88), *contribution.QualityHint)
}

func TestQuorumApprovesAndRewards(t *testing.T) {
	rf := newReviewFixture(t)
	rf.FundRewardPool(t, 1_000_000)
	id := rf.submit(t, 1_000)

	for i, score := range []uint32{80, 75, 90} {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[i], uniform(score))
		require.NoError(t, err)
	}

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusRewarded, contribution.Status)

	average, count, err := rf.Keeper.QuorumAverage(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, math.LegacyNewDec(245).QuoInt64(3), average)
	require.Equal(t, average, contribution.QualityScore)
	require.Equal(t, average, contribution.ImpactScore)

	// 1000 × 8/100 × (81.67×2/100 + 81.67×2/100)/2, truncated
	require.Equal(t, math.NewInt(130), contribution.RewardAmount)
	require.Equal(t, types.ComputeReward(math.NewInt(1_000), 8, average, average), contribution.RewardAmount)
	require.Equal(t, math.NewInt(130), rf.Balance(rf.contributor))
	require.True(t, rf.HasEvent(types.EventTypeContributionApproved))
	require.True(t, rf.HasEvent(types.EventTypeContributionRewarded))

	profile, err := rf.Keeper.GetProfile(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.Equal(t, uint64(1), profile.TotalContributions)
	require.Equal(t, math.NewInt(130), profile.TotalRewards)
	expected, err := types.AssessReputation(1, average, math.LegacyNewDec(100), math.LegacyNewDec(100), types.DefaultParams().ReputationWeights)
	require.NoError(t, err)
	require.Equal(t, expected, profile.ReputationScore)

	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[3], uniform(90))
	require.ErrorIs(t, err, types.ErrReviewClosed)
}

func TestQuorumFixedAtSubmission(t *testing.T) {
	rf := newReviewFixture(t)
	rf.FundRewardPool(t, 1_000_000)
	early := rf.submit(t, 1_000)

	for _, reviewer := range rf.reviewers[:2] {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, early, reviewer, uniform(85))
		require.NoError(t, err)
	}

	params := types.DefaultParams()
	params.MinReviewers = 2
	params.MaxReviewers = 2
	require.NoError(t, rf.Keeper.UpdateParams(rf.Ctx, rf.Authority.String(), params))

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, early)
	require.NoError(t, err)
	require.Equal(t, types.StatusUnderReview, contribution.Status)
	require.Equal(t, uint32(3), contribution.RequiredReviews)

	_, err = rf.Keeper.SubmitReview(rf.Ctx, early, rf.reviewers[2], uniform(85))
	require.NoError(t, err)
	contribution, err = rf.Keeper.GetContribution(rf.Ctx, early)
	require.NoError(t, err)
	require.Equal(t, types.StatusRewarded, contribution.Status)
	require.Len(t, contribution.Reviewers, 3)

	_, err = rf.Keeper.SubmitReview(rf.Ctx, early, rf.reviewers[3], uniform(85))
	require.ErrorIs(t, err, types.ErrReviewClosed)

	late := rf.submit(t, 1_000)
	for _, reviewer := range rf.reviewers[:2] {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, late, reviewer, uniform(85))
		require.NoError(t, err)
	}
	contribution, err = rf.Keeper.GetContribution(rf.Ctx, late)
	require.NoError(t, err)
	require.Equal(t, types.StatusRewarded, contribution.Status)
	require.Equal(t, uint32(2), contribution.RequiredReviews)

	params.MinReviewers = 4
	params.MaxReviewers = 4
	require.NoError(t, rf.Keeper.UpdateParams(rf.Ctx, rf.Authority.String(), params))

	msg, broken := keeper.AllInvariants(*rf.Keeper)(rf.Ctx)
	require.False(t, broken, msg)

	exported, err := rf.Keeper.ExportGenesis(rf.Ctx)
	require.NoError(t, err)
	require.NoError(t, exported.Validate())
}

func TestQuorumRejectsBelowThreshold(t *testing.T) {
	rf := newReviewFixture(t)
	rf.FundRewardPool(t, 1_000_000)
	id := rf.submit(t, 1_000)

	for i, score := range []uint32{70, 60, 75} {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[i], uniform(score))
		require.NoError(t, err)
	}

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusRejected, contribution.Status)
	require.True(t, contribution.RewardAmount.IsZero())
	require.True(t, rf.Balance(rf.contributor).IsZero())

	_, err = rf.Keeper.GetProfile(rf.Ctx, rf.contributor)
	require.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestDuplicateReviewKeepsContributionUnresolved(t *testing.T) {
	rf := newReviewFixture(t)
	rf.FundRewardPool(t, 1_000_000)
	id := rf.submit(t, 1_000)

	for _, reviewer := range rf.reviewers[:2] {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, reviewer, uniform(90))
		require.NoError(t, err)
	}
	for _, reviewer := range rf.reviewers[:2] {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, reviewer, uniform(90))
		require.ErrorIs(t, err, types.ErrDuplicateReview)
	}

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusUnderReview, contribution.Status)
	require.Len(t, contribution.Reviewers, 2)

	rf.AdvanceTime(365 * types.Day)
	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[2], uniform(90))
	require.NoError(t, err)

	contribution, err = rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusRewarded, contribution.Status)
}

func TestSubmitReviewAuthorization(t *testing.T) {
	rf := newReviewFixture(t)
	id := rf.submit(t, 1_000)

	_, err := rf.Keeper.SubmitReview(rf.Ctx, id, keepertest.Addr(77), uniform(90))
	require.ErrorIs(t, err, types.ErrNotValidator)

	require.NoError(t, rf.Keeper.SetReviewer(rf.Ctx, rf.Authority.String(), rf.contributor, true))
	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.contributor, uniform(90))
	require.ErrorIs(t, err, types.ErrSelfReview)

	_, err = rf.Keeper.SubmitReview(rf.Ctx, 99, rf.reviewers[0], uniform(90))
	require.ErrorIs(t, err, types.ErrContributionNotFound)

	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[0], types.ReviewCriteria{Technical: 101})
	require.ErrorIs(t, err, types.ErrInvalidCriteria)

	err = rf.Keeper.SetReviewer(rf.Ctx, keepertest.Addr(5).String(), keepertest.Addr(6), true)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	// active validators may review without being allow-listed
	validator := keepertest.Addr(200)
	rf.Stake(t, validator, types.RoleValidator, 10_000)
	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, validator, uniform(90))
	require.NoError(t, err)
}

func TestReviewWindow(t *testing.T) {
	rf := newReviewFixture(t)
	params, err := rf.Keeper.GetParams(rf.Ctx)
	require.NoError(t, err)
	params.ReviewWindow = 2 * types.Day
	require.NoError(t, rf.Keeper.SetParams(rf.Ctx, params))

	id := rf.submit(t, 1_000)
	rf.AdvanceTime(types.Day)
	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[0], uniform(90))
	require.NoError(t, err)

	rf.AdvanceTime(2 * types.Day)
	_, err = rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[1], uniform(90))
	require.ErrorIs(t, err, types.ErrReviewWindowClosed)
}

func TestRewardDeferredAndRetried(t *testing.T) {
	rf := newReviewFixture(t)
	id := rf.submit(t, 1_000)

	for i := 0; i < 3; i++ {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[i], uniform(90))
		require.NoError(t, err)
	}

	contribution, err := rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusApproved, contribution.Status)
	require.True(t, contribution.RewardAmount.IsZero())
	require.True(t, rf.HasEvent(types.EventTypeContributionRewardDeferred))

	operator := keepertest.Addr(300)
	_, err = rf.Keeper.RetryReward(rf.Ctx, operator, id)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, rf.Keeper.SetOperator(rf.Ctx, rf.Authority.String(), operator, true))
	_, err = rf.Keeper.RetryReward(rf.Ctx, operator, id)
	require.ErrorIs(t, err, types.ErrTreasuryTransfer)

	rf.FundRewardPool(t, 1_000_000)
	reward, err := rf.Keeper.RetryReward(rf.Ctx, operator, id)
	require.NoError(t, err)
	// 1000 × 8/100 × 1.8
	require.Equal(t, math.NewInt(144), reward)
	require.Equal(t, reward, rf.Balance(rf.contributor))

	contribution, err = rf.Keeper.GetContribution(rf.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusRewarded, contribution.Status)

	_, err = rf.Keeper.RetryReward(rf.Ctx, operator, id)
	require.ErrorIs(t, err, types.ErrNotApproved)
}

func TestEffectiveReputationDecays(t *testing.T) {
	rf := newReviewFixture(t)
	rf.FundRewardPool(t, 1_000_000)
	id := rf.submit(t, 1_000)
	for i := 0; i < 3; i++ {
		_, err := rf.Keeper.SubmitReview(rf.Ctx, id, rf.reviewers[i], uniform(90))
		require.NoError(t, err)
	}

	profile, err := rf.Keeper.GetProfile(rf.Ctx, rf.contributor)
	require.NoError(t, err)

	effective, err := rf.Keeper.EffectiveReputation(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.Equal(t, profile.ReputationScore, effective)

	rf.AdvanceTime(10*types.Day + types.Day/2)
	effective, err = rf.Keeper.EffectiveReputation(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.Equal(t, profile.ReputationScore.Sub(math.LegacyNewDec(10)), effective)

	rf.AdvanceTime(1000 * types.Day)
	effective, err = rf.Keeper.EffectiveReputation(rf.Ctx, rf.contributor)
	require.NoError(t, err)
	require.True(t, effective.IsZero())
}
