package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// payReward transfers the reward of an approved contribution from the reward
// pool and records it. The transfer, the Rewarded status and the profile
// update commit together or not at all.
func (k Keeper) payReward(ctx context.Context, params types.Params, contribution types.Contribution) (math.Int, error) {
	if contribution.Status != types.StatusApproved {
		return math.Int{}, types.ErrNotApproved.Wrapf("contribution %d is %s", contribution.ID, contribution.Status)
	}
	owner, err := sdk.AccAddressFromBech32(contribution.Owner)
	if err != nil {
		return math.Int{}, err
	}

	rate, err := params.CategoryRate(contribution.Category)
	if err != nil {
		return math.Int{}, err
	}
	reward := types.ComputeReward(contribution.DeclaredValue, rate, contribution.QualityScore, contribution.ImpactScore)
	if bound := types.RewardUpperBound(contribution.DeclaredValue, params.MaxCategoryRate()); reward.GT(bound) {
		return math.Int{}, k.invariantViolation(ctx, "reward %s of contribution %d exceeds bound %s", reward, contribution.ID, bound)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	cacheCtx, writeFn := sdkCtx.CacheContext()

	if reward.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, reward))
		if err := k.bankKeeper.SendCoins(cacheCtx, types.RewardPoolAddress(), owner, coins); err != nil {
			return math.Int{}, types.ErrTreasuryTransfer.Wrapf("reward for contribution %d: %v", contribution.ID, err)
		}
	}

	contribution.Status = types.StatusRewarded
	contribution.RewardAmount = reward
	if err := k.setContribution(cacheCtx, contribution); err != nil {
		return math.Int{}, err
	}
	if err := k.recordReward(cacheCtx, params, owner, contribution.QualityScore, reward); err != nil {
		return math.Int{}, err
	}

	writeFn()

	k.metrics.RewardsPaid.WithLabelValues("contribution").Add(tokens(reward))
	k.Logger(ctx).Info("contribution rewarded", "id", contribution.ID, "owner", contribution.Owner, "reward", reward.String())

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeContributionRewarded,
			sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(contribution.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyOwner, contribution.Owner),
			sdk.NewAttribute(types.AttributeKeyReward, reward.String()),
		),
	)
	return reward, nil
}

// RetryReward pays a contribution whose reward was deferred because the
// reward pool could not cover it.
func (k Keeper) RetryReward(ctx context.Context, operator sdk.AccAddress, contributionID uint64) (math.Int, error) {
	if !k.capabilities.CanOperate(ctx, operator) {
		return math.Int{}, types.ErrUnauthorized.Wrapf("%s may not retry rewards", operator)
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.Int{}, err
	}
	contribution, err := k.GetContribution(ctx, contributionID)
	if err != nil {
		return math.Int{}, err
	}
	return k.payReward(ctx, params, contribution)
}

// recordReward folds a rewarded contribution into the contributor profile and
// recomputes its reputation.
func (k Keeper) recordReward(ctx context.Context, params types.Params, contributor sdk.AccAddress, quality math.LegacyDec, reward math.Int) error {
	now := sdk.UnwrapSDKContext(ctx).BlockTime()

	profile, found, err := k.getProfile(ctx, contributor)
	if err != nil {
		return err
	}
	if !found {
		profile = types.ContributorProfile{
			Contributor:     contributor.String(),
			TotalRewards:    math.ZeroInt(),
			QualitySum:      math.LegacyZeroDec(),
			ReputationScore: math.LegacyZeroDec(),
		}
	}

	profile.TotalContributions++
	profile.TotalRewards = profile.TotalRewards.Add(reward)
	profile.QualitySum = profile.QualitySum.Add(quality)
	profile.LastContributionTime = now
	profile.Active = true

	average := profile.AverageQuality()
	reputation, err := types.AssessReputation(
		profile.TotalContributions,
		average,
		types.ConsistencyScore(quality, average),
		types.PeerReviewScore(profile.TotalContributions, k.SubmissionCount(ctx, contributor)),
		params.ReputationWeights,
	)
	if err != nil {
		return err
	}
	profile.ReputationScore = reputation

	return k.setProfile(ctx, profile)
}

// GetProfile returns the contributor profile of addr.
func (k Keeper) GetProfile(ctx context.Context, contributor sdk.AccAddress) (types.ContributorProfile, error) {
	profile, found, err := k.getProfile(ctx, contributor)
	if err != nil {
		return types.ContributorProfile{}, err
	}
	if !found {
		return types.ContributorProfile{}, types.ErrProfileNotFound.Wrapf("%s", contributor)
	}
	return profile, nil
}

// EffectiveReputation returns the stored reputation of contributor lowered by
// the decay accrued since the last rewarded contribution.
func (k Keeper) EffectiveReputation(ctx context.Context, contributor sdk.AccAddress) (math.LegacyDec, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.LegacyDec{}, err
	}
	profile, err := k.GetProfile(ctx, contributor)
	if err != nil {
		return math.LegacyDec{}, err
	}
	elapsed := sdk.UnwrapSDKContext(ctx).BlockTime().Sub(profile.LastContributionTime)
	return types.Decay(profile.ReputationScore, elapsed, params.ReputationDecayPerDay), nil
}

func (k Keeper) getProfile(ctx context.Context, contributor sdk.AccAddress) (types.ContributorProfile, bool, error) {
	return getJSON[types.ContributorProfile](k.getStore(ctx), ProfileKey(contributor))
}

func (k Keeper) setProfile(ctx context.Context, profile types.ContributorProfile) error {
	contributor, err := sdk.AccAddressFromBech32(profile.Contributor)
	if err != nil {
		return err
	}
	return setJSON(k.getStore(ctx), ProfileKey(contributor), profile)
}

// IterateProfiles walks every contributor profile.
func (k Keeper) IterateProfiles(ctx context.Context, cb func(p types.ContributorProfile) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), ProfileKeyPrefix, func(_ []byte, p types.ContributorProfile) (bool, error) {
		return cb(p)
	})
}
