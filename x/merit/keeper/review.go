package keeper

import (
	"context"
	"errors"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// SubmitReview records reviewer's assessment of a contribution. The review
// that completes the quorum resolves the contribution and, on approval, pays
// its reward. A failed payout leaves the contribution Approved for a later
// RetryReward and does not fail the review.
func (k Keeper) SubmitReview(ctx context.Context, contributionID uint64, reviewer sdk.AccAddress, criteria types.ReviewCriteria) (types.ReviewRecord, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.ReviewRecord{}, err
	}

	contribution, err := k.GetContribution(ctx, contributionID)
	if err != nil {
		return types.ReviewRecord{}, err
	}
	if !k.capabilities.CanReview(ctx, reviewer) {
		return types.ReviewRecord{}, types.ErrNotValidator.Wrapf("%s may not review", reviewer)
	}
	if contribution.Owner == reviewer.String() {
		return types.ReviewRecord{}, types.ErrSelfReview
	}
	if !contribution.Status.AcceptsReviews() {
		return types.ReviewRecord{}, types.ErrReviewClosed.Wrapf("contribution %d is %s", contributionID, contribution.Status)
	}
	if contribution.HasReviewer(reviewer.String()) {
		return types.ReviewRecord{}, types.ErrDuplicateReview.Wrapf("%s already reviewed contribution %d", reviewer, contributionID)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	if params.ReviewWindow > 0 && now.After(contribution.SubmittedAt.Add(params.ReviewWindow)) {
		return types.ReviewRecord{}, types.ErrReviewWindowClosed.Wrapf("contribution %d", contributionID)
	}

	quality, err := types.AssessQuality(criteria, params.QualityWeights)
	if err != nil {
		return types.ReviewRecord{}, err
	}
	impact, err := types.AssessImpact(criteria, params.ImpactWeights)
	if err != nil {
		return types.ReviewRecord{}, err
	}

	review := types.ReviewRecord{
		ContributionID: contributionID,
		Reviewer:       reviewer.String(),
		Criteria:       criteria,
		Quality:        quality,
		Impact:         impact,
		Composite:      types.CompositeScore(quality, impact),
		SubmittedAt:    now,
	}
	if err := setJSON(k.getStore(ctx), ReviewKey(contributionID, reviewer), review); err != nil {
		return types.ReviewRecord{}, err
	}

	contribution.Reviewers = append(contribution.Reviewers, reviewer.String())
	if contribution.Status == types.StatusPending {
		contribution.Status = types.StatusUnderReview
	}
	if err := k.setContribution(ctx, contribution); err != nil {
		return types.ReviewRecord{}, err
	}

	k.metrics.ReviewsSubmitted.Inc()
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeContributionReviewed,
			sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(contributionID, 10)),
			sdk.NewAttribute(types.AttributeKeyReviewer, reviewer.String()),
			sdk.NewAttribute(types.AttributeKeyQuality, quality.String()),
			sdk.NewAttribute(types.AttributeKeyImpact, impact.String()),
		),
	)

	if uint32(len(contribution.Reviewers)) >= contribution.Quorum(params.MinReviewers) {
		if err := k.resolveContribution(ctx, params, contribution); err != nil {
			return types.ReviewRecord{}, err
		}
	}

	return review, nil
}

// resolveContribution adjudicates a contribution that reached its quorum.
func (k Keeper) resolveContribution(ctx context.Context, params types.Params, contribution types.Contribution) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()

	average, _, err := k.QuorumAverage(ctx, contribution.ID)
	if err != nil {
		return err
	}

	contribution.QualityScore = average
	contribution.ImpactScore = average
	contribution.ReviewedAt = &now

	if average.LT(params.ApprovalThreshold) {
		contribution.Status = types.StatusRejected
		contribution.RejectReason = "below approval threshold"
		if err := k.setContribution(ctx, contribution); err != nil {
			return err
		}
		k.metrics.ContributionsResolved.WithLabelValues(types.StatusRejected.String()).Inc()
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeContributionRejected,
				sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(contribution.ID, 10)),
				sdk.NewAttribute(types.AttributeKeyQuality, average.String()),
				sdk.NewAttribute(types.AttributeKeyReason, contribution.RejectReason),
			),
		)
		return nil
	}

	contribution.Status = types.StatusApproved
	if err := k.setContribution(ctx, contribution); err != nil {
		return err
	}
	k.metrics.ContributionsResolved.WithLabelValues(types.StatusApproved.String()).Inc()
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeContributionApproved,
			sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(contribution.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyQuality, average.String()),
		),
	)

	_, err = k.payReward(ctx, params, contribution)
	if errors.Is(err, types.ErrTreasuryTransfer) {
		k.metrics.RewardsDeferred.Inc()
		k.Logger(ctx).Info("contribution reward deferred", "id", contribution.ID, "error", err.Error())
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeContributionRewardDeferred,
				sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(contribution.ID, 10)),
				sdk.NewAttribute(types.AttributeKeyReason, err.Error()),
			),
		)
		return nil
	}
	return err
}

// QuorumAverage returns the mean composite score of the recorded reviews of a
// contribution and how many reviews it averaged.
func (k Keeper) QuorumAverage(ctx context.Context, contributionID uint64) (math.LegacyDec, int, error) {
	reviews, err := k.GetReviews(ctx, contributionID)
	if err != nil {
		return math.LegacyDec{}, 0, err
	}
	if len(reviews) == 0 {
		return math.LegacyZeroDec(), 0, nil
	}

	sum := math.LegacyZeroDec()
	for _, r := range reviews {
		sum = sum.Add(r.Composite)
	}
	return sum.QuoInt64(int64(len(reviews))), len(reviews), nil
}

// GetReview returns the review of reviewer on a contribution.
func (k Keeper) GetReview(ctx context.Context, contributionID uint64, reviewer sdk.AccAddress) (types.ReviewRecord, error) {
	review, found, err := getJSON[types.ReviewRecord](k.getStore(ctx), ReviewKey(contributionID, reviewer))
	if err != nil {
		return types.ReviewRecord{}, err
	}
	if !found {
		return types.ReviewRecord{}, types.ErrReviewNotFound.Wrapf("contribution %d reviewer %s", contributionID, reviewer)
	}
	return review, nil
}

// GetReviews returns every review recorded for a contribution.
func (k Keeper) GetReviews(ctx context.Context, contributionID uint64) ([]types.ReviewRecord, error) {
	var reviews []types.ReviewRecord
	err := iterateJSON(k.getStore(ctx), ReviewPrefix(contributionID), func(_ []byte, r types.ReviewRecord) (bool, error) {
		reviews = append(reviews, r)
		return false, nil
	})
	return reviews, err
}

// IterateReviews walks every stored review.
func (k Keeper) IterateReviews(ctx context.Context, cb func(r types.ReviewRecord) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), ReviewKeyPrefix, func(_ []byte, r types.ReviewRecord) (bool, error) {
		return cb(r)
	})
}
