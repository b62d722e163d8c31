package keeper

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// SubmitContribution records a contribution after the proof oracle has
// checked its evidence. A proof the oracle rejects is stored as Rejected
// straight away; an oracle failure stores nothing.
func (k Keeper) SubmitContribution(ctx context.Context, owner sdk.AccAddress, category types.Category, proof types.Proof, declaredValue math.Int) (uint64, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}

	if declaredValue.IsNil() || !declaredValue.IsPositive() {
		return 0, types.ErrInvalidAmount.Wrap("declared value must be positive")
	}
	if !category.IsValid() {
		return 0, types.ErrInvalidCategory.Wrapf("%q", category)
	}
	if proof.Category != category {
		return 0, types.ErrInvalidProof.Wrapf("proof for %s submitted as %s", proof.Category, category)
	}
	if err := proof.Validate(); err != nil {
		return 0, err
	}

	if params.RequireContributorStake {
		position, found, err := k.getPosition(ctx, owner)
		if err != nil {
			return 0, err
		}
		if !found || !position.Active || !position.Role.IsContributor() {
			return 0, types.ErrContributorNotStaked.Wrapf("%s holds no active contributor stake", owner)
		}
	}

	verification, err := k.verifyProof(ctx, owner, proof)
	if err != nil {
		return 0, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	id := k.nextSequence(ctx, NextContributionIDKey)

	contribution := types.Contribution{
		ID:            id,
		Owner:         owner.String(),
		Category:      category,
		Proof:         proof,
		DeclaredValue: declaredValue,
		QualityScore:  math.LegacyZeroDec(),
		ImpactScore:   math.LegacyZeroDec(),
		QualityHint:   verification.QualityHint,
		Status:        types.StatusPending,
		SubmittedAt:   now,
		RewardAmount:  math.ZeroInt(),
		Reviewers:     []string{},

		RequiredReviews: params.MinReviewers,
	}
	if !verification.Valid {
		contribution.Status = types.StatusRejected
		contribution.RejectReason = "proof rejected"
		contribution.ReviewedAt = &now
	}

	if err := k.setContribution(ctx, contribution); err != nil {
		return 0, err
	}
	k.getStore(ctx).Set(ContributionByOwnerKey(owner, id), []byte{0x01})
	k.incrementSubmissionCount(ctx, owner)

	k.metrics.ContributionsSubmitted.WithLabelValues(string(category)).Inc()

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeContributionSubmitted,
			sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(id, 10)),
			sdk.NewAttribute(types.AttributeKeyOwner, owner.String()),
			sdk.NewAttribute(types.AttributeKeyCategory, string(category)),
			sdk.NewAttribute(types.AttributeKeyValue, declaredValue.String()),
		),
	)
	if !verification.Valid {
		k.metrics.ContributionsResolved.WithLabelValues(types.StatusRejected.String()).Inc()
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeContributionRejected,
				sdk.NewAttribute(types.AttributeKeyID, strconv.FormatUint(id, 10)),
				sdk.NewAttribute(types.AttributeKeyReason, contribution.RejectReason),
			),
		)
	}

	return id, nil
}

func (k Keeper) verifyProof(ctx context.Context, owner sdk.AccAddress, proof types.Proof) (types.Verification, error) {
	if k.verifier == nil {
		return types.Verification{}, types.ErrOracleFailure.Wrap("no proof verifier configured")
	}

	start := time.Now()
	verification, err := k.verifier.VerifyProof(ctx, owner, proof)
	k.metrics.ProofVerificationTime.Observe(time.Since(start).Seconds())
	if err != nil {
		return types.Verification{}, types.ErrOracleFailure.Wrapf("proof verification: %v", err)
	}

	hint := verification.QualityHint
	if hint != nil && (hint.IsNil() || hint.IsNegative() || hint.GT(math.LegacyNewDec(100))) {
		return types.Verification{}, types.ErrOracleFailure.Wrapf("quality hint %s outside [0,100]", hint)
	}
	return verification, nil
}

// GetContribution returns a contribution by id.
func (k Keeper) GetContribution(ctx context.Context, id uint64) (types.Contribution, error) {
	contribution, found, err := getJSON[types.Contribution](k.getStore(ctx), ContributionKey(id))
	if err != nil {
		return types.Contribution{}, err
	}
	if !found {
		return types.Contribution{}, types.ErrContributionNotFound.Wrapf("contribution %d", id)
	}
	return contribution, nil
}

// setContribution stores c after checking that its status only moved forward.
func (k Keeper) setContribution(ctx context.Context, c types.Contribution) error {
	store := k.getStore(ctx)
	prev, found, err := getJSON[types.Contribution](store, ContributionKey(c.ID))
	if err != nil {
		return err
	}
	if found && prev.Status != c.Status && !prev.Status.CanTransitionTo(c.Status) {
		return k.invariantViolation(ctx, "contribution %d moved from %s to %s", c.ID, prev.Status, c.Status)
	}
	if c.Status != types.StatusRewarded && c.RewardAmount.IsPositive() {
		return k.invariantViolation(ctx, "contribution %d carries a reward while %s", c.ID, c.Status)
	}
	return setJSON(store, ContributionKey(c.ID), c)
}

// ContributionsByOwner returns the contributions of owner in id order.
func (k Keeper) ContributionsByOwner(ctx context.Context, owner sdk.AccAddress) ([]types.Contribution, error) {
	store := k.getStore(ctx)
	prefix := ContributionByOwnerPrefix(owner)
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	var out []types.Contribution
	for ; iterator.Valid(); iterator.Next() {
		id := binary.BigEndian.Uint64(iterator.Key()[len(prefix):])
		contribution, err := k.GetContribution(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, contribution)
	}
	return out, nil
}

// IterateContributions walks every contribution in id order.
func (k Keeper) IterateContributions(ctx context.Context, cb func(c types.Contribution) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), ContributionKeyPrefix, func(_ []byte, c types.Contribution) (bool, error) {
		return cb(c)
	})
}

// SubmissionCount returns how many contributions owner has submitted.
func (k Keeper) SubmissionCount(ctx context.Context, owner sdk.AccAddress) uint64 {
	bz := k.getStore(ctx).Get(SubmissionCountKey(owner))
	if bz == nil {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}

func (k Keeper) incrementSubmissionCount(ctx context.Context, owner sdk.AccAddress) {
	k.setSubmissionCount(ctx, owner, k.SubmissionCount(ctx, owner)+1)
}

func (k Keeper) setSubmissionCount(ctx context.Context, owner sdk.AccAddress, count uint64) {
	k.getStore(ctx).Set(SubmissionCountKey(owner), uint64Bytes(count))
}
