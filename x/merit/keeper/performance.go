package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// UpdatePerformance records a liveness report for validator and derives its
// performance score as 100 - missed*100/total.
func (k Keeper) UpdatePerformance(ctx context.Context, caller, validator sdk.AccAddress, uptime uint32, totalBlocks, missedBlocks uint64) (uint32, error) {
	if !k.capabilities.CanReportPerformance(ctx, caller) {
		return 0, types.ErrUnauthorized.Wrapf("%s may not report performance", caller)
	}
	if missedBlocks > totalBlocks {
		return 0, types.ErrInvalidPerformance.Wrapf("missed blocks %d exceed total %d", missedBlocks, totalBlocks)
	}
	if uptime > 100 {
		return 0, types.ErrInvalidPerformance.Wrapf("uptime %d exceeds 100", uptime)
	}

	record, err := k.GetValidatorRecord(ctx, validator)
	if err != nil {
		return 0, err
	}
	if !record.Active {
		return 0, types.ErrNotActive.Wrapf("validator %s", validator)
	}

	performance := performanceScore(totalBlocks, missedBlocks)

	record.Uptime = uptime
	record.TotalBlocks = totalBlocks
	record.MissedBlocks = missedBlocks
	if err := k.setValidatorRecord(ctx, record); err != nil {
		return 0, err
	}

	position, found, err := k.getPosition(ctx, validator)
	if err != nil {
		return 0, err
	}
	if found && position.Active {
		position.PerformanceScore = performance
		if err := k.setPosition(ctx, position); err != nil {
			return 0, err
		}
	}

	k.metrics.PerformanceReports.Inc()
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeValidatorPerformance,
			sdk.NewAttribute(types.AttributeKeyValidator, validator.String()),
			sdk.NewAttribute(types.AttributeKeyPerformance, strconv.FormatUint(uint64(performance), 10)),
		),
	)
	return performance, nil
}

func performanceScore(totalBlocks, missedBlocks uint64) uint32 {
	if totalBlocks == 0 {
		return 0
	}
	missedPercent := math.NewIntFromUint64(missedBlocks).MulRaw(100).Quo(math.NewIntFromUint64(totalBlocks))
	return types.SaturatingSubUint32(100, uint32(missedPercent.Uint64()))
}

// RevokeValidator deactivates a validator record. The stake position stays
// locked until its normal unlock time.
func (k Keeper) RevokeValidator(ctx context.Context, caller, validator sdk.AccAddress, reason string) error {
	if !k.capabilities.CanSlash(ctx, caller) {
		return types.ErrUnauthorized.Wrapf("%s may not revoke validators", caller)
	}
	record, err := k.GetValidatorRecord(ctx, validator)
	if err != nil {
		return err
	}
	if record.RevokedAt != nil {
		return types.ErrNotActive.Wrapf("validator %s already revoked", validator)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	record.Active = false
	record.RevokedAt = &now
	if err := k.setValidatorRecord(ctx, record); err != nil {
		return err
	}

	k.metrics.ValidatorsRevoked.Inc()
	k.Logger(ctx).Info("validator revoked", "validator", validator.String(), "reason", reason)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeValidatorRevoked,
			sdk.NewAttribute(types.AttributeKeyValidator, validator.String()),
			sdk.NewAttribute(types.AttributeKeyReason, reason),
		),
	)
	return nil
}
