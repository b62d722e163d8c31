package keeper

import (
	"context"
	"strconv"
	"strings"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// DowntimeReason is the slash reason recorded by SlashDowntime.
const DowntimeReason = "downtime"

// Slash penalizes an active validator position. The slashed amount is capped
// at SlashingRate percent of the position and moves from escrow into the
// insurance pool.
func (k Keeper) Slash(ctx context.Context, caller, validator sdk.AccAddress, proposed math.Int, reason string) (math.Int, error) {
	if !k.capabilities.CanSlash(ctx, caller) {
		return math.Int{}, types.ErrUnauthorized.Wrapf("%s may not slash", caller)
	}
	if proposed.IsNil() || !proposed.IsPositive() {
		return math.Int{}, types.ErrInvalidAmount.Wrap("slash amount must be positive")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return math.Int{}, types.ErrInvalidAmount.Wrap("slash reason required")
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return math.Int{}, err
	}
	position, found, err := k.getPosition(ctx, validator)
	if err != nil {
		return math.Int{}, err
	}
	if !found || !position.Active || position.Role != types.RoleValidator {
		return math.Int{}, types.ErrNotValidator.Wrapf("%s has no active validator position", validator)
	}

	return k.slash(ctx, params, validator, position, proposed, reason)
}

// maxSlash returns the largest amount one slash may take from position.
func maxSlash(params types.Params, position types.StakePosition) math.Int {
	return position.Amount.MulRaw(int64(params.SlashingRate)).QuoRaw(100)
}

func (k Keeper) slash(ctx context.Context, params types.Params, validator sdk.AccAddress, position types.StakePosition, proposed math.Int, reason string) (math.Int, error) {
	actual := math.MinInt(proposed, maxSlash(params, position))

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	cacheCtx, writeFn := sdkCtx.CacheContext()

	if actual.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, actual))
		if err := k.bankKeeper.SendCoins(cacheCtx, types.EscrowAddress(), types.InsurancePoolAddress(), coins); err != nil {
			return math.Int{}, k.invariantViolation(ctx, "escrow cannot cover slash of %s from %s: %v", actual, validator, err)
		}
	}

	if actual.GT(position.Amount) {
		position.Amount = math.ZeroInt()
	} else {
		position.Amount = position.Amount.Sub(actual)
	}
	position.PerformanceScore = types.SaturatingSubUint32(position.PerformanceScore, params.SlashPenalty)
	if err := k.setPosition(cacheCtx, position); err != nil {
		return math.Int{}, err
	}
	if err := k.subTotalStaked(cacheCtx, actual); err != nil {
		return math.Int{}, err
	}

	pool, err := k.InsurancePool(cacheCtx)
	if err != nil {
		return math.Int{}, err
	}
	pool = pool.Add(actual)
	if err := k.setInt(cacheCtx, InsurancePoolKey, pool); err != nil {
		return math.Int{}, err
	}

	record := types.SlashRecord{
		ID:               k.nextSequence(cacheCtx, NextSlashIDKey),
		Validator:        validator.String(),
		Amount:           actual,
		Reason:           reason,
		PerformanceAfter: position.PerformanceScore,
		SlashedAt:        now,
	}
	if err := k.setSlashRecord(cacheCtx, record); err != nil {
		return math.Int{}, err
	}
	if err := k.writeCheckpoint(cacheCtx, validator, position.Amount); err != nil {
		return math.Int{}, err
	}

	writeFn()

	k.metrics.Slashes.WithLabelValues(reason).Inc()
	k.metrics.InsurancePool.Set(tokens(pool))
	k.Logger(ctx).Info("validator slashed",
		"validator", validator.String(),
		"amount", actual.String(),
		"reason", reason,
		"performance", position.PerformanceScore,
	)

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeValidatorSlashed,
			sdk.NewAttribute(types.AttributeKeyValidator, validator.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, actual.String()),
			sdk.NewAttribute(types.AttributeKeyReason, reason),
			sdk.NewAttribute(types.AttributeKeyPerformance, strconv.FormatUint(uint64(position.PerformanceScore), 10)),
		),
	)

	return actual, nil
}

// SlashDowntime slashes every active validator whose performance fell below
// DowntimeThreshold by the maximum rate. A validator is slashed for downtime
// at most once per day.
func (k Keeper) SlashDowntime(ctx context.Context) error {
	params, err := k.GetParams(ctx)
	if err != nil {
		return err
	}
	now := sdk.UnwrapSDKContext(ctx).BlockTime()

	var offenders []types.StakePosition
	err = k.IterateValidators(ctx, func(record types.ValidatorRecord) (bool, error) {
		if !record.Active {
			return false, nil
		}
		addr, err := sdk.AccAddressFromBech32(record.Validator)
		if err != nil {
			return false, err
		}
		position, found, err := k.getPosition(ctx, addr)
		if err != nil {
			return false, err
		}
		if !found || !position.Active || position.PerformanceScore >= params.DowntimeThreshold {
			return false, nil
		}
		last, ok, err := k.lastSlash(ctx, addr, DowntimeReason)
		if err != nil {
			return false, err
		}
		if ok && now.Sub(last.SlashedAt) < types.Day {
			return false, nil
		}
		offenders = append(offenders, position)
		return false, nil
	})
	if err != nil {
		return err
	}

	for _, position := range offenders {
		addr := sdk.MustAccAddressFromBech32(position.Owner)
		if _, err := k.slash(ctx, params, addr, position, maxSlash(params, position), DowntimeReason); err != nil {
			return err
		}
	}
	return nil
}

// InsurancePool returns the total slashed into the insurance pool.
func (k Keeper) InsurancePool(ctx context.Context) (math.Int, error) {
	return k.getInt(ctx, InsurancePoolKey)
}

// GetSlashRecord returns a slash record by id.
func (k Keeper) GetSlashRecord(ctx context.Context, id uint64) (types.SlashRecord, bool, error) {
	return getJSON[types.SlashRecord](k.getStore(ctx), SlashRecordKey(id))
}

func (k Keeper) setSlashRecord(ctx context.Context, record types.SlashRecord) error {
	validator, err := sdk.AccAddressFromBech32(record.Validator)
	if err != nil {
		return err
	}
	store := k.getStore(ctx)
	if err := setJSON(store, SlashRecordKey(record.ID), record); err != nil {
		return err
	}
	store.Set(SlashRecordByValidatorKey(validator, record.ID), []byte{0x01})
	return nil
}

// SlashHistory returns the slash records of validator, oldest first.
func (k Keeper) SlashHistory(ctx context.Context, validator sdk.AccAddress) ([]types.SlashRecord, error) {
	store := k.getStore(ctx)
	prefix := SlashRecordByValidatorPrefix(validator)
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	var records []types.SlashRecord
	for ; iterator.Valid(); iterator.Next() {
		id := sdk.BigEndianToUint64(iterator.Key()[len(prefix):])
		record, found, err := k.GetSlashRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, k.invariantViolation(ctx, "slash index points at missing record %d", id)
		}
		records = append(records, record)
	}
	return records, nil
}

// lastSlash returns the most recent slash of validator with the given reason.
func (k Keeper) lastSlash(ctx context.Context, validator sdk.AccAddress, reason string) (types.SlashRecord, bool, error) {
	store := k.getStore(ctx)
	prefix := SlashRecordByValidatorPrefix(validator)
	iterator := storetypes.KVStoreReversePrefixIterator(store, prefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		id := sdk.BigEndianToUint64(iterator.Key()[len(prefix):])
		record, found, err := k.GetSlashRecord(ctx, id)
		if err != nil || !found {
			return types.SlashRecord{}, false, err
		}
		if record.Reason == reason {
			return record, true, nil
		}
	}
	return types.SlashRecord{}, false, nil
}

// IterateSlashRecords walks every slash record in id order.
func (k Keeper) IterateSlashRecords(ctx context.Context, cb func(record types.SlashRecord) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), SlashRecordKeyPrefix, func(_ []byte, record types.SlashRecord) (bool, error) {
		return cb(record)
	})
}
