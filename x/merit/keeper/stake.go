package keeper

import (
	"context"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// OpenPosition locks amount from owner's balance for role. The position is
// keyed by the owner, so the owner address doubles as the position id.
func (k Keeper) OpenPosition(ctx context.Context, owner sdk.AccAddress, role types.Role, amount math.Int, lockDuration time.Duration, metadata string) (sdk.AccAddress, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}

	if !role.IsValid() {
		return nil, types.ErrInvalidRole.Wrapf("unknown role %q", role)
	}
	terms, err := params.RoleTerms(role)
	if err != nil {
		return nil, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, types.ErrInvalidAmount.Wrap("stake amount must be positive")
	}
	if amount.LT(terms.MinStake) {
		return nil, types.ErrInsufficientAmount.Wrapf("stake %s is less than minimum %s for %s", amount, terms.MinStake, role)
	}
	if lockDuration < terms.MinLock {
		return nil, types.ErrLockTooShort.Wrapf("lock %s is shorter than %s for %s", lockDuration, terms.MinLock, role)
	}
	nodeID := strings.TrimSpace(metadata)
	if role == types.RoleValidator && nodeID == "" {
		return nil, types.ErrInvalidRole.Wrap("validator stake requires a node id")
	}

	existing, found, err := k.getPosition(ctx, owner)
	if err != nil {
		return nil, err
	}
	if found && existing.Active {
		return nil, types.ErrAlreadyStaked.Wrapf("%s already staked %s as %s", owner, existing.Amount, existing.Role)
	}

	var record types.ValidatorRecord
	if role == types.RoleValidator {
		prev, found, err := k.getValidatorRecord(ctx, owner)
		if err != nil {
			return nil, err
		}
		if found && prev.RevokedAt != nil {
			return nil, types.ErrUnauthorized.Wrapf("validator %s was revoked", owner)
		}
		record = prev
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	cacheCtx, writeFn := sdkCtx.CacheContext()

	coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, amount))
	if err := k.bankKeeper.SendCoins(cacheCtx, owner, types.EscrowAddress(), coins); err != nil {
		return nil, types.ErrTreasuryTransfer.Wrapf("failed to escrow stake: %v", err)
	}

	position := types.StakePosition{
		Owner:              owner.String(),
		Role:               role,
		Amount:             amount,
		StartTime:          now,
		LockDuration:       lockDuration,
		Active:             true,
		PerformanceScore:   params.InitialPerformance,
		AccumulatedRewards: math.ZeroInt(),
		LastRewardTime:     now,
		Metadata:           nodeID,
	}
	if err := k.setPosition(cacheCtx, position); err != nil {
		return nil, err
	}

	if role == types.RoleValidator {
		record.Validator = owner.String()
		record.NodeID = nodeID
		record.Active = true
		record.RegisteredAt = now
		if err := k.setValidatorRecord(cacheCtx, record); err != nil {
			return nil, err
		}
	}

	if err := k.addTotalStaked(cacheCtx, amount); err != nil {
		return nil, err
	}
	if err := k.writeCheckpoint(cacheCtx, owner, amount); err != nil {
		return nil, err
	}

	writeFn()

	k.metrics.PositionsOpened.WithLabelValues(string(role)).Inc()
	k.Logger(ctx).Info("stake position opened", "owner", owner.String(), "role", role, "amount", amount.String())

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeStaked,
			sdk.NewAttribute(types.AttributeKeyAccount, owner.String()),
			sdk.NewAttribute(types.AttributeKeyRole, string(role)),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
			sdk.NewAttribute(types.AttributeKeyLock, lockDuration.String()),
		),
	)

	return owner, nil
}

// ClosePosition unlocks owner's position after its lock expired and pays out
// the remaining principal plus pending rewards. Nothing is paid unless both
// transfers succeed: an underfunded reward pool holds the principal in escrow
// until the pool is refilled.
func (k Keeper) ClosePosition(ctx context.Context, owner sdk.AccAddress) (principal, rewards math.Int, err error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}

	position, found, err := k.getPosition(ctx, owner)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	if !found || !position.Active {
		return math.Int{}, math.Int{}, types.ErrNotActive.Wrapf("%s", owner)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	if now.Before(position.UnlockTime()) {
		return math.Int{}, math.Int{}, types.ErrLockNotExpired.Wrapf("position unlocks at %s", position.UnlockTime().UTC().Format(time.RFC3339))
	}

	rewards, err = pendingRewards(params, position, now)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	principal = position.Amount

	cacheCtx, writeFn := sdkCtx.CacheContext()

	if principal.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, principal))
		if err := k.bankKeeper.SendCoins(cacheCtx, types.EscrowAddress(), owner, coins); err != nil {
			return math.Int{}, math.Int{}, k.invariantViolation(ctx, "escrow cannot return principal %s to %s: %v", principal, owner, err)
		}
	}
	if rewards.IsPositive() {
		coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, rewards))
		if err := k.bankKeeper.SendCoins(cacheCtx, types.RewardPoolAddress(), owner, coins); err != nil {
			return math.Int{}, math.Int{}, types.ErrTreasuryTransfer.Wrapf("failed to pay staking rewards: %v", err)
		}
	}

	if err := k.subTotalStaked(cacheCtx, principal); err != nil {
		return math.Int{}, math.Int{}, err
	}

	position.Active = false
	position.AccumulatedRewards = position.AccumulatedRewards.Add(rewards)
	position.LastRewardTime = now
	if err := setJSON(k.getStore(cacheCtx), PositionHistoryKey(owner, now), position); err != nil {
		return math.Int{}, math.Int{}, err
	}
	if err := k.setPosition(cacheCtx, position); err != nil {
		return math.Int{}, math.Int{}, err
	}

	if position.Role == types.RoleValidator {
		record, found, err := k.getValidatorRecord(cacheCtx, owner)
		if err != nil {
			return math.Int{}, math.Int{}, err
		}
		if found {
			record.Active = false
			if err := k.setValidatorRecord(cacheCtx, record); err != nil {
				return math.Int{}, math.Int{}, err
			}
		}
	}

	if err := k.writeCheckpoint(cacheCtx, owner, math.ZeroInt()); err != nil {
		return math.Int{}, math.Int{}, err
	}

	writeFn()

	k.metrics.PositionsClosed.WithLabelValues(string(position.Role)).Inc()
	k.metrics.RewardsPaid.WithLabelValues("staking").Add(tokens(rewards))

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeUnstaked,
			sdk.NewAttribute(types.AttributeKeyAccount, owner.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, principal.String()),
			sdk.NewAttribute(types.AttributeKeyRewards, rewards.String()),
		),
	)

	return principal, rewards, nil
}

// PendingRewards returns the staking reward accrued since the last claim.
// It never mutates state: two calls without a claim in between agree.
func (k Keeper) PendingRewards(ctx context.Context, owner sdk.AccAddress) (math.Int, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.Int{}, err
	}
	position, found, err := k.getPosition(ctx, owner)
	if err != nil {
		return math.Int{}, err
	}
	if !found || !position.Active {
		return math.Int{}, types.ErrNotActive.Wrapf("%s", owner)
	}
	return pendingRewards(params, position, sdk.UnwrapSDKContext(ctx).BlockTime())
}

// ClaimRewards pays the pending staking reward and restarts accrual.
func (k Keeper) ClaimRewards(ctx context.Context, owner sdk.AccAddress) (math.Int, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.Int{}, err
	}
	position, found, err := k.getPosition(ctx, owner)
	if err != nil {
		return math.Int{}, err
	}
	if !found || !position.Active {
		return math.Int{}, types.ErrNotActive.Wrapf("%s", owner)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	pending, err := pendingRewards(params, position, now)
	if err != nil {
		return math.Int{}, err
	}
	if pending.IsZero() {
		return pending, nil
	}

	cacheCtx, writeFn := sdkCtx.CacheContext()
	coins := sdk.NewCoins(sdk.NewCoin(params.BondDenom, pending))
	if err := k.bankKeeper.SendCoins(cacheCtx, types.RewardPoolAddress(), owner, coins); err != nil {
		return math.Int{}, types.ErrTreasuryTransfer.Wrapf("failed to pay staking rewards: %v", err)
	}

	position.AccumulatedRewards = position.AccumulatedRewards.Add(pending)
	position.LastRewardTime = now
	if err := k.setPosition(cacheCtx, position); err != nil {
		return math.Int{}, err
	}
	writeFn()

	k.metrics.RewardsPaid.WithLabelValues("staking").Add(tokens(pending))

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeRewardsClaimed,
			sdk.NewAttribute(types.AttributeKeyAccount, owner.String()),
			sdk.NewAttribute(types.AttributeKeyRewards, pending.String()),
		),
	)
	return pending, nil
}

// pendingRewards computes
// amount × roleRate × elapsed / (100 × year) × (100 + performance) / 100.
func pendingRewards(params types.Params, position types.StakePosition, now time.Time) (math.Int, error) {
	terms, err := params.RoleTerms(position.Role)
	if err != nil {
		return math.Int{}, err
	}
	elapsed := now.Sub(position.LastRewardTime)
	if elapsed <= 0 || !position.Amount.IsPositive() || terms.RewardRate == 0 {
		return math.ZeroInt(), nil
	}

	seconds := int64(elapsed / time.Second)
	numerator := position.Amount.
		MulRaw(int64(terms.RewardRate)).
		MulRaw(seconds).
		MulRaw(100 + int64(position.PerformanceScore))
	denominator := math.NewInt(int64(types.Year / time.Second)).MulRaw(100 * 100)

	return numerator.Quo(denominator), nil
}

// GetPosition returns the current (active or last closed) position of owner.
func (k Keeper) GetPosition(ctx context.Context, owner sdk.AccAddress) (types.StakePosition, error) {
	position, found, err := k.getPosition(ctx, owner)
	if err != nil {
		return types.StakePosition{}, err
	}
	if !found {
		return types.StakePosition{}, types.ErrPositionNotFound.Wrapf("%s", owner)
	}
	return position, nil
}

func (k Keeper) getPosition(ctx context.Context, owner sdk.AccAddress) (types.StakePosition, bool, error) {
	return getJSON[types.StakePosition](k.getStore(ctx), PositionKey(owner))
}

func (k Keeper) setPosition(ctx context.Context, position types.StakePosition) error {
	owner, err := sdk.AccAddressFromBech32(position.Owner)
	if err != nil {
		return err
	}
	if position.PerformanceScore > 100 {
		return k.invariantViolation(ctx, "performance score %d of %s exceeds 100", position.PerformanceScore, position.Owner)
	}
	if position.Amount.IsNil() || position.Amount.IsNegative() {
		return k.invariantViolation(ctx, "negative stake amount for %s", position.Owner)
	}
	return setJSON(k.getStore(ctx), PositionKey(owner), position)
}

// IteratePositions walks every stored position, active or closed.
func (k Keeper) IteratePositions(ctx context.Context, cb func(position types.StakePosition) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), PositionKeyPrefix, func(_ []byte, position types.StakePosition) (bool, error) {
		return cb(position)
	})
}

// PositionHistory returns the closed positions of owner, oldest first.
func (k Keeper) PositionHistory(ctx context.Context, owner sdk.AccAddress) ([]types.StakePosition, error) {
	var history []types.StakePosition
	err := iterateJSON(k.getStore(ctx), PositionHistoryOwnerPrefix(owner), func(_ []byte, position types.StakePosition) (bool, error) {
		history = append(history, position)
		return false, nil
	})
	return history, err
}

// TotalStaked returns the sum of all active position amounts.
func (k Keeper) TotalStaked(ctx context.Context) (math.Int, error) {
	return k.getInt(ctx, TotalStakedKey)
}

func (k Keeper) addTotalStaked(ctx context.Context, amount math.Int) error {
	total, err := k.TotalStaked(ctx)
	if err != nil {
		return err
	}
	return k.setInt(ctx, TotalStakedKey, total.Add(amount))
}

func (k Keeper) subTotalStaked(ctx context.Context, amount math.Int) error {
	total, err := k.TotalStaked(ctx)
	if err != nil {
		return err
	}
	if total.LT(amount) {
		return k.invariantViolation(ctx, "total staked %s below released amount %s", total, amount)
	}
	return k.setInt(ctx, TotalStakedKey, total.Sub(amount))
}

// GetValidatorRecord returns the validator record of addr.
func (k Keeper) GetValidatorRecord(ctx context.Context, validator sdk.AccAddress) (types.ValidatorRecord, error) {
	record, found, err := k.getValidatorRecord(ctx, validator)
	if err != nil {
		return types.ValidatorRecord{}, err
	}
	if !found {
		return types.ValidatorRecord{}, types.ErrValidatorNotFound.Wrapf("%s", validator)
	}
	return record, nil
}

func (k Keeper) getValidatorRecord(ctx context.Context, validator sdk.AccAddress) (types.ValidatorRecord, bool, error) {
	return getJSON[types.ValidatorRecord](k.getStore(ctx), ValidatorKey(validator))
}

func (k Keeper) setValidatorRecord(ctx context.Context, record types.ValidatorRecord) error {
	validator, err := sdk.AccAddressFromBech32(record.Validator)
	if err != nil {
		return err
	}
	return setJSON(k.getStore(ctx), ValidatorKey(validator), record)
}

// IterateValidators walks every validator record, active or not.
func (k Keeper) IterateValidators(ctx context.Context, cb func(record types.ValidatorRecord) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), ValidatorKeyPrefix, func(_ []byte, record types.ValidatorRecord) (bool, error) {
		return cb(record)
	})
}
