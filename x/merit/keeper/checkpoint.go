package keeper

import (
	"context"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// writeCheckpoint records owner's locked amount from the current block time on.
func (k Keeper) writeCheckpoint(ctx context.Context, owner sdk.AccAddress, amount math.Int) error {
	now := sdk.UnwrapSDKContext(ctx).BlockTime()
	checkpoint := types.StakeCheckpoint{Owner: owner.String(), Time: now, Amount: amount}
	return setJSON(k.getStore(ctx), CheckpointKey(owner, now), checkpoint)
}

// StakeAt returns owner's locked amount at time at, from the latest
// checkpoint not after it.
func (k Keeper) StakeAt(ctx context.Context, owner sdk.AccAddress, at time.Time) (math.Int, error) {
	store := k.getStore(ctx)
	start := CheckpointPrefix(owner)
	end := CheckpointKey(owner, at.Add(time.Nanosecond))

	iterator := store.ReverseIterator(start, end)
	defer iterator.Close()
	if !iterator.Valid() {
		return math.ZeroInt(), nil
	}

	checkpoint, _, err := getJSON[types.StakeCheckpoint](store, iterator.Key())
	if err != nil {
		return math.Int{}, err
	}
	return checkpoint.Amount, nil
}

// IterateCheckpoints walks every checkpoint in key order.
func (k Keeper) IterateCheckpoints(ctx context.Context, cb func(checkpoint types.StakeCheckpoint) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), CheckpointKeyPrefix, func(_ []byte, checkpoint types.StakeCheckpoint) (bool, error) {
		return cb(checkpoint)
	})
}
