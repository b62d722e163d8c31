package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
)

func getJSON[T any](store storetypes.KVStore, key []byte) (T, bool, error) {
	var value T
	bz := store.Get(key)
	if bz == nil {
		return value, false, nil
	}
	if err := json.Unmarshal(bz, &value); err != nil {
		return value, false, fmt.Errorf("unmarshal %x: %w", key, err)
	}
	return value, true, nil
}

func setJSON(store storetypes.KVStore, key []byte, value any) error {
	bz, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %x: %w", key, err)
	}
	store.Set(key, bz)
	return nil
}

// iterateJSON walks every value under prefix in key order.
func iterateJSON[T any](store storetypes.KVStore, prefix []byte, cb func(key []byte, value T) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var value T
		if err := json.Unmarshal(iterator.Value(), &value); err != nil {
			return fmt.Errorf("unmarshal %x: %w", iterator.Key(), err)
		}
		stop, err := cb(iterator.Key(), value)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// nextSequence returns the counter stored at key and advances it. Counters start at 1.
func (k Keeper) nextSequence(ctx context.Context, key []byte) uint64 {
	store := k.getStore(ctx)
	next := k.peekSequence(ctx, key)
	store.Set(key, uint64Bytes(next+1))
	return next
}

func (k Keeper) peekSequence(ctx context.Context, key []byte) uint64 {
	bz := k.getStore(ctx).Get(key)
	if bz == nil {
		return 1
	}
	return binary.BigEndian.Uint64(bz)
}

func (k Keeper) setSequence(ctx context.Context, key []byte, value uint64) {
	k.getStore(ctx).Set(key, uint64Bytes(value))
}

func (k Keeper) getInt(ctx context.Context, key []byte) (math.Int, error) {
	bz := k.getStore(ctx).Get(key)
	if bz == nil {
		return math.ZeroInt(), nil
	}
	var v math.Int
	if err := v.Unmarshal(bz); err != nil {
		return math.Int{}, fmt.Errorf("unmarshal %x: %w", key, err)
	}
	return v, nil
}

func (k Keeper) setInt(ctx context.Context, key []byte, v math.Int) error {
	bz, err := v.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %x: %w", key, err)
	}
	k.getStore(ctx).Set(key, bz)
	return nil
}
