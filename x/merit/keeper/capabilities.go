package keeper

import (
	"context"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
	sharedkeeper "github.com/paw-chain/merit/x/shared/keeper"
)

var _ types.Capabilities = StakeCapabilities{}

// StakeCapabilities derives capabilities from ledger state:
//   - reviewers are active validators or allow-listed reviewers
//   - slashing, performance reports and reward retries need the authority or an operator
type StakeCapabilities struct {
	k *Keeper
}

// NewStakeCapabilities returns the default capability policy for k.
func NewStakeCapabilities(k *Keeper) StakeCapabilities {
	return StakeCapabilities{k: k}
}

func (c StakeCapabilities) CanReview(ctx context.Context, reviewer sdk.AccAddress) bool {
	if c.k.IsReviewer(ctx, reviewer) {
		return true
	}
	record, err := c.k.GetValidatorRecord(ctx, reviewer)
	return err == nil && record.Active
}

func (c StakeCapabilities) CanSlash(ctx context.Context, caller sdk.AccAddress) bool {
	return c.CanOperate(ctx, caller)
}

func (c StakeCapabilities) CanReportPerformance(ctx context.Context, caller sdk.AccAddress) bool {
	return c.CanOperate(ctx, caller)
}

func (c StakeCapabilities) CanOperate(ctx context.Context, caller sdk.AccAddress) bool {
	if caller.String() == c.k.authority {
		return true
	}
	return c.k.IsOperator(ctx, caller)
}

// IsReviewer reports whether addr is on the reviewer allow-list.
func (k Keeper) IsReviewer(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(ReviewerKey(addr))
}

// IsOperator reports whether addr is on the operator allow-list.
func (k Keeper) IsOperator(ctx context.Context, addr sdk.AccAddress) bool {
	return k.getStore(ctx).Has(OperatorKey(addr))
}

// SetReviewer adds or removes addr from the reviewer allow-list.
func (k Keeper) SetReviewer(ctx context.Context, authority string, addr sdk.AccAddress, allowed bool) error {
	if err := sharedkeeper.ValidateAuthority(k.authority, authority); err != nil {
		return types.ErrUnauthorized.Wrap(err.Error())
	}
	k.setAllowList(ctx, ReviewerKey(addr), allowed)
	return nil
}

// SetOperator adds or removes addr from the operator allow-list.
func (k Keeper) SetOperator(ctx context.Context, authority string, addr sdk.AccAddress, allowed bool) error {
	if err := sharedkeeper.ValidateAuthority(k.authority, authority); err != nil {
		return types.ErrUnauthorized.Wrap(err.Error())
	}
	k.setAllowList(ctx, OperatorKey(addr), allowed)
	return nil
}

func (k Keeper) setAllowList(ctx context.Context, key []byte, allowed bool) {
	store := k.getStore(ctx)
	if allowed {
		store.Set(key, []byte{0x01})
		return
	}
	store.Delete(key)
}

func (k Keeper) allowListed(ctx context.Context, prefix []byte) []string {
	store := k.getStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	var out []string
	for ; iterator.Valid(); iterator.Next() {
		out = append(out, sdk.AccAddress(iterator.Key()[len(prefix):]).String())
	}
	return out
}
